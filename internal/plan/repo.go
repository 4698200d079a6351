package plan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"streamhub/internal/apperr"
	"streamhub/internal/validation"
	"streamhub/pkg/database"
	"streamhub/pkg/models"
)

const entity = "plan"

var rules = validation.RuleSet{
	Entity: entity,
	Rules: []validation.Rule{
		{Field: "name", Required: true, MaxLen: 64},
		{Field: "priceCents", Required: true, Min: validation.Bound(0)},
		{Field: "currency", Required: true, Format: "iso4217"},
		{Field: "maxProfiles", Required: true, Min: validation.Bound(1), Max: validation.Bound(10)},
		{Field: "maxQuality", Required: true, OneOf: models.Qualities},
	},
}

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

type Patch struct {
	Name        *string `json:"name"`
	PriceCents  *int64  `json:"priceCents"`
	Currency    *string `json:"currency"`
	MaxProfiles *int    `json:"maxProfiles"`
	MaxQuality  *string `json:"maxQuality"`
	IsActive    *bool   `json:"isActive"`
}

func normalize(p *models.Plan) {
	p.Name = strings.TrimSpace(p.Name)
	p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	p.MaxQuality = models.Quality(strings.ToUpper(strings.TrimSpace(string(p.MaxQuality))))
}

func validate(p models.Plan) error {
	return rules.Validate(map[string]any{
		"name":        p.Name,
		"priceCents":  p.PriceCents,
		"currency":    p.Currency,
		"maxProfiles": p.MaxProfiles,
		"maxQuality":  string(p.MaxQuality),
	})
}

func (r *Repo) Create(ctx context.Context, p models.Plan) (*models.Plan, error) {
	normalize(&p)
	if err := validate(p); err != nil {
		return nil, err
	}
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO plans (name, price_cents, currency, max_profiles, max_quality, is_active)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.Name, p.PriceCents, p.Currency, p.MaxProfiles, string(p.MaxQuality), p.IsActive)
	if err != nil {
		return nil, writeErr("create plan", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return r.FindOne(ctx, id)
}

func (r *Repo) FindAll(ctx context.Context, limit, offset int) ([]models.Plan, error) {
	limit, offset = database.Page(limit, offset)
	return r.list(ctx, selectColumns+` ORDER BY price_cents ASC, id ASC LIMIT ? OFFSET ?`, limit, offset)
}

// FindActive returns the plans open for new subscriptions, cheapest first.
func (r *Repo) FindActive(ctx context.Context) ([]models.Plan, error) {
	return r.list(ctx, selectColumns+` WHERE is_active = 1 ORDER BY price_cents ASC, id ASC`)
}

func (r *Repo) FindOne(ctx context.Context, id int64) (*models.Plan, error) {
	return findOne(ctx, r.DB, id)
}

func (r *Repo) FindByName(ctx context.Context, name string) (*models.Plan, error) {
	row := r.DB.QueryRowContext(ctx, selectColumns+` WHERE name = ? COLLATE NOCASE`, strings.TrimSpace(name))
	p, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(entity, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get plan by name: %w", err)
	}
	return &p, nil
}

func (r *Repo) Update(ctx context.Context, id int64, patch Patch) (*models.Plan, error) {
	var updated *models.Plan
	err := database.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		p, err := findOne(ctx, tx, id)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.PriceCents != nil {
			p.PriceCents = *patch.PriceCents
		}
		if patch.Currency != nil {
			p.Currency = *patch.Currency
		}
		if patch.MaxProfiles != nil {
			p.MaxProfiles = *patch.MaxProfiles
		}
		if patch.MaxQuality != nil {
			p.MaxQuality = models.Quality(*patch.MaxQuality)
		}
		if patch.IsActive != nil {
			p.IsActive = *patch.IsActive
		}
		normalize(p)
		if err := validate(*p); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE plans
			SET name = ?, price_cents = ?, currency = ?, max_profiles = ?, max_quality = ?, is_active = ?
			WHERE id = ?
		`, p.Name, p.PriceCents, p.Currency, p.MaxProfiles, string(p.MaxQuality), p.IsActive, id); err != nil {
			return writeErr("update plan", err)
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Remove fails with ConflictError while subscriptions still reference the plan.
func (r *Repo) Remove(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, id)
	if database.IsForeignKeyViolation(err) {
		return &apperr.ConflictError{Entity: entity, Reason: "plan still has subscriptions", Err: err}
	}
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	return database.RequireAffected(res, apperr.NotFound(entity, id))
}

const selectColumns = `
	SELECT id, name, price_cents, currency, max_profiles, max_quality, is_active
	FROM plans`

func (r *Repo) list(ctx context.Context, query string, args ...any) ([]models.Plan, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	out := make([]models.Plan, 0)
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func findOne(ctx context.Context, q database.Querier, id int64) (*models.Plan, error) {
	p, err := scan(q.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(entity, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return &p, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (models.Plan, error) {
	var (
		p       models.Plan
		quality string
	)
	err := s.Scan(&p.ID, &p.Name, &p.PriceCents, &p.Currency, &p.MaxProfiles, &quality, &p.IsActive)
	p.MaxQuality = models.Quality(quality)
	return p, err
}

func writeErr(op string, err error) error {
	if database.IsUniqueViolation(err) {
		return &apperr.ConflictError{Entity: entity, Reason: "name already exists", Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
