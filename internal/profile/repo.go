package profile

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

const entity = "profile"

// Kids profiles without an explicit limit are capped here.
const kidsDefaultLimit = models.MaturityPG

var rules = validation.RuleSet{
	Entity: entity,
	Rules: []validation.Rule{
		{Field: "userId", Required: true, Min: validation.Bound(1)},
		{Field: "name", Required: true, MaxLen: 50},
		{Field: "avatarUrl", MaxLen: 2048, Format: "url"},
		{Field: "maturityLimit", OneOf: models.MaturityValues()},
	},
}

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

type ListQuery struct {
	UserID int64 // 0 means every user
	Expand bool  // load User
	Limit  int
	Offset int
}

type Patch struct {
	Name          *string `json:"name"`
	AvatarURL     *string `json:"avatarUrl"`
	MaturityLimit *string `json:"maturityLimit"`
	IsKids        *bool   `json:"isKids"`
}

func normalize(p *models.Profile) {
	p.Name = strings.TrimSpace(p.Name)
	p.AvatarURL = strings.TrimSpace(p.AvatarURL)
	if m, ok := models.ParseMaturity(string(p.MaturityLimit)); ok {
		p.MaturityLimit = m
	}
	if p.IsKids && p.MaturityLimit == "" {
		p.MaturityLimit = kidsDefaultLimit
	}
}

func validate(p models.Profile) error {
	return rules.Validate(map[string]any{
		"userId":        p.UserID,
		"name":          p.Name,
		"avatarUrl":     p.AvatarURL,
		"maturityLimit": string(p.MaturityLimit),
	})
}

func (r *Repo) Create(ctx context.Context, p models.Profile) (*models.Profile, error) {
	normalize(&p)
	if err := validate(p); err != nil {
		return nil, err
	}
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO profiles (user_id, name, avatar_url, maturity_limit, is_kids)
		VALUES (?, ?, ?, ?, ?)
	`, p.UserID, p.Name, p.AvatarURL, string(p.MaturityLimit), p.IsKids)
	if database.IsForeignKeyViolation(err) {
		return nil, apperr.Invalid(entity, "userId", "exists", fmt.Sprintf("user %d does not exist", p.UserID))
	}
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return r.FindOne(ctx, id, false)
}

func (r *Repo) FindAll(ctx context.Context, q ListQuery) ([]models.Profile, error) {
	limit, offset := database.Page(q.Limit, q.Offset)
	query := selectColumns
	var args []any
	if q.UserID > 0 {
		query += ` WHERE p.user_id = ?`
		args = append(args, q.UserID)
	}
	query += ` ORDER BY p.id ASC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	out := make([]models.Profile, 0, limit)
	for rows.Next() {
		p, err := scan(rows, q.Expand)
		if err != nil {
			return nil, fmt.Errorf("scan profile row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *Repo) FindByUser(ctx context.Context, userID int64) ([]models.Profile, error) {
	return r.FindAll(ctx, ListQuery{UserID: userID, Limit: 100})
}

func (r *Repo) FindOne(ctx context.Context, id int64, expand bool) (*models.Profile, error) {
	return findOne(ctx, r.DB, id, expand)
}

func (r *Repo) Update(ctx context.Context, id int64, patch Patch) (*models.Profile, error) {
	var updated *models.Profile
	err := database.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		p, err := findOne(ctx, tx, id, false)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			p.Name = *patch.Name
		}
		if patch.AvatarURL != nil {
			p.AvatarURL = *patch.AvatarURL
		}
		if patch.MaturityLimit != nil {
			p.MaturityLimit = models.MaturityRating(*patch.MaturityLimit)
		}
		if patch.IsKids != nil {
			p.IsKids = *patch.IsKids
		}
		normalize(p)
		if err := validate(*p); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE profiles SET name = ?, avatar_url = ?, maturity_limit = ?, is_kids = ? WHERE id = ?
		`, p.Name, p.AvatarURL, string(p.MaturityLimit), p.IsKids, id); err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *Repo) Remove(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return database.RequireAffected(res, apperr.NotFound(entity, id))
}

// the user columns are always joined; scan decides whether to keep them
const selectColumns = `
	SELECT p.id, p.user_id, p.name, p.avatar_url, p.maturity_limit, p.is_kids, p.created_at,
		u.email, u.username, u.created_at
	FROM profiles p
	JOIN users u ON u.id = p.user_id`

func findOne(ctx context.Context, q database.Querier, id int64, expand bool) (*models.Profile, error) {
	p, err := scan(q.QueryRowContext(ctx, selectColumns+` WHERE p.id = ?`, id), expand)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(entity, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner, expand bool) (models.Profile, error) {
	var (
		p        models.Profile
		u        models.User
		avatar   sql.NullString
		maturity sql.NullString
	)
	if err := s.Scan(
		&p.ID, &p.UserID, &p.Name, &avatar, &maturity, &p.IsKids, &p.CreatedAt,
		&u.Email, &u.Username, &u.CreatedAt,
	); err != nil {
		return p, err
	}
	p.AvatarURL = avatar.String
	p.MaturityLimit = models.MaturityRating(maturity.String)
	if expand {
		u.ID = p.UserID
		p.User = &u
	}
	return p, nil
}
