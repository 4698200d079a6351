package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"streamhub/internal/apperr"
	"streamhub/internal/validation"
	"streamhub/pkg/database"
	"streamhub/pkg/models"
)

const entity = "subscription"

var rules = validation.RuleSet{
	Entity: entity,
	Rules: []validation.Rule{
		{Field: "userId", Required: true, Min: validation.Bound(1)},
		{Field: "planId", Required: true, Min: validation.Bound(1)},
		{Field: "status", Required: true, OneOf: models.SubscriptionStatuses},
	},
}

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

type ListQuery struct {
	UserID int64
	Status string
	Expand bool // load Plan
	Limit  int
	Offset int
}

type Patch struct {
	PlanID    *int64     `json:"planId"`
	Status    *string    `json:"status"`
	EndsAt    *time.Time `json:"endsAt"`
	AutoRenew *bool      `json:"autoRenew"`
}

func normalize(s *models.Subscription) {
	s.Status = models.SubscriptionStatus(strings.ToLower(strings.TrimSpace(string(s.Status))))
	if s.Status == "" {
		s.Status = models.SubscriptionActive
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}
	s.StartedAt = s.StartedAt.UTC()
	if s.EndsAt != nil {
		t := s.EndsAt.UTC()
		s.EndsAt = &t
	}
}

func validate(s models.Subscription) error {
	err := rules.Validate(map[string]any{
		"userId": s.UserID,
		"planId": s.PlanID,
		"status": string(s.Status),
	})
	if err != nil {
		return err
	}
	if s.EndsAt != nil && s.EndsAt.Before(s.StartedAt) {
		return apperr.Invalid(entity, "endsAt", "gtefield", "must not be before startedAt")
	}
	return nil
}

func (r *Repo) Create(ctx context.Context, s models.Subscription) (*models.Subscription, error) {
	normalize(&s)
	if err := validate(s); err != nil {
		return nil, err
	}

	var created *models.Subscription
	err := database.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		if err := checkPlanActive(ctx, tx, s.PlanID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO subscriptions (user_id, plan_id, status, started_at, ends_at, auto_renew)
			VALUES (?, ?, ?, ?, ?, ?)
		`, s.UserID, s.PlanID, string(s.Status), s.StartedAt, s.EndsAt, s.AutoRenew)
		if err != nil {
			return writeErr(ctx, tx, "create subscription", s, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		created, err = findOne(ctx, tx, id, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *Repo) FindAll(ctx context.Context, q ListQuery) ([]models.Subscription, error) {
	limit, offset := database.Page(q.Limit, q.Offset)

	var where []string
	var args []any
	if q.UserID > 0 {
		where = append(where, "s.user_id = ?")
		args = append(args, q.UserID)
	}
	if st := strings.TrimSpace(q.Status); st != "" {
		where = append(where, "s.status = ?")
		args = append(args, strings.ToLower(st))
	}
	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY s.started_at DESC, s.id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	out := make([]models.Subscription, 0, limit)
	for rows.Next() {
		s, err := scan(rows, q.Expand)
		if err != nil {
			return nil, fmt.Errorf("scan subscription row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *Repo) FindByUser(ctx context.Context, userID int64) ([]models.Subscription, error) {
	return r.FindAll(ctx, ListQuery{UserID: userID, Limit: 100})
}

func (r *Repo) FindByStatus(ctx context.Context, status string, limit, offset int) ([]models.Subscription, error) {
	st := strings.ToLower(strings.TrimSpace(status))
	if !slices.Contains(models.SubscriptionStatuses, st) {
		return nil, apperr.Invalid(entity, "status", "oneof",
			"must be one of: "+strings.Join(models.SubscriptionStatuses, ", "))
	}
	return r.FindAll(ctx, ListQuery{Status: st, Limit: limit, Offset: offset})
}

// ActiveForUser returns the user's newest active subscription with its plan,
// or NotFoundError when there is none.
func (r *Repo) ActiveForUser(ctx context.Context, userID int64) (*models.Subscription, error) {
	subs, err := r.FindAll(ctx, ListQuery{UserID: userID, Status: string(models.SubscriptionActive), Expand: true, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, apperr.NotFound(entity, fmt.Sprintf("active for user %d", userID))
	}
	return &subs[0], nil
}

func (r *Repo) FindOne(ctx context.Context, id int64, expand bool) (*models.Subscription, error) {
	return findOne(ctx, r.DB, id, expand)
}

func (r *Repo) Update(ctx context.Context, id int64, patch Patch) (*models.Subscription, error) {
	var updated *models.Subscription
	err := database.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		s, err := findOne(ctx, tx, id, false)
		if err != nil {
			return err
		}
		if patch.PlanID != nil && *patch.PlanID != s.PlanID {
			s.PlanID = *patch.PlanID
			if err := checkPlanActive(ctx, tx, s.PlanID); err != nil {
				return err
			}
		}
		if patch.Status != nil {
			s.Status = models.SubscriptionStatus(*patch.Status)
		}
		if patch.EndsAt != nil {
			s.EndsAt = patch.EndsAt
		}
		if patch.AutoRenew != nil {
			s.AutoRenew = *patch.AutoRenew
		}
		normalize(s)
		if err := validate(*s); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE subscriptions SET plan_id = ?, status = ?, ends_at = ?, auto_renew = ? WHERE id = ?
		`, s.PlanID, string(s.Status), s.EndsAt, s.AutoRenew, id); err != nil {
			return writeErr(ctx, tx, "update subscription", *s, err)
		}
		updated = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *Repo) Remove(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM subscriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return database.RequireAffected(res, apperr.NotFound(entity, id))
}

// checkPlanActive rejects retired plans. A missing plan is left to the
// foreign key so both references are reported the same way.
func checkPlanActive(ctx context.Context, q database.Querier, planID int64) error {
	var active bool
	err := q.QueryRowContext(ctx, `SELECT is_active FROM plans WHERE id = ?`, planID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check plan: %w", err)
	}
	if !active {
		return apperr.Invalid(entity, "planId", "active", fmt.Sprintf("plan %d is not active", planID))
	}
	return nil
}

const selectColumns = `
	SELECT s.id, s.user_id, s.plan_id, s.status, s.started_at, s.ends_at, s.auto_renew,
		p.name, p.price_cents, p.currency, p.max_profiles, p.max_quality, p.is_active
	FROM subscriptions s
	JOIN plans p ON p.id = s.plan_id`

func findOne(ctx context.Context, q database.Querier, id int64, expand bool) (*models.Subscription, error) {
	s, err := scan(q.QueryRowContext(ctx, selectColumns+` WHERE s.id = ?`, id), expand)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(entity, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return &s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(sc scanner, expand bool) (models.Subscription, error) {
	var (
		s       models.Subscription
		p       models.Plan
		status  string
		quality string
		endsAt  sql.NullTime
	)
	if err := sc.Scan(
		&s.ID, &s.UserID, &s.PlanID, &status, &s.StartedAt, &endsAt, &s.AutoRenew,
		&p.Name, &p.PriceCents, &p.Currency, &p.MaxProfiles, &quality, &p.IsActive,
	); err != nil {
		return s, err
	}
	s.Status = models.SubscriptionStatus(status)
	s.StartedAt = s.StartedAt.UTC()
	if endsAt.Valid {
		t := endsAt.Time.UTC()
		s.EndsAt = &t
	}
	if expand {
		p.ID = s.PlanID
		p.MaxQuality = models.Quality(quality)
		s.Plan = &p
	}
	return s, nil
}

// writeErr names the missing parent when a foreign key fails.
func writeErr(ctx context.Context, q database.Querier, op string, s models.Subscription, err error) error {
	if !database.IsForeignKeyViolation(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var n int
	if qerr := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, s.UserID).Scan(&n); qerr == nil && n == 0 {
		return apperr.Invalid(entity, "userId", "exists", fmt.Sprintf("user %d does not exist", s.UserID))
	}
	return apperr.Invalid(entity, "planId", "exists", fmt.Sprintf("plan %d does not exist", s.PlanID))
}
