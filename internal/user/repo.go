package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"streamhub/internal/apperr"
	"streamhub/internal/validation"
	"streamhub/pkg/database"
	"streamhub/pkg/models"
)

const entity = "user"

// ErrInvalidCredentials is returned by Authenticate for an unknown email or a
// wrong password alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

var rules = validation.RuleSet{
	Entity: entity,
	Rules: []validation.Rule{
		{Field: "email", Required: true, MaxLen: 255, Format: "email"},
		{Field: "username", Required: true, Min: validation.Bound(3), MaxLen: 30},
		{Field: "password", Required: true, Min: validation.Bound(8), MaxLen: 72},
	},
}

type Repo struct {
	DB *sql.DB

	// Cost is the bcrypt cost; zero means bcrypt.DefaultCost.
	Cost int
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// NewUser carries the plaintext password; only its hash is stored.
type NewUser struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Patch changes account fields. A new password bumps the token version so
// previously issued tokens stop working.
type Patch struct {
	Email    *string `json:"email"`
	Username *string `json:"username"`
	Password *string `json:"password"`
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (r *Repo) hash(password string) (string, error) {
	cost := r.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func (r *Repo) Create(ctx context.Context, in NewUser) (*models.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if err := rules.Validate(map[string]any{
		"email":    in.Email,
		"username": in.Username,
		"password": in.Password,
	}); err != nil {
		return nil, err
	}

	hash, err := r.hash(in.Password)
	if err != nil {
		return nil, err
	}
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO users (email, username, password_hash) VALUES (?, ?, ?)
	`, in.Email, in.Username, hash)
	if err != nil {
		return nil, writeErr("create user", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return r.FindOne(ctx, id)
}

func (r *Repo) FindAll(ctx context.Context, limit, offset int) ([]models.User, error) {
	limit, offset = database.Page(limit, offset)
	rows, err := r.DB.QueryContext(ctx, selectColumns+` ORDER BY id ASC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := make([]models.User, 0, limit)
	for rows.Next() {
		u, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *Repo) FindOne(ctx context.Context, id int64) (*models.User, error) {
	return findOne(ctx, r.DB, id)
}

func (r *Repo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	email = normalizeEmail(email)
	u, err := scan(r.DB.QueryRowContext(ctx, selectColumns+` WHERE email = ?`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(entity, email)
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

// Authenticate checks email and password. It never says which one was wrong.
func (r *Repo) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := r.FindByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (r *Repo) Update(ctx context.Context, id int64, p Patch) (*models.User, error) {
	var updated *models.User
	err := database.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		u, err := findOne(ctx, tx, id)
		if err != nil {
			return err
		}
		values := map[string]any{"email": u.Email, "username": u.Username, "password": nil}
		if p.Email != nil {
			u.Email = normalizeEmail(*p.Email)
			values["email"] = u.Email
		}
		if p.Username != nil {
			u.Username = strings.TrimSpace(*p.Username)
			values["username"] = u.Username
		}
		if p.Password != nil {
			values["password"] = *p.Password
		}

		// password is only checked when it changes
		check := rules
		if p.Password == nil {
			check.Rules = rules.Rules[:2]
		}
		if err := check.Validate(values); err != nil {
			return err
		}

		if p.Password != nil {
			hash, err := r.hash(*p.Password)
			if err != nil {
				return err
			}
			u.PasswordHash = hash
			u.TokenVersion++
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET email = ?, username = ?, password_hash = ?, token_version = ? WHERE id = ?
		`, u.Email, u.Username, u.PasswordHash, u.TokenVersion, id); err != nil {
			return writeErr("update user", err)
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Remove deletes the user; profiles and subscriptions go with it.
func (r *Repo) Remove(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return database.RequireAffected(res, apperr.NotFound(entity, id))
}

func (r *Repo) TokenVersion(ctx context.Context, id int64) (int, error) {
	var version int
	err := r.DB.QueryRowContext(ctx, `SELECT token_version FROM users WHERE id = ?`, id).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.NotFound(entity, id)
	}
	if err != nil {
		return 0, fmt.Errorf("get token version: %w", err)
	}
	return version, nil
}

// BumpTokenVersion invalidates every token issued so far.
func (r *Repo) BumpTokenVersion(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE users SET token_version = token_version + 1 WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("bump token version: %w", err)
	}
	return database.RequireAffected(res, apperr.NotFound(entity, id))
}

const selectColumns = `
	SELECT id, email, username, password_hash, token_version, created_at
	FROM users`

func findOne(ctx context.Context, q database.Querier, id int64) (*models.User, error) {
	u, err := scan(q.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(entity, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (models.User, error) {
	var u models.User
	err := s.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.TokenVersion, &u.CreatedAt)
	return u, err
}

func writeErr(op string, err error) error {
	if database.IsUniqueViolation(err) {
		reason := "username already exists"
		if strings.Contains(err.Error(), "users.email") {
			reason = "email already exists"
		}
		return &apperr.ConflictError{Entity: entity, Reason: reason, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
