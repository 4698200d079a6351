package genre

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

const entity = "genre"

var rules = validation.RuleSet{
	Entity: entity,
	Rules: []validation.Rule{
		{Field: "name", Required: true, MaxLen: 64},
		{Field: "description", MaxLen: 1000},
	},
}

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// Patch holds the fields an update may change; nil means "keep".
type Patch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func validate(g models.Genre) error {
	return rules.Validate(map[string]any{
		"name":        g.Name,
		"description": g.Description,
	})
}

func normalize(g *models.Genre) {
	g.Name = strings.TrimSpace(g.Name)
	g.Description = strings.TrimSpace(g.Description)
}

func (r *Repo) Create(ctx context.Context, g models.Genre) (*models.Genre, error) {
	normalize(&g)
	if err := validate(g); err != nil {
		return nil, err
	}

	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO genres (name, description) VALUES (?, ?)
	`, g.Name, g.Description)
	if err != nil {
		return nil, writeErr("create genre", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return r.FindOne(ctx, id)
}

func (r *Repo) FindAll(ctx context.Context, limit, offset int) ([]models.Genre, error) {
	limit, offset = database.Page(limit, offset)
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, name, description
		FROM genres
		ORDER BY name ASC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	defer rows.Close()

	out := make([]models.Genre, 0, limit)
	for rows.Next() {
		g, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan genre row: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *Repo) FindOne(ctx context.Context, id int64) (*models.Genre, error) {
	return findOne(ctx, r.DB, id)
}

// FindByName matches case-insensitively.
func (r *Repo) FindByName(ctx context.Context, name string) (*models.Genre, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, name, description FROM genres WHERE name = ? COLLATE NOCASE
	`, strings.TrimSpace(name))
	g, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(entity, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get genre by name: %w", err)
	}
	return &g, nil
}

func (r *Repo) Update(ctx context.Context, id int64, p Patch) (*models.Genre, error) {
	var updated *models.Genre
	err := database.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		g, err := findOne(ctx, tx, id)
		if err != nil {
			return err
		}
		if p.Name != nil {
			g.Name = *p.Name
		}
		if p.Description != nil {
			g.Description = *p.Description
		}
		normalize(g)
		if err := validate(*g); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE genres SET name = ?, description = ? WHERE id = ?
		`, g.Name, g.Description, id); err != nil {
			return writeErr("update genre", err)
		}
		updated = g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *Repo) Remove(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM genres WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete genre: %w", err)
	}
	return database.RequireAffected(res, apperr.NotFound(entity, id))
}

func findOne(ctx context.Context, q database.Querier, id int64) (*models.Genre, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, description FROM genres WHERE id = ?
	`, id)
	g, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(entity, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get genre: %w", err)
	}
	return &g, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (models.Genre, error) {
	var (
		g           models.Genre
		description sql.NullString
	)
	if err := s.Scan(&g.ID, &g.Name, &description); err != nil {
		return g, err
	}
	g.Description = description.String
	return g, nil
}

func writeErr(op string, err error) error {
	if database.IsUniqueViolation(err) {
		return &apperr.ConflictError{Entity: entity, Reason: "name already exists", Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
