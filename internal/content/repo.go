package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"streamhub/internal/apperr"
	"streamhub/internal/validation"
	"streamhub/pkg/database"
	"streamhub/pkg/models"
)

const entity = "content"

var rules = validation.RuleSet{
	Entity: entity,
	Rules: []validation.Rule{
		{Field: "externalId", MaxLen: 128},
		{Field: "title", Required: true, MaxLen: 300},
		{Field: "category", Required: true, OneOf: models.CategoryValues()},
		{Field: "maturityRating", OneOf: models.MaturityValues()},
		{Field: "durationMinutes", Min: validation.Bound(0), Max: validation.Bound(10000)},
		{Field: "rating", Min: validation.Bound(0), Max: validation.Bound(10)},
		{Field: "posterUrl", MaxLen: 2048, Format: "url"},
		{Field: "backdropUrl", MaxLen: 2048, Format: "url"},
		{Field: "thumbnailUrl", MaxLen: 2048, Format: "url"},
		{Field: "trailerUrl", MaxLen: 2048, Format: "url"},
		{Field: "videoUrl", MaxLen: 2048, Format: "url"},
		{Field: "description", MaxLen: 5000},
		{Field: "about", MaxLen: 5000},
		{Field: "director", MaxLen: 200},
		{Field: "viewCount", Min: validation.Bound(0)},
		{Field: "likeCount", Min: validation.Bound(0)},
		{Field: "dislikeCount", Min: validation.Bound(0)},
	},
}

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

type ListQuery struct {
	Q        string // keyword search in title/director
	Category string
	Genre    string // genre id or name
	Expand   bool   // load Genres
	Limit    int
	Offset   int
}

// Patch holds the fields an update may change; nil means "keep".
// GenreIDs replaces the whole association when set.
type Patch struct {
	ExternalID      *string    `json:"externalId"`
	Title           *string    `json:"title"`
	Category        *string    `json:"category"`
	MaturityRating  *string    `json:"maturityRating"`
	ReleaseDate     *time.Time `json:"releaseDate"`
	DurationMinutes *int       `json:"durationMinutes"`
	Rating          *float64   `json:"rating"`
	PosterURL       *string    `json:"posterUrl"`
	BackdropURL     *string    `json:"backdropUrl"`
	ThumbnailURL    *string    `json:"thumbnailUrl"`
	TrailerURL      *string    `json:"trailerUrl"`
	VideoURL        *string    `json:"videoUrl"`
	Description     *string    `json:"description"`
	About           *string    `json:"about"`
	Director        *string    `json:"director"`
	Tags            *[]string  `json:"tags"`
	IsPremium       *bool      `json:"isPremium"`
	IsFeatured      *bool      `json:"isFeatured"`
	ViewCount       *int64     `json:"viewCount"`
	LikeCount       *int64     `json:"likeCount"`
	DislikeCount    *int64     `json:"dislikeCount"`
	GenreIDs        *[]int64   `json:"genreIds"`
}

func (p Patch) apply(c *models.Content) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&c.ExternalID, p.ExternalID)
	setString(&c.Title, p.Title)
	if p.Category != nil {
		c.Category = models.Category(*p.Category)
	}
	if p.MaturityRating != nil {
		c.MaturityRating = models.MaturityRating(*p.MaturityRating)
	}
	if p.ReleaseDate != nil {
		c.ReleaseDate = p.ReleaseDate
	}
	if p.DurationMinutes != nil {
		c.DurationMinutes = p.DurationMinutes
	}
	if p.Rating != nil {
		c.Rating = p.Rating
	}
	setString(&c.PosterURL, p.PosterURL)
	setString(&c.BackdropURL, p.BackdropURL)
	setString(&c.ThumbnailURL, p.ThumbnailURL)
	setString(&c.TrailerURL, p.TrailerURL)
	setString(&c.VideoURL, p.VideoURL)
	setString(&c.Description, p.Description)
	setString(&c.About, p.About)
	setString(&c.Director, p.Director)
	if p.Tags != nil {
		c.Tags = *p.Tags
	}
	if p.IsPremium != nil {
		c.IsPremium = *p.IsPremium
	}
	if p.IsFeatured != nil {
		c.IsFeatured = *p.IsFeatured
	}
	if p.ViewCount != nil {
		c.ViewCount = *p.ViewCount
	}
	if p.LikeCount != nil {
		c.LikeCount = *p.LikeCount
	}
	if p.DislikeCount != nil {
		c.DislikeCount = *p.DislikeCount
	}
	if p.GenreIDs != nil {
		c.GenreIDs = *p.GenreIDs
	}
}

// normalize canonicalizes enum spellings. Unknown values are left as they are
// so validation rejects them.
func normalize(c *models.Content) {
	c.ExternalID = strings.TrimSpace(c.ExternalID)
	c.Title = strings.TrimSpace(c.Title)
	if cat, ok := models.ParseCategory(string(c.Category)); ok {
		c.Category = cat
	}
	if m, ok := models.ParseMaturity(string(c.MaturityRating)); ok {
		c.MaturityRating = m
	}
	tags := make([]string, 0, len(c.Tags))
	seen := make(map[string]bool, len(c.Tags))
	for _, t := range c.Tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		seen[strings.ToLower(t)] = true
		tags = append(tags, t)
	}
	c.Tags = tags
	c.GenreIDs = dedupeIDs(c.GenreIDs)
}

func dedupeIDs(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func validate(c models.Content) error {
	return rules.Validate(map[string]any{
		"externalId":      c.ExternalID,
		"title":           c.Title,
		"category":        string(c.Category),
		"maturityRating":  string(c.MaturityRating),
		"durationMinutes": validation.Opt(c.DurationMinutes),
		"rating":          validation.Opt(c.Rating),
		"posterUrl":       c.PosterURL,
		"backdropUrl":     c.BackdropURL,
		"thumbnailUrl":    c.ThumbnailURL,
		"trailerUrl":      c.TrailerURL,
		"videoUrl":        c.VideoURL,
		"description":     c.Description,
		"about":           c.About,
		"director":        c.Director,
		"viewCount":       c.ViewCount,
		"likeCount":       c.LikeCount,
		"dislikeCount":    c.DislikeCount,
	})
}

func (r *Repo) Create(ctx context.Context, c models.Content) (*models.Content, error) {
	normalize(&c)
	if err := validate(c); err != nil {
		return nil, err
	}

	var created *models.Content
	err := database.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		id, err := insert(ctx, tx, &c)
		if err != nil {
			return err
		}
		if err := linkGenres(ctx, tx, id, c.GenreIDs); err != nil {
			return err
		}
		created, err = findOne(ctx, tx, id, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *Repo) FindAll(ctx context.Context, q ListQuery) ([]models.Content, error) {
	sqlStr, args := buildListSQL(q, false)
	rows, err := r.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	defer rows.Close()

	out := make([]models.Content, 0)
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan content row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	rows.Close()

	if err := loadGenres(ctx, r.DB, out, q.Expand); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) Count(ctx context.Context, q ListQuery) (int, error) {
	sqlStr, args := buildListSQL(q, true)
	var total int
	if err := r.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count content: %w", err)
	}
	return total, nil
}

func (r *Repo) FindByCategory(ctx context.Context, category string, limit, offset int) ([]models.Content, error) {
	cat, ok := models.ParseCategory(category)
	if !ok {
		return nil, apperr.Invalid(entity, "category", "oneof",
			"must be one of: "+strings.Join(models.CategoryValues(), ", "))
	}
	return r.FindAll(ctx, ListQuery{Category: string(cat), Limit: limit, Offset: offset})
}

func (r *Repo) FindByGenre(ctx context.Context, genreID int64, limit, offset int) ([]models.Content, error) {
	return r.FindAll(ctx, ListQuery{Genre: strconv.FormatInt(genreID, 10), Limit: limit, Offset: offset})
}

func (r *Repo) FindOne(ctx context.Context, id int64, expand bool) (*models.Content, error) {
	return findOne(ctx, r.DB, id, expand)
}

func (r *Repo) FindByExternalID(ctx context.Context, externalID string) (*models.Content, error) {
	row := r.DB.QueryRowContext(ctx, selectColumns+` WHERE external_id = ?`, strings.TrimSpace(externalID))
	c, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(entity, externalID)
	}
	if err != nil {
		return nil, fmt.Errorf("get content by external id: %w", err)
	}
	list := []models.Content{c}
	if err := loadGenres(ctx, r.DB, list, false); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (r *Repo) Update(ctx context.Context, id int64, p Patch) (*models.Content, error) {
	var updated *models.Content
	err := database.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		c, err := findOne(ctx, tx, id, false)
		if err != nil {
			return err
		}
		p.apply(c)
		normalize(c)
		if err := validate(*c); err != nil {
			return err
		}
		if err := update(ctx, tx, c); err != nil {
			return err
		}
		if p.GenreIDs != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM content_genres WHERE content_id = ?`, id); err != nil {
				return fmt.Errorf("clear genres: %w", err)
			}
			if err := linkGenres(ctx, tx, id, c.GenreIDs); err != nil {
				return err
			}
		}
		updated, err = findOne(ctx, tx, id, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpsertExternal inserts or refreshes the row keyed by item.ID. Genre links
// and engagement counters of an existing row are kept when the item carries none.
func (r *Repo) UpsertExternal(ctx context.Context, item models.ContentItem) (*models.Content, bool, error) {
	incoming := models.ContentFromItem(item)
	normalize(&incoming)
	if incoming.ExternalID == "" {
		return nil, false, apperr.Invalid(entity, "externalId", "required", "is required")
	}
	if err := validate(incoming); err != nil {
		return nil, false, err
	}

	var (
		out     *models.Content
		created bool
	)
	err := database.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		var id int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM content WHERE external_id = ?`, incoming.ExternalID).Scan(&id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if id, err = insert(ctx, tx, &incoming); err != nil {
				return err
			}
			created = true
		case err != nil:
			return fmt.Errorf("lookup external id: %w", err)
		default:
			existing, err := findOne(ctx, tx, id, false)
			if err != nil {
				return err
			}
			incoming.ID = id
			incoming.GenreIDs = existing.GenreIDs
			if incoming.ViewCount == 0 {
				incoming.ViewCount = existing.ViewCount
			}
			if incoming.LikeCount == 0 {
				incoming.LikeCount = existing.LikeCount
			}
			if incoming.DislikeCount == 0 {
				incoming.DislikeCount = existing.DislikeCount
			}
			if err := update(ctx, tx, &incoming); err != nil {
				return err
			}
		}
		out, err = findOne(ctx, tx, id, false)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

func (r *Repo) Remove(ctx context.Context, id int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM content WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete content: %w", err)
	}
	return database.RequireAffected(res, apperr.NotFound(entity, id))
}

func insert(ctx context.Context, tx *sql.Tx, c *models.Content) (int64, error) {
	tagsJSON, err := json.Marshal(c.Tags)
	if err != nil {
		return 0, fmt.Errorf("encode tags: %w", err)
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO content (
			external_id, title, category, maturity_rating, release_date, duration_minutes, rating,
			poster_url, backdrop_url, thumbnail_url, trailer_url, video_url,
			description, about, director, tags, is_premium, is_featured,
			view_count, like_count, dislike_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		nullString(c.ExternalID), c.Title, string(c.Category), string(c.MaturityRating),
		nullDate(c.ReleaseDate), c.DurationMinutes, c.Rating,
		c.PosterURL, c.BackdropURL, c.ThumbnailURL, c.TrailerURL, c.VideoURL,
		c.Description, c.About, c.Director, string(tagsJSON), c.IsPremium, c.IsFeatured,
		c.ViewCount, c.LikeCount, c.DislikeCount,
	)
	if err != nil {
		return 0, writeErr("insert content", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

func update(ctx context.Context, tx *sql.Tx, c *models.Content) error {
	tagsJSON, err := json.Marshal(c.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE content SET
			external_id = ?, title = ?, category = ?, maturity_rating = ?, release_date = ?,
			duration_minutes = ?, rating = ?, poster_url = ?, backdrop_url = ?, thumbnail_url = ?,
			trailer_url = ?, video_url = ?, description = ?, about = ?, director = ?, tags = ?,
			is_premium = ?, is_featured = ?, view_count = ?, like_count = ?, dislike_count = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`,
		nullString(c.ExternalID), c.Title, string(c.Category), string(c.MaturityRating), nullDate(c.ReleaseDate),
		c.DurationMinutes, c.Rating, c.PosterURL, c.BackdropURL, c.ThumbnailURL,
		c.TrailerURL, c.VideoURL, c.Description, c.About, c.Director, string(tagsJSON),
		c.IsPremium, c.IsFeatured, c.ViewCount, c.LikeCount, c.DislikeCount,
		c.ID,
	)
	if err != nil {
		return writeErr("update content", err)
	}
	return nil
}

func linkGenres(ctx context.Context, tx *sql.Tx, contentID int64, genreIDs []int64) error {
	for _, gid := range genreIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO content_genres (content_id, genre_id) VALUES (?, ?)
		`, contentID, gid)
		if database.IsForeignKeyViolation(err) {
			return apperr.Invalid(entity, "genreIds", "exists", fmt.Sprintf("genre %d does not exist", gid))
		}
		if err != nil {
			return fmt.Errorf("link genre %d: %w", gid, err)
		}
	}
	return nil
}

// loadGenres fills GenreIDs (and Genres when expand is set) for every row in one query.
func loadGenres(ctx context.Context, q database.Querier, items []models.Content, expand bool) error {
	if len(items) == 0 {
		return nil
	}
	index := make(map[int64]int, len(items))
	args := make([]any, len(items))
	for i := range items {
		index[items[i].ID] = i
		args[i] = items[i].ID
		items[i].GenreIDs = []int64{}
	}

	rows, err := q.QueryContext(ctx, `
		SELECT cg.content_id, g.id, g.name, g.description
		FROM content_genres cg
		JOIN genres g ON g.id = cg.genre_id
		WHERE cg.content_id IN (?`+strings.Repeat(",?", len(items)-1)+`)
		ORDER BY g.name ASC
	`, args...)
	if err != nil {
		return fmt.Errorf("load genres: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			contentID   int64
			g           models.Genre
			description sql.NullString
		)
		if err := rows.Scan(&contentID, &g.ID, &g.Name, &description); err != nil {
			return fmt.Errorf("scan genre link: %w", err)
		}
		g.Description = description.String
		i := index[contentID]
		items[i].GenreIDs = append(items[i].GenreIDs, g.ID)
		if expand {
			items[i].Genres = append(items[i].Genres, g)
		}
	}
	return rows.Err()
}

const selectColumns = `
	SELECT id, external_id, title, category, maturity_rating, release_date, duration_minutes, rating,
		poster_url, backdrop_url, thumbnail_url, trailer_url, video_url,
		description, about, director, tags, is_premium, is_featured,
		view_count, like_count, dislike_count, created_at, updated_at
	FROM content`

func findOne(ctx context.Context, q database.Querier, id int64, expand bool) (*models.Content, error) {
	row := q.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	c, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(entity, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get content: %w", err)
	}
	list := []models.Content{c}
	if err := loadGenres(ctx, q, list, expand); err != nil {
		return nil, err
	}
	return &list[0], nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (models.Content, error) {
	var (
		c          models.Content
		externalID sql.NullString
		maturity   sql.NullString
		release    sql.NullTime
		duration   sql.NullInt64
		rating     sql.NullFloat64
		poster     sql.NullString
		backdrop   sql.NullString
		thumbnail  sql.NullString
		trailer    sql.NullString
		video      sql.NullString
		desc       sql.NullString
		about      sql.NullString
		director   sql.NullString
		tagsJSON   string
		category   string
	)
	if err := s.Scan(
		&c.ID, &externalID, &c.Title, &category, &maturity, &release, &duration, &rating,
		&poster, &backdrop, &thumbnail, &trailer, &video,
		&desc, &about, &director, &tagsJSON, &c.IsPremium, &c.IsFeatured,
		&c.ViewCount, &c.LikeCount, &c.DislikeCount, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return c, err
	}

	c.ExternalID = externalID.String
	c.Category = models.Category(category)
	c.MaturityRating = models.MaturityRating(maturity.String)
	if release.Valid {
		t := release.Time.UTC()
		c.ReleaseDate = &t
	}
	if duration.Valid {
		d := int(duration.Int64)
		c.DurationMinutes = &d
	}
	if rating.Valid {
		v := rating.Float64
		c.Rating = &v
	}
	c.PosterURL = poster.String
	c.BackdropURL = backdrop.String
	c.ThumbnailURL = thumbnail.String
	c.TrailerURL = trailer.String
	c.VideoURL = video.String
	c.Description = desc.String
	c.About = about.String
	c.Director = director.String

	c.Tags = []string{}
	if err := json.Unmarshal([]byte(tagsJSON), &c.Tags); err != nil {
		return models.Content{}, fmt.Errorf("decode tags of content %d: %w", c.ID, err)
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return c, nil
}

// buildListSQL builds either COUNT(*) or the SELECT list.
func buildListSQL(q ListQuery, countOnly bool) (string, []any) {
	base := selectColumns
	if countOnly {
		base = `SELECT COUNT(*) FROM content`
	}

	var where []string
	var args []any

	if kw := strings.TrimSpace(q.Q); kw != "" {
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(director) LIKE ?)")
		kw = "%" + strings.ToLower(kw) + "%"
		args = append(args, kw, kw)
	}
	if cat := strings.TrimSpace(q.Category); cat != "" {
		if parsed, ok := models.ParseCategory(cat); ok {
			cat = string(parsed)
		}
		where = append(where, "category = ?")
		args = append(args, cat)
	}
	if g := strings.TrimSpace(q.Genre); g != "" {
		where = append(where, `id IN (
			SELECT cg.content_id FROM content_genres cg
			JOIN genres g ON g.id = cg.genre_id
			WHERE CAST(g.id AS TEXT) = ? OR g.name = ? COLLATE NOCASE)`)
		args = append(args, g, g)
	}

	sqlStr := base
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}
	if !countOnly {
		limit, offset := database.Page(q.Limit, q.Offset)
		sqlStr += " ORDER BY title ASC, id ASC LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}
	return sqlStr, args
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// release dates are stored as plain dates
func nullDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format("2006-01-02")
}

func writeErr(op string, err error) error {
	if database.IsUniqueViolation(err) {
		return &apperr.ConflictError{Entity: entity, Reason: "externalId already exists", Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
