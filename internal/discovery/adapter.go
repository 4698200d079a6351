package discovery

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/tidwall/gjson"

	"streamhub/internal/apperr"
	"streamhub/pkg/models"
)

// Field names one canonical attribute.
type Field string

const (
	FieldID           Field = "id"
	FieldTitle        Field = "title"
	FieldCategory     Field = "category"
	FieldReleaseDate  Field = "releaseDate"
	FieldDuration     Field = "durationMinutes"
	FieldRating       Field = "rating"
	FieldMaturity     Field = "maturity"
	FieldPoster       Field = "poster"
	FieldBackdrop     Field = "backdrop"
	FieldThumbnail    Field = "thumbnail"
	FieldTrailer      Field = "trailer"
	FieldVideo        Field = "video"
	FieldDescription  Field = "description"
	FieldAbout        Field = "about"
	FieldDirector     Field = "director"
	FieldTags         Field = "tags"
	FieldIsPremium    Field = "isPremium"
	FieldIsFeatured   Field = "isFeatured"
	FieldViewCount    Field = "viewCount"
	FieldLikeCount    Field = "likeCount"
	FieldDislikeCount Field = "dislikeCount"
)

// AliasTable lists, per canonical field, the upstream keys to try in priority order.
type AliasTable map[Field][]string

var DefaultAliases = AliasTable{
	FieldID:           {"id", "_id", "uuid", "contentId", "slug"},
	FieldTitle:        {"title", "name", "originalTitle", "original_title"},
	FieldCategory:     {"category", "type", "mediaType", "media_type"},
	FieldReleaseDate:  {"releaseDate", "release_date", "releasedAt", "first_air_date", "year"},
	FieldDuration:     {"durationMinutes", "duration", "runtime", "duration_minutes"},
	FieldRating:       {"rating", "imdbRating", "imdb_rating", "vote_average", "score"},
	FieldMaturity:     {"maturityRating", "maturity_rating", "ageRating", "certification", "contentRating"},
	FieldPoster:       {"poster", "posterUrl", "thumbnail", "poster_url"},
	FieldBackdrop:     {"backdrop", "backdropUrl", "backdrop_url", "banner"},
	FieldThumbnail:    {"thumbnail", "thumbnailUrl", "thumbnail_url"},
	FieldTrailer:      {"trailer", "trailerUrl", "trailer_url"},
	FieldVideo:        {"video", "videoUrl", "video_url", "streamUrl"},
	FieldDescription:  {"description", "overview", "summary", "synopsis"},
	FieldAbout:        {"about", "tagline"},
	FieldDirector:     {"director", "directedBy", "creator"},
	FieldTags:         {"tags", "genres", "genre", "keywords"},
	FieldIsPremium:    {"isPremium", "is_premium", "premium"},
	FieldIsFeatured:   {"isFeatured", "is_featured", "featured"},
	FieldViewCount:    {"viewCount", "views", "view_count"},
	FieldLikeCount:    {"likeCount", "likes", "like_count"},
	FieldDislikeCount: {"dislikeCount", "dislikes", "dislike_count"},
}

// Adapter turns one raw upstream record into a ContentItem. It holds no
// state beyond its alias table, so Adapt is safe for concurrent use.
type Adapter struct {
	Aliases AliasTable
}

func NewAdapter() *Adapter {
	return &Adapter{Aliases: DefaultAliases}
}

var dateLayouts = []string{time.RFC3339, "2006-01-02", "2006"}

// Adapt maps raw onto the canonical item. Unknown keys are dropped; values
// that cannot be coerced leave their field unset. It fails only when raw is
// not a JSON object or has no usable id or title.
func (a *Adapter) Adapt(raw []byte) (models.ContentItem, error) {
	var item models.ContentItem
	if !gjson.ValidBytes(raw) {
		return item, &apperr.MalformedRecordError{Reason: "invalid JSON"}
	}
	rec := gjson.ParseBytes(raw)
	if !rec.IsObject() {
		return item, &apperr.MalformedRecordError{Reason: "not a JSON object"}
	}

	item.ID = a.scalar(rec, FieldID)
	if item.ID == "" {
		return models.ContentItem{}, &apperr.MalformedRecordError{Field: "id", Reason: "missing identity"}
	}
	item.Title = a.scalar(rec, FieldTitle)
	if item.Title == "" {
		return models.ContentItem{}, &apperr.MalformedRecordError{Field: "title", Reason: "missing title"}
	}

	if v, ok := a.first(rec, FieldCategory); ok {
		item.Category, _ = models.ParseCategory(v.String())
	}
	if v, ok := a.first(rec, FieldMaturity); ok {
		item.Maturity, _ = models.ParseMaturity(v.String())
	}
	if v, ok := a.first(rec, FieldReleaseDate); ok {
		item.ReleaseDate = parseDate(v)
	}
	if v, ok := a.first(rec, FieldDuration); ok {
		if n, ok := wholeNumber(v); ok && n >= 0 {
			d := int(n)
			item.DurationMinutes = &d
		}
	}
	if v, ok := a.first(rec, FieldRating); ok {
		if f, err := cast.ToFloat64E(v.Value()); err == nil && f >= 0 && f <= 10 {
			item.Rating = &f
		}
	}

	item.PosterURL = a.text(rec, FieldPoster)
	item.BackdropURL = a.text(rec, FieldBackdrop)
	item.ThumbnailURL = a.text(rec, FieldThumbnail)
	item.TrailerURL = a.text(rec, FieldTrailer)
	item.VideoURL = a.text(rec, FieldVideo)
	item.Description = a.text(rec, FieldDescription)
	item.About = a.text(rec, FieldAbout)
	item.Director = a.text(rec, FieldDirector)

	if v, ok := a.first(rec, FieldTags); ok {
		item.Tags = parseTags(v)
	}

	item.IsPremium = a.flag(rec, FieldIsPremium)
	item.IsFeatured = a.flag(rec, FieldIsFeatured)
	item.ViewCount = a.counter(rec, FieldViewCount)
	item.LikeCount = a.counter(rec, FieldLikeCount)
	item.DislikeCount = a.counter(rec, FieldDislikeCount)

	return item, nil
}

// first returns the value of the first alias that is present and non-empty.
func (a *Adapter) first(rec gjson.Result, f Field) (gjson.Result, bool) {
	for _, key := range a.Aliases[f] {
		v := rec.Get(gjson.Escape(key))
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		if v.Type == gjson.String && strings.TrimSpace(v.Str) == "" {
			continue
		}
		if v.IsArray() && len(v.Array()) == 0 {
			continue
		}
		return v, true
	}
	return gjson.Result{}, false
}

// scalar reads a string or number as trimmed text.
func (a *Adapter) scalar(rec gjson.Result, f Field) string {
	v, ok := a.first(rec, f)
	if !ok || (v.Type != gjson.String && v.Type != gjson.Number) {
		return ""
	}
	return strings.TrimSpace(v.String())
}

func (a *Adapter) text(rec gjson.Result, f Field) string {
	v, ok := a.first(rec, f)
	if !ok || v.Type != gjson.String {
		return ""
	}
	return strings.TrimSpace(v.Str)
}

func (a *Adapter) flag(rec gjson.Result, f Field) bool {
	v, ok := a.first(rec, f)
	if !ok {
		return false
	}
	switch v.Type {
	case gjson.True:
		return true
	case gjson.Number:
		return v.Num != 0
	case gjson.String:
		b, err := cast.ToBoolE(strings.TrimSpace(v.Str))
		return err == nil && b
	}
	return false
}

func (a *Adapter) counter(rec gjson.Result, f Field) int64 {
	v, ok := a.first(rec, f)
	if !ok {
		return 0
	}
	n, ok := wholeNumber(v)
	if !ok || n < 0 {
		return 0
	}
	return n
}

// wholeNumber truncates a JSON number or a decimal string. Strings go through
// ParseFloat so "010" is ten, not the octal cast would read.
func wholeNumber(v gjson.Result) (int64, bool) {
	if v.Type == gjson.String {
		f, err := cast.ToFloat64E(strings.TrimSpace(v.Str))
		if err != nil {
			return 0, false
		}
		return int64(f), true
	}
	n, err := cast.ToInt64E(v.Value())
	return n, err == nil
}

// parseDate accepts RFC3339, a plain date, or a bare year (string or number).
func parseDate(v gjson.Result) *time.Time {
	s := strings.TrimSpace(v.String())
	if v.Type == gjson.Number {
		s = strconv.Itoa(int(v.Int()))
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// parseTags accepts ["a","b"], [{"name":"a"}], or "a, b".
func parseTags(v gjson.Result) []string {
	var raw []string
	switch {
	case v.IsArray():
		for _, el := range v.Array() {
			switch {
			case el.Type == gjson.String:
				raw = append(raw, el.Str)
			case el.IsObject():
				raw = append(raw, el.Get("name").String())
			}
		}
	case v.Type == gjson.String:
		raw = strings.Split(v.Str, ",")
	}

	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, t := range raw {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
