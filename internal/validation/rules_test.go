package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamhub/internal/apperr"
)

var contentLike = RuleSet{
	Entity: "content",
	Rules: []Rule{
		{Field: "title", Required: true, MaxLen: 10},
		{Field: "category", Required: true, OneOf: []string{"movie", "series"}},
		{Field: "maturityRating", OneOf: []string{"PG", "PG-13"}},
		{Field: "rating", Min: Bound(0), Max: Bound(10)},
		{Field: "viewCount", Min: Bound(0)},
		{Field: "posterUrl", Format: "url"},
	},
}

func TestRuleSetAcceptsValidInput(t *testing.T) {
	rating := 7.5
	err := contentLike.Validate(map[string]any{
		"title":          "Heat",
		"category":       "movie",
		"maturityRating": "",
		"rating":         Opt(&rating),
		"viewCount":      int64(0),
		"posterUrl":      "",
	})
	assert.NoError(t, err)
}

func TestRuleSetCollectsViolationsInRuleOrder(t *testing.T) {
	rating := 11.0
	err := contentLike.Validate(map[string]any{
		"title":          "",
		"category":       "INVALID",
		"maturityRating": "X",
		"rating":         Opt(&rating),
		"viewCount":      int64(-1),
		"posterUrl":      "not a url",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	var ve *apperr.ValidationError
	require.True(t, errors.As(err, &ve))
	fields := make([]string, 0, len(ve.Fields))
	for _, f := range ve.Fields {
		fields = append(fields, f.Field+"/"+f.Rule)
	}
	assert.Equal(t, []string{
		"title/required",
		"category/oneof",
		"maturityRating/oneof",
		"rating/max",
		"viewCount/min",
		"posterUrl/url",
	}, fields)
	assert.Equal(t, "must be one of: movie, series", ve.Fields[1].Message)
}

func TestRuleSetMissingRequiredAndNilPointers(t *testing.T) {
	var rating *float64
	err := contentLike.Validate(map[string]any{
		"rating": Opt(rating),
	})
	var ve *apperr.ValidationError
	require.True(t, errors.As(err, &ve))
	require.Len(t, ve.Fields, 2)
	assert.Equal(t, "title", ve.Fields[0].Field)
	assert.Equal(t, "category", ve.Fields[1].Field)
}

func TestMaxLen(t *testing.T) {
	err := contentLike.Validate(map[string]any{"title": "a very long title", "category": "movie"})
	var ve *apperr.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "must be at most 10 characters", ve.Fields[0].Message)
}
