package tentacles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaginationStyles(t *testing.T) {
	tests := []struct {
		style PaginationStyle
		req   PageRequest
		want  map[string]interface{}
	}{
		{PaginationOffsetLimit, PageRequest{Page: 3, Size: 20}, map[string]interface{}{"offset": 40, "limit": 20}},
		{PaginationOffsetLimit, PageRequest{}, map[string]interface{}{"offset": 0, "limit": DefaultPageSize}},
		{PaginationPageSize, PageRequest{Page: 2, Size: 5}, map[string]interface{}{"page": 2, "size": 5}},
		{PaginationPage, PageRequest{Page: 4}, map[string]interface{}{"page": 4}},
		{PaginationCursor, PageRequest{Size: 50, StartingAfter: "cus_9"}, map[string]interface{}{"limit": 50, "starting_after": "cus_9"}},
		{PaginationCursor, PageRequest{EndingBefore: "cus_1"}, map[string]interface{}{"limit": DefaultPageSize, "ending_before": "cus_1"}},
		{PaginationCursor, PageRequest{StartingAfter: "a", EndingBefore: "b"}, map[string]interface{}{"limit": DefaultPageSize, "starting_after": "a"}},
		{PaginationRelay, PageRequest{Size: 25, StartingAfter: "c1"}, map[string]interface{}{"first": 25, "after": "c1"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.style), func(t *testing.T) {
			got, err := tt.style.Params(tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPaginationRejectsInvalidPages(t *testing.T) {
	_, err := PaginationOffsetLimit.Params(PageRequest{Page: -1})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = PaginationPageSize.Params(PageRequest{Size: -5})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = PaginationCursor.Params(PageRequest{Size: 101})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = PaginationStyle("bogus").Params(PageRequest{})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestParsePaginationStyle(t *testing.T) {
	s, err := ParsePaginationStyle(" Cursor ")
	require.NoError(t, err)
	assert.Equal(t, PaginationCursor, s)

	s, err = ParsePaginationStyle("")
	require.NoError(t, err)
	assert.Equal(t, PaginationOffsetLimit, s)

	_, err = ParsePaginationStyle("keyset")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestPaginationFuncAppliesDefaults(t *testing.T) {
	var seen PageRequest
	f := PaginationFunc(func(p PageRequest) (map[string]interface{}, error) {
		seen = p
		return map[string]interface{}{}, nil
	})
	_, err := f.Params(PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, seen.Page)
	assert.Equal(t, DefaultPageSize, seen.Size)
}
