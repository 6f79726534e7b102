package tentacles

import "strings"

// PaginationStyle selects how page requests become query parameters. The style
// is provider configuration and is never inferred from responses.
type PaginationStyle string

const (
	PaginationOffsetLimit PaginationStyle = "offset_limit"
	PaginationPageSize    PaginationStyle = "page_size"
	PaginationPage        PaginationStyle = "page"
	PaginationCursor      PaginationStyle = "cursor"
	// PaginationRelay is first/after, as used by GraphQL connections.
	PaginationRelay PaginationStyle = "relay"
)

const (
	DefaultPageSize   = 10
	maxCursorPageSize = 100
)

// PageRequest describes the page a caller wants. Page is 1-based.
type PageRequest struct {
	Page          int
	Size          int
	StartingAfter string
	EndingBefore  string
}

func (p PageRequest) withDefaults() PageRequest {
	if p.Page == 0 {
		p.Page = 1
	}
	if p.Size == 0 {
		p.Size = DefaultPageSize
	}
	return p
}

// ParsePaginationStyle accepts the configuration spelling of a style.
func ParsePaginationStyle(s string) (PaginationStyle, error) {
	switch style := PaginationStyle(strings.ToLower(strings.TrimSpace(s))); style {
	case "":
		return PaginationOffsetLimit, nil
	case PaginationOffsetLimit, PaginationPageSize, PaginationPage, PaginationCursor, PaginationRelay:
		return style, nil
	default:
		return "", NewError(ErrConfiguration, "unknown pagination style %q", s)
	}
}

// Params implements PaginationStrategy for the built-in styles.
func (s PaginationStyle) Params(p PageRequest) (map[string]interface{}, error) {
	p = p.withDefaults()
	if p.Page < 1 {
		return nil, NewError(ErrValidation, "page number must be 1 or greater, got %d", p.Page)
	}
	if p.Size < 1 {
		return nil, NewError(ErrValidation, "page size must be 1 or greater, got %d", p.Size)
	}

	switch s {
	case PaginationOffsetLimit, "":
		return map[string]interface{}{"offset": (p.Page - 1) * p.Size, "limit": p.Size}, nil
	case PaginationPageSize:
		return map[string]interface{}{"page": p.Page, "size": p.Size}, nil
	case PaginationPage:
		return map[string]interface{}{"page": p.Page}, nil
	case PaginationCursor:
		if p.Size > maxCursorPageSize {
			return nil, NewError(ErrValidation, "page size must be between 1 and %d, got %d", maxCursorPageSize, p.Size)
		}
		params := map[string]interface{}{"limit": p.Size}
		// starting_after and ending_before are mutually exclusive.
		if p.StartingAfter != "" {
			params["starting_after"] = p.StartingAfter
		} else if p.EndingBefore != "" {
			params["ending_before"] = p.EndingBefore
		}
		return params, nil
	case PaginationRelay:
		params := map[string]interface{}{"first": p.Size}
		if p.StartingAfter != "" {
			params["after"] = p.StartingAfter
		}
		return params, nil
	default:
		return nil, NewError(ErrConfiguration, "unknown pagination style %q", string(s))
	}
}

// PaginationFunc adapts a function to PaginationStrategy, for providers with
// bespoke parameters (e.g. a SOQL LIMIT/OFFSET clause).
type PaginationFunc func(p PageRequest) (map[string]interface{}, error)

func (f PaginationFunc) Params(p PageRequest) (map[string]interface{}, error) {
	return f(p.withDefaults())
}
