package tentacles

import "context"

// Authenticator produces request headers for a provider and keeps its credential fresh.
type Authenticator interface {
	// AuthHeaders returns the headers to attach, refreshing first if the credential expired.
	AuthHeaders(ctx context.Context) (map[string]string, error)
	EnsureValidToken(ctx context.Context) error
	// Refresh forces a credential refresh. Used once after a 401.
	Refresh(ctx context.Context) error
}

// QueryAuthenticator is implemented by strategies that also place the credential in the query string.
type QueryAuthenticator interface {
	AuthQuery(ctx context.Context) (map[string]string, error)
}

// InstanceURLProvider is implemented by strategies whose token response names the API host.
type InstanceURLProvider interface {
	InstanceURL() string
}

// Requester is the CRUD transport a Resource is built on. Both the REST client
// and the GraphQL client implement it.
type Requester interface {
	Do(ctx context.Context, req *Request) (*Response, error)
	Pagination() PaginationStrategy
}

// PaginationStrategy turns a page request into provider query parameters.
type PaginationStrategy interface {
	Params(p PageRequest) (map[string]interface{}, error)
}

// ErrorTranslator maps a non-2xx response onto the error taxonomy.
type ErrorTranslator interface {
	Translate(resp *Response) error
}

// FieldMapper rewrites outgoing body keys into the provider's naming.
type FieldMapper interface {
	MapFields(body map[string]interface{}) map[string]interface{}
}

// FieldSelector names the GraphQL fields selected for a resource type.
type FieldSelector interface {
	Fields(resourceType string) string
}
