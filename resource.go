package tentacles

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// ResourceConfig describes one entity type of a provider.
type ResourceConfig struct {
	// Path is the collection endpoint, e.g. "/v1/customers" or "issue".
	Path string
	// UpdateMethod defaults to PUT. Stripe updates with POST, HubSpot with PATCH.
	UpdateMethod string
	Mapper       FieldMapper
	// Pagination overrides the requester's strategy for this resource.
	Pagination PaginationStrategy
	// CacheReads serves List and Get from the client cache.
	CacheReads bool
	// TrailingSlash appends "/" to item paths, e.g. Certn's /applicants/{id}/.
	TrailingSlash bool
}

// Resource is the CRUD façade over one entity type.
type Resource struct {
	requester Requester
	config    ResourceConfig
}

func NewResource(requester Requester, config ResourceConfig) *Resource {
	if config.UpdateMethod == "" {
		config.UpdateMethod = http.MethodPut
	}
	if config.Mapper == nil {
		config.Mapper = IdentityMapper{}
	}
	return &Resource{requester: requester, config: config}
}

// ListOptions selects a page plus any provider-specific filters.
type ListOptions struct {
	PageRequest
	Params map[string]interface{}
}

func (r *Resource) pagination() PaginationStrategy {
	if r.config.Pagination != nil {
		return r.config.Pagination
	}
	if p := r.requester.Pagination(); p != nil {
		return p
	}
	return PaginationOffsetLimit
}

func (r *Resource) List(ctx context.Context, opts ListOptions) (*Response, error) {
	params, err := r.pagination().Params(opts.PageRequest)
	if err != nil {
		return nil, err
	}
	for k, v := range opts.Params {
		params[k] = v
	}
	return r.requester.Do(ctx, &Request{
		Method:   http.MethodGet,
		Endpoint: r.config.Path,
		Params:   params,
		UseCache: r.config.CacheReads,
	})
}

func (r *Resource) Get(ctx context.Context, id string) (*Response, error) {
	if id == "" {
		return nil, NewError(ErrValidation, "resource id is required")
	}
	return r.requester.Do(ctx, &Request{
		Method:   http.MethodGet,
		Endpoint: r.itemPath(id),
		UseCache: r.config.CacheReads,
	})
}

func (r *Resource) Create(ctx context.Context, data map[string]interface{}) (*Response, error) {
	return r.requester.Do(ctx, &Request{
		Method:   http.MethodPost,
		Endpoint: r.config.Path,
		Body:     r.config.Mapper.MapFields(data),
	})
}

func (r *Resource) Update(ctx context.Context, id string, data map[string]interface{}) (*Response, error) {
	if id == "" {
		return nil, NewError(ErrValidation, "resource id is required")
	}
	return r.requester.Do(ctx, &Request{
		Method:   r.config.UpdateMethod,
		Endpoint: r.itemPath(id),
		Body:     r.config.Mapper.MapFields(data),
	})
}

func (r *Resource) Delete(ctx context.Context, id string) error {
	if id == "" {
		return NewError(ErrValidation, "resource id is required")
	}
	_, err := r.requester.Do(ctx, &Request{
		Method:   http.MethodDelete,
		Endpoint: r.itemPath(id),
	})
	return err
}

func (r *Resource) itemPath(id string) string {
	p := strings.TrimRight(r.config.Path, "/") + "/" + url.PathEscape(id)
	if r.config.TrailingSlash {
		p += "/"
	}
	return p
}
