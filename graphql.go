package tentacles

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode"
)

// DefaultGraphQLFields is selected when a provider does not name fields for a type.
const DefaultGraphQLFields = "title\ndescription"

// Operation is a GraphQL document plus its variables, derived from a REST-shaped call.
type Operation struct {
	Query     string
	Variables map[string]interface{}
	// Field is the top-level response field the result is unwrapped from.
	Field    string
	Mutation bool
}

// FieldsFunc adapts a function to FieldSelector.
type FieldsFunc func(resourceType string) string

func (f FieldsFunc) Fields(resourceType string) string { return f(resourceType) }

// GraphQLClient maps CRUD calls onto one GraphQL endpoint. Auth, rate limiting,
// the 401 retry and error translation all come from the wrapped Client, whose
// BaseURL must be the GraphQL endpoint.
type GraphQLClient struct {
	client *Client
	fields FieldSelector
}

func NewGraphQLClient(client *Client, fields FieldSelector) *GraphQLClient {
	return &GraphQLClient{client: client, fields: fields}
}

func (g *GraphQLClient) Pagination() PaginationStrategy { return PaginationRelay }

func (g *GraphQLClient) Client() *Client { return g.client }

func (g *GraphQLClient) fieldsFor(resourceType string) string {
	if g.fields != nil {
		if f := strings.TrimSpace(g.fields.Fields(resourceType)); f != "" {
			return f
		}
	}
	return DefaultGraphQLFields
}

// Translate builds the GraphQL operation for method and endpoint. The first
// path segment is the resource type and the optional second one its id.
func (g *GraphQLClient) Translate(method, endpoint string, params map[string]interface{}, body interface{}) (*Operation, error) {
	parts := strings.Split(strings.Trim(endpoint, "/"), "/")
	resourceType := parts[0]
	if resourceType == "" {
		return nil, NewError(ErrValidation, "graphql endpoint %q names no resource type", endpoint)
	}
	var id string
	if len(parts) > 1 {
		id = parts[1]
	}
	title := titleCase(resourceType)
	raw := g.fieldsFor(resourceType)
	fields := indent(raw, "    ")

	switch strings.ToUpper(method) {
	case http.MethodGet:
		if id != "" {
			return &Operation{
				Query: fmt.Sprintf("query Get%s($id: String!) {\n  %s(id: $id) {\n    id\n%s\n  }\n}",
					title, resourceType, fields),
				Variables: map[string]interface{}{"id": id},
				Field:     resourceType,
			}, nil
		}
		vars := map[string]interface{}{}
		for k, v := range params {
			vars[k] = v
		}
		return &Operation{
			Query: fmt.Sprintf("query List%ss($first: Int, $after: String) {\n  %ss(first: $first, after: $after) {\n    nodes {\n      id\n%s\n    }\n    pageInfo {\n      hasNextPage\n      endCursor\n    }\n  }\n}",
				title, resourceType, indent(raw, "      ")),
			Variables: vars,
			Field:     resourceType + "s",
		}, nil
	case http.MethodPost:
		return &Operation{
			Query: fmt.Sprintf("mutation Create%s($input: Create%sInput!) {\n  create%s(input: $input) {\n    id\n%s\n  }\n}",
				title, title, title, fields),
			Variables: map[string]interface{}{"input": inputOf(body)},
			Field:     "create" + title,
			Mutation:  true,
		}, nil
	case http.MethodPut, http.MethodPatch:
		if id == "" {
			return nil, NewError(ErrValidation, "update of %s needs an id", resourceType)
		}
		return &Operation{
			Query: fmt.Sprintf("mutation %sUpdate($id: String!, $input: %sUpdateInput!) {\n  %sUpdate(id: $id, input: $input) {\n    success\n    %s {\n      id\n%s\n    }\n  }\n}",
				title, title, resourceType, resourceType, indent(raw, "      ")),
			Variables: map[string]interface{}{"id": id, "input": inputOf(body)},
			Field:     resourceType + "Update",
			Mutation:  true,
		}, nil
	case http.MethodDelete:
		if id == "" {
			return nil, NewError(ErrValidation, "delete of %s needs an id", resourceType)
		}
		return &Operation{
			Query:     fmt.Sprintf("mutation Delete%s($id: ID!) {\n  delete%s(id: $id) {\n    success\n  }\n}", title, title),
			Variables: map[string]interface{}{"id": id},
			Field:     "delete" + title,
			Mutation:  true,
		}, nil
	default:
		return nil, NewError(ErrValidation, "unsupported method %s for graphql", method)
	}
}

// Do translates req, executes it and returns the unwrapped top-level field as the response body.
func (g *GraphQLClient) Do(ctx context.Context, req *Request) (*Response, error) {
	op, err := g.Translate(req.Method, req.Endpoint, req.Params, req.Body)
	if err != nil {
		return nil, err
	}

	cache := g.client.cache
	cacheable := req.UseCache && !op.Mutation && cache.Enabled()
	var key string
	if cacheable {
		key = CacheKey("QUERY", op.Query, op.Variables)
		if resp, ok := cache.Get(key); ok {
			g.client.metrics.ObserveCache(g.client.config.Name, true)
			return resp, nil
		}
		g.client.metrics.ObserveCache(g.client.config.Name, false)
	}

	data, err := g.Execute(ctx, op.Query, op.Variables)
	if err != nil {
		return nil, err
	}
	raw, ok := data[op.Field]
	if !ok || string(raw) == "null" {
		if !op.Mutation {
			return nil, &Error{Kind: ErrNotFound, Provider: g.client.config.Name, Message: fmt.Sprintf("%s not found", req.Endpoint)}
		}
		raw = json.RawMessage("null")
	}

	resp := &Response{StatusCode: http.StatusOK, Headers: map[string]string{}, Data: raw}
	if cacheable {
		cache.Set(key, resp)
	}
	return resp, nil
}

type graphqlResponse struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []graphqlError             `json:"errors"`
}

type graphqlError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// Execute POSTs {query, variables} and returns the data object.
func (g *GraphQLClient) Execute(ctx context.Context, query string, variables map[string]interface{}) (map[string]json.RawMessage, error) {
	resp, err := g.client.Do(ctx, &Request{
		Method: http.MethodPost,
		Body:   map[string]interface{}{"query": query, "variables": variables},
	})
	if err != nil {
		return nil, err
	}

	var out graphqlResponse
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return nil, &Error{Kind: ErrAPI, Provider: g.client.config.Name, Message: "decode graphql response", Body: resp.Data, Err: err}
	}
	if len(out.Errors) > 0 {
		return nil, graphqlErrorToError(g.client.config.Name, resp, out.Errors)
	}
	return out.Data, nil
}

// GraphQLTranslator reads the errors array GraphQL servers send with non-2xx
// responses and falls back to the status code.
type GraphQLTranslator struct {
	Provider string
}

func (t GraphQLTranslator) Translate(resp *Response) error {
	var out graphqlResponse
	if err := json.Unmarshal(resp.Data, &out); err == nil && len(out.Errors) > 0 {
		e := graphqlErrorToError(t.Provider, resp, out.Errors)
		if e.Kind == ErrAPI {
			e.Kind = KindForStatus(resp.StatusCode)
		}
		return e
	}
	return StatusTranslator{Provider: t.Provider}.Translate(resp)
}

func graphqlErrorToError(provider string, resp *Response, errs []graphqlError) *Error {
	first := errs[0]
	kind := ErrAPI
	switch strings.ToUpper(first.Extensions.Code) {
	case "UNAUTHENTICATED", "AUTHENTICATION_ERROR", "FORBIDDEN":
		kind = ErrAuthentication
	case "NOT_FOUND", "ENTITY_NOT_FOUND":
		kind = ErrNotFound
	case "RATELIMITED", "RATE_LIMITED":
		kind = ErrRateLimit
	case "BAD_USER_INPUT", "INVALID_INPUT", "GRAPHQL_VALIDATION_FAILED":
		kind = ErrValidation
	}
	return &Error{
		Kind:       kind,
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Code:       first.Extensions.Code,
		Message:    first.Message,
		Body:       resp.Data,
	}
}

func inputOf(body interface{}) interface{} {
	if body == nil {
		return map[string]interface{}{}
	}
	return body
}

func titleCase(s string) string {
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + strings.TrimSpace(l)
	}
	return strings.Join(lines, "\n")
}
