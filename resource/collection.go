package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	sprada "github.com/Khatrip009/adminsprada-sub000"
)

// ErrUnexpectedShape is returned when a list response is neither an array nor an
// object wrapping one.
var ErrUnexpectedShape = errors.New("unexpected list response shape")

// Requester issues requests. *sprada.Client implements it.
type Requester interface {
	Do(ctx context.Context, method, path string, body any, opts ...sprada.RequestOption) (*sprada.Result, error)
}

// Record is an untyped API object.
type Record map[string]any

// ID returns the "id" field as a string, whether the API sent a number or a string.
func (r Record) ID() string {
	switch v := r["id"].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// ListOptions narrows a List call. Zero values are omitted from the query.
type ListOptions struct {
	Limit  int
	Offset int
	Query  url.Values
}

func (o ListOptions) values() url.Values {
	q := url.Values{}
	for k, vs := range o.Query {
		q[k] = append([]string(nil), vs...)
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		q.Set("offset", strconv.Itoa(o.Offset))
	}
	return q
}

// Page is one List result. Total is the server's count when it sent one, otherwise the
// number of items.
type Page[T any] struct {
	Items []T
	Total int
}

// Collection is CRUD access to one endpoint.
type Collection[T any] struct {
	client Requester
	name   string
}

// NewCollection returns a collection served at "/"+name.
func NewCollection[T any](client Requester, name string) *Collection[T] {
	return &Collection[T]{
		client: client,
		name:   strings.Trim(name, "/"),
	}
}

// Products returns the /products collection.
func Products(client Requester) *Collection[Record] { return NewCollection[Record](client, "products") }

// Blogs returns the /blogs collection.
func Blogs(client Requester) *Collection[Record] { return NewCollection[Record](client, "blogs") }

// Leads returns the /leads collection.
func Leads(client Requester) *Collection[Record] { return NewCollection[Record](client, "leads") }

// Users returns the /users collection.
func Users(client Requester) *Collection[Record] { return NewCollection[Record](client, "users") }

// Name returns the collection name.
func (c *Collection[T]) Name() string {
	return c.name
}

func (c *Collection[T]) path(id string) string {
	if id == "" {
		return "/" + c.name
	}
	return "/" + c.name + "/" + url.PathEscape(id)
}

// List fetches a page. The response may be a bare array or an object carrying the
// array under "data", "items", "results" or the collection name.
func (c *Collection[T]) List(ctx context.Context, opts ListOptions) (Page[T], error) {
	var reqOpts []sprada.RequestOption
	if q := opts.values(); len(q) > 0 {
		reqOpts = append(reqOpts, sprada.WithQuery(q))
	}
	res, err := c.client.Do(ctx, http.MethodGet, c.path(""), nil, reqOpts...)
	if err != nil {
		return Page[T]{}, err
	}
	return decodePage[T](res.Bytes(), c.name)
}

// Get fetches one item.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	res, err := c.client.Do(ctx, http.MethodGet, c.path(id), nil)
	if err != nil {
		var zero T
		return zero, err
	}
	return decodeItem[T](res)
}

// Create posts item and returns the stored version.
func (c *Collection[T]) Create(ctx context.Context, item T) (T, error) {
	res, err := c.client.Do(ctx, http.MethodPost, c.path(""), item)
	if err != nil {
		var zero T
		return zero, err
	}
	return decodeItem[T](res)
}

// Update replaces the item with id and returns the stored version.
func (c *Collection[T]) Update(ctx context.Context, id string, item T) (T, error) {
	res, err := c.client.Do(ctx, http.MethodPut, c.path(id), item)
	if err != nil {
		var zero T
		return zero, err
	}
	return decodeItem[T](res)
}

// Delete removes the item with id.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	_, err := c.client.Do(ctx, http.MethodDelete, c.path(id), nil)
	return err
}

// decodeItem decodes a single object. An empty body gives the zero value.
func decodeItem[T any](res *sprada.Result) (T, error) {
	var item T
	if len(bytes.TrimSpace(res.Bytes())) == 0 {
		return item, nil
	}
	if err := json.Unmarshal(res.Bytes(), &item); err != nil {
		return item, fmt.Errorf("resource: decode item: %w", err)
	}
	return item, nil
}

func decodePage[T any](body []byte, name string) (Page[T], error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return Page[T]{}, nil
	}

	var page Page[T]
	switch body[0] {
	case '[':
		if err := json.Unmarshal(body, &page.Items); err != nil {
			return Page[T]{}, fmt.Errorf("resource: decode list: %w", err)
		}
		page.Total = len(page.Items)
		return page, nil
	case '{':
	default:
		return Page[T]{}, ErrUnexpectedShape
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Page[T]{}, fmt.Errorf("resource: decode list: %w", err)
	}
	raw, ok := findList(envelope, name)
	if !ok {
		return Page[T]{}, ErrUnexpectedShape
	}
	if err := json.Unmarshal(raw, &page.Items); err != nil {
		return Page[T]{}, fmt.Errorf("resource: decode list: %w", err)
	}

	page.Total = len(page.Items)
	if t, ok := envelope["total"]; ok {
		var total int
		if err := json.Unmarshal(t, &total); err == nil {
			page.Total = total
		}
	}
	return page, nil
}

func findList(envelope map[string]json.RawMessage, name string) (json.RawMessage, bool) {
	for _, key := range [...]string{"data", "items", "results", name} {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			return trimmed, true
		}
	}
	return nil, false
}
