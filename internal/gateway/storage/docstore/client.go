// Copyright 2025 Arcade Team
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	"github.com/go-arcade/modelgate/pkg/database"
)

const defaultDatabase = "(default)"

// errDocumentExists is the 409 a create gets when the id is taken.
var errDocumentExists = errors.New("document already exists")

// StatusError is a non-2xx reply from the document store.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("docstore %s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Document is one stored document. Data is the caller's JSON payload.
type Document struct {
	ID         string          `json:"id,omitempty"`
	Data       json.RawMessage `json:"data"`
	UpdateTime *time.Time      `json:"updateTime,omitempty"`
}

// Filter is an equality match on a top-level data field.
type Filter struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

type Order struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc,omitempty"`
}

// Query selects documents of one collection.
type Query struct {
	Filters []Filter `json:"filters,omitempty"`
	OrderBy []Order  `json:"orderBy,omitempty"`
	Limit   int      `json:"limit,omitempty"`
	Offset  int      `json:"offset,omitempty"`
}

type queryResult struct {
	Documents []Document `json:"documents"`
}

// Client speaks the document store's REST API:
//
//	POST   {db}/collections                      create a collection
//	POST   {db}/documents/{coll}?documentId={id}  create, 409 when it exists
//	GET    {db}/documents/{coll}/{id}
//	PUT    {db}/documents/{coll}/{id}             create or replace
//	DELETE {db}/documents/{coll}/{id}
//	POST   {db}/documents/{coll}:query
//
// where {db} is /v1/projects/{project}/databases/{database}.
type Client struct {
	http    *resty.Client
	prefix  string
	timeout time.Duration
}

// NewClient builds a client for cfg. It does not contact the server.
func NewClient(cfg database.DocStoreConfig) *Client {
	db := cfg.Database
	if db == "" {
		db = defaultDatabase
	}
	hc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetAuthToken(cfg.APIKey).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)
	return &Client{
		http:    hc,
		prefix:  fmt.Sprintf("/v1/projects/%s/databases/%s", url.PathEscape(cfg.Project), url.PathEscape(db)),
		timeout: cfg.RequestTimeout,
	}
}

func (c *Client) request(ctx context.Context) (*resty.Request, context.CancelFunc) {
	cancel := context.CancelFunc(func() {})
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	}
	return c.http.R().SetContext(ctx), cancel
}

func (c *Client) docPath(collection, id string) string {
	return c.prefix + "/documents/" + url.PathEscape(collection) + "/" + url.PathEscape(id)
}

func statusError(resp *resty.Response) error {
	return &StatusError{
		Method: resp.Request.Method,
		Path:   resp.Request.URL,
		Code:   resp.StatusCode(),
		Body:   strings.TrimSpace(resp.String()),
	}
}

// isUnreachable reports whether err is a transport failure or a 5xx reply.
func isUnreachable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Code >= http.StatusInternalServerError
}

// EnsureCollection creates collection unless it already exists.
func (c *Client) EnsureCollection(ctx context.Context, collection string) error {
	req, cancel := c.request(ctx)
	defer cancel()
	resp, err := req.SetBody(map[string]string{"name": collection}).Post(c.prefix + "/collections")
	if err != nil {
		return fmt.Errorf("create collection %s: %w", collection, err)
	}
	switch resp.StatusCode() {
	case http.StatusOK, http.StatusCreated, http.StatusConflict:
		return nil
	}
	return statusError(resp)
}

// Create stores v under id and fails with errDocumentExists when id is taken.
func (c *Client) Create(ctx context.Context, collection, id string, v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	req, cancel := c.request(ctx)
	defer cancel()
	resp, err := req.
		SetQueryParam("documentId", id).
		SetBody(Document{Data: data}).
		Post(c.prefix + "/documents/" + url.PathEscape(collection))
	if err != nil {
		return fmt.Errorf("create %s/%s: %w", collection, id, err)
	}
	switch resp.StatusCode() {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusConflict:
		return errDocumentExists
	}
	return statusError(resp)
}

// Get decodes the document into out. found is false on 404.
func (c *Client) Get(ctx context.Context, collection, id string, out any) (found bool, err error) {
	req, cancel := c.request(ctx)
	defer cancel()
	var doc Document
	resp, err := req.SetResult(&doc).Get(c.docPath(collection, id))
	if err != nil {
		return false, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusNotFound:
		return false, nil
	default:
		return false, statusError(resp)
	}
	if err := sonic.Unmarshal(doc.Data, out); err != nil {
		return false, fmt.Errorf("decode %s/%s: %w", collection, id, err)
	}
	return true, nil
}

// Put creates or replaces the document.
func (c *Client) Put(ctx context.Context, collection, id string, v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	req, cancel := c.request(ctx)
	defer cancel()
	resp, err := req.SetBody(Document{Data: data}).Put(c.docPath(collection, id))
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	if resp.IsSuccess() {
		return nil
	}
	return statusError(resp)
}

// Delete removes the document. A missing document is not an error.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	req, cancel := c.request(ctx)
	defer cancel()
	resp, err := req.Delete(c.docPath(collection, id))
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	if resp.IsSuccess() || resp.StatusCode() == http.StatusNotFound {
		return nil
	}
	return statusError(resp)
}

// Query returns the matching documents in the requested order.
func (c *Client) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	req, cancel := c.request(ctx)
	defer cancel()
	var out queryResult
	resp, err := req.SetBody(q).SetResult(&out).Post(c.prefix + "/documents/" + url.PathEscape(collection) + ":query")
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	if !resp.IsSuccess() {
		return nil, statusError(resp)
	}
	return out.Documents, nil
}

// Ping checks that the server answers for this project and database.
func (c *Client) Ping(ctx context.Context) error {
	req, cancel := c.request(ctx)
	defer cancel()
	resp, err := req.Get(c.prefix + "/collections")
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return statusError(resp)
	}
	return nil
}
