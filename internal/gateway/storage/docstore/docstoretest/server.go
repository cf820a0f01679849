// Package docstoretest runs an in-process document store that speaks the
// REST dialect of docstore.Client.
package docstoretest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
)

const (
	Project = "test-project"
	APIKey  = "test-key"
)

type document struct {
	ID         string          `json:"id"`
	Data       json.RawMessage `json:"data"`
	UpdateTime time.Time       `json:"updateTime"`
}

type filter struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

type order struct {
	Field string `json:"field"`
	Desc  bool   `json:"desc"`
}

type query struct {
	Filters []filter `json:"filters"`
	OrderBy []order  `json:"orderBy"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
}

// Server keeps documents in memory. Requests are served one at a time.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	collections map[string]map[string]document
	requests    int
	failWith    int
	failLeft    int
	delay       time.Duration
}

// NewServer starts a server that is closed with the test.
func NewServer(t testing.TB) *Server {
	s := &Server{collections: map[string]map[string]document{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// FailNext answers the next n requests with code.
func (s *Server) FailNext(n, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLeft, s.failWith = n, code
}

// SetDelay holds every later reply for d, or until the client gives up.
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// Put stores a raw document, bypassing the API.
func (s *Server) Put(collection, id string, data any) {
	raw, err := sonic.Marshal(data)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coll(collection)[id] = document{ID: id, Data: raw, UpdateTime: time.Now().UTC()}
}

// Get returns the raw data of a document.
func (s *Server) Get(collection, id string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.collections[collection][id]
	return d.Data, ok
}

// IDs lists the document ids of a collection in order.
func (s *Server) IDs(collection string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id := range s.collections[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Server) HasCollection(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.collections[name]
	return ok
}

func (s *Server) coll(name string) map[string]document {
	c, ok := s.collections[name]
	if !ok {
		c = map[string]document{}
		s.collections[name] = c
	}
	return c
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	delay := s.delay
	s.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++

	if r.Header.Get("Authorization") != "Bearer "+APIKey {
		reply(w, http.StatusUnauthorized, map[string]string{"error": "bad credentials"})
		return
	}
	if s.failLeft > 0 {
		s.failLeft--
		reply(w, s.failWith, map[string]string{"error": "injected failure"})
		return
	}

	prefix := "/v1/projects/" + Project + "/databases/(default)"
	path, ok := strings.CutPrefix(r.URL.Path, prefix)
	if !ok {
		reply(w, http.StatusNotFound, map[string]string{"error": "unknown database"})
		return
	}

	switch {
	case path == "/collections":
		s.collectionsEndpoint(w, r)
	case strings.HasPrefix(path, "/documents/"):
		s.documentsEndpoint(w, r, strings.TrimPrefix(path, "/documents/"))
	default:
		reply(w, http.StatusNotFound, map[string]string{"error": "unknown path"})
	}
}

func (s *Server) collectionsEndpoint(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		names := make([]string, 0, len(s.collections))
		for name := range s.collections {
			names = append(names, name)
		}
		sort.Strings(names)
		reply(w, http.StatusOK, map[string]any{"collections": names})
	case http.MethodPost:
		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
			reply(w, http.StatusBadRequest, map[string]string{"error": "name required"})
			return
		}
		if _, ok := s.collections[body.Name]; ok {
			reply(w, http.StatusConflict, map[string]string{"error": "exists"})
			return
		}
		s.coll(body.Name)
		reply(w, http.StatusCreated, map[string]string{"name": body.Name})
	default:
		reply(w, http.StatusMethodNotAllowed, nil)
	}
}

func (s *Server) documentsEndpoint(w http.ResponseWriter, r *http.Request, rest string) {
	if coll, ok := strings.CutSuffix(rest, ":query"); ok && r.Method == http.MethodPost {
		s.runQuery(w, r, coll)
		return
	}
	coll, id, hasID := strings.Cut(rest, "/")
	if !hasID {
		if r.Method != http.MethodPost {
			reply(w, http.StatusMethodNotAllowed, nil)
			return
		}
		id = r.URL.Query().Get("documentId")
		if id == "" {
			reply(w, http.StatusBadRequest, map[string]string{"error": "documentId required"})
			return
		}
		if _, exists := s.coll(coll)[id]; exists {
			reply(w, http.StatusConflict, map[string]string{"error": "document exists"})
			return
		}
		s.write(w, r, coll, id, http.StatusCreated)
		return
	}

	switch r.Method {
	case http.MethodGet:
		d, ok := s.collections[coll][id]
		if !ok {
			reply(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		reply(w, http.StatusOK, d)
	case http.MethodPut:
		s.write(w, r, coll, id, http.StatusOK)
	case http.MethodDelete:
		if _, ok := s.collections[coll][id]; !ok {
			reply(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		delete(s.collections[coll], id)
		reply(w, http.StatusOK, map[string]string{})
	default:
		reply(w, http.StatusMethodNotAllowed, nil)
	}
}

func (s *Server) write(w http.ResponseWriter, r *http.Request, coll, id string, code int) {
	var body document
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Data) == 0 {
		reply(w, http.StatusBadRequest, map[string]string{"error": "data required"})
		return
	}
	d := document{ID: id, Data: body.Data, UpdateTime: time.Now().UTC()}
	s.coll(coll)[id] = d
	reply(w, code, d)
}

func (s *Server) runQuery(w http.ResponseWriter, r *http.Request, coll string) {
	var q query
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		reply(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	type row struct {
		doc    document
		fields map[string]any
	}
	var rows []row
	for _, d := range s.collections[coll] {
		var fields map[string]any
		if err := json.Unmarshal(d.Data, &fields); err != nil {
			continue
		}
		if matches(fields, q.Filters) {
			rows = append(rows, row{doc: d, fields: fields})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		for _, o := range q.OrderBy {
			a, b := fmt.Sprint(rows[i].fields[o.Field]), fmt.Sprint(rows[j].fields[o.Field])
			if a != b {
				return (a < b) != o.Desc
			}
		}
		return rows[i].doc.ID < rows[j].doc.ID
	})
	if q.Offset > 0 {
		if q.Offset >= len(rows) {
			rows = nil
		} else {
			rows = rows[q.Offset:]
		}
	}
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	docs := make([]document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, r.doc)
	}
	reply(w, http.StatusOK, map[string]any{"documents": docs})
}

func matches(fields map[string]any, filters []filter) bool {
	for _, f := range filters {
		v, ok := fields[f.Field]
		if !ok {
			return false
		}
		switch f.Op {
		case "==", "":
			if fmt.Sprint(v) != fmt.Sprint(f.Value) {
				return false
			}
		case "!=":
			if fmt.Sprint(v) == fmt.Sprint(f.Value) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func reply(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}
