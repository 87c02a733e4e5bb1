package fakeapi

import (
	"encoding/json"
	"maps"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// collection keeps records in insertion order. A non-empty "slug" must be unique.
type collection struct {
	mu    sync.Mutex
	order []string
	items map[string]map[string]any
}

func newCollection() *collection {
	return &collection{items: make(map[string]map[string]any)}
}

func (c *collection) slugTaken(slug any, exceptID string) bool {
	s, _ := slug.(string)
	if s == "" {
		return false
	}
	for id, rec := range c.items {
		if id != exceptID && rec["slug"] == s {
			return true
		}
	}
	return false
}

func (s *Server) handleList(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := s.records[name]
		limit := -1
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
			limit = n
		}

		c.mu.Lock()
		data := make([]map[string]any, 0, len(c.order))
		for _, id := range c.order {
			if limit >= 0 && len(data) == limit {
				break
			}
			data = append(data, maps.Clone(c.items[id]))
		}
		total := len(c.order)
		c.mu.Unlock()

		writeJSON(w, http.StatusOK, map[string]any{"data": data, "total": total})
	}
}

func (s *Server) handleGet(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := s.records[name]
		id := chi.URLParam(r, "id")

		c.mu.Lock()
		rec, ok := c.items[id]
		rec = maps.Clone(rec)
		c.mu.Unlock()
		if !ok {
			writeError(w, http.StatusNotFound, name+" "+id+" not found")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) handleCreate(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := s.records[name]
		var rec map[string]any
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil || rec == nil {
			writeError(w, http.StatusBadRequest, "body must be a JSON object")
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.slugTaken(rec["slug"], "") {
			writeError(w, http.StatusConflict, "slug already exists")
			return
		}
		id := uuid.NewString()
		rec["id"] = id
		c.items[id] = rec
		c.order = append(c.order, id)
		writeJSON(w, http.StatusCreated, rec)
	}
}

func (s *Server) handleUpdate(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := s.records[name]
		id := chi.URLParam(r, "id")
		var patch map[string]any
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil || patch == nil {
			writeError(w, http.StatusBadRequest, "body must be a JSON object")
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		rec, ok := c.items[id]
		if !ok {
			writeError(w, http.StatusNotFound, name+" "+id+" not found")
			return
		}
		if c.slugTaken(patch["slug"], id) {
			writeError(w, http.StatusConflict, "slug already exists")
			return
		}
		for k, v := range patch {
			if k != "id" {
				rec[k] = v
			}
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func (s *Server) handleDelete(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := s.records[name]
		id := chi.URLParam(r, "id")

		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.items[id]; !ok {
			writeError(w, http.StatusNotFound, name+" "+id+" not found")
			return
		}
		delete(c.items, id)
		for i, v := range c.order {
			if v == id {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
