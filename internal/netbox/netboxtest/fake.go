// Package netboxtest provides an in-memory NetBox API for tests.
package netboxtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

// Request is a write call received by the fake.
type Request struct {
	Method   string
	Endpoint string
	ID       int
	Body     map[string]any
}

// Server is a fake NetBox that keeps objects per endpoint and answers
// filtered lists, creates and partial updates.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	nextID   int
	objects  map[string][]map[string]any
	writes   []Request
	failures map[string]int
}

func NewServer() *Server {
	s := &Server{
		nextID:   1,
		objects:  map[string][]map[string]any{},
		failures: map[string]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Seed stores an object as if it had been created earlier and returns its id.
func (s *Server) Seed(endpoint string, obj map[string]any) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store(endpoint, obj)
}

// FailWrites makes every POST/PATCH on endpoint answer with status.
func (s *Server) FailWrites(endpoint string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[endpoint] = status
}

// Objects returns a copy of everything stored under endpoint.
func (s *Server) Objects(endpoint string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, len(s.objects[endpoint]))
	copy(out, s.objects[endpoint])
	return out
}

// Writes returns the write calls received so far, optionally for one method.
func (s *Server) Writes(method string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, w := range s.writes {
		if method == "" || w.Method == method {
			out = append(out, w)
		}
	}
	return out
}

func (s *Server) store(endpoint string, obj map[string]any) int {
	id := s.nextID
	s.nextID++
	obj["id"] = id
	s.objects[endpoint] = append(s.objects[endpoint], obj)
	return id
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Token ") {
		http.Error(w, `{"detail":"Authentication credentials were not provided."}`, http.StatusForbidden)
		return
	}

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/"), "/")
	endpoint, id := splitID(path)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.Method {
	case http.MethodGet:
		results := []map[string]any{}
		for _, obj := range s.objects[endpoint] {
			if matches(obj, r.URL.Query()) {
				results = append(results, obj)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"count": len(results), "results": results})

	case http.MethodPost, http.MethodPatch:
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.writes = append(s.writes, Request{Method: r.Method, Endpoint: endpoint, ID: id, Body: body})

		if status, ok := s.failures[endpoint]; ok {
			http.Error(w, `{"detail":"rejected"}`, status)
			return
		}

		if r.Method == http.MethodPost {
			s.store(endpoint, body)
			writeJSON(w, http.StatusCreated, body)
			return
		}

		for _, obj := range s.objects[endpoint] {
			if obj["id"] == id {
				for k, v := range body {
					obj[k] = v
				}
				writeJSON(w, http.StatusOK, obj)
				return
			}
		}
		http.Error(w, `{"detail":"Not found."}`, http.StatusNotFound)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func splitID(path string) (string, int) {
	idx := strings.LastIndex(path, "/")
	if idx < 0 {
		return path, 0
	}
	id, err := strconv.Atoi(path[idx+1:])
	if err != nil {
		return path, 0
	}
	return path[:idx], id
}

func matches(obj map[string]any, query map[string][]string) bool {
	for key, values := range query {
		if len(values) == 0 {
			continue
		}
		if v, ok := obj[key]; !ok || toString(v) != values[0] {
			return false
		}
	}
	return true
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
