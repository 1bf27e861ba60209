// Package unifitest provides an in-process fake UniFi controller for tests.
package unifitest

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/bkero/unifi-dns-sync/pkg/record"
)

// Default credentials and tokens served by a new Server.
const (
	Username    = "admin"
	Password    = "secret"
	CSRF        = "csrf-0123456789"
	DeviceToken = "device-token"
	SessionID   = "jsession-1"
)

// Request is a request seen by the server, kept for assertions.
type Request struct {
	Method string
	Path   string
	CSRF   string
	Body   []byte
}

// Server is a fake controller. Configure its exported fields before the
// first request; they are read under the server lock.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	records  []*record.Record
	nextID   int
	requests []Request

	// OmitTokenCookie stops login from setting the TOKEN cookie.
	OmitTokenCookie bool
	// LoginToken overrides the deviceToken in the login body. "-" omits it.
	LoginToken string
	// LoginStatus overrides the login status code when non-zero.
	LoginStatus int
	// LoginBody overrides the raw login response body when non-empty.
	LoginBody string
	// RequireCSRF rejects API calls without the expected x-csrf-token.
	RequireCSRF bool
	// ListStatus overrides the list status code when non-zero.
	ListStatus int
	// CreateStatus maps hostname to a forced error status for create.
	CreateStatus map[string]int
	// DeleteStatus maps record id to a forced error status for delete.
	DeleteStatus map[string]int
}

// NewServer starts a plain-HTTP fake controller seeded with records.
func NewServer(seed []*record.Record) *Server {
	s := newServer(seed)
	s.Server = httptest.NewServer(s.handler())
	return s
}

// NewTLSServer starts a fake controller with a self-signed certificate.
func NewTLSServer(seed []*record.Record) *Server {
	s := newServer(seed)
	s.Server = httptest.NewTLSServer(s.handler())
	return s
}

func newServer(seed []*record.Record) *Server {
	s := &Server{
		RequireCSRF:  true,
		CreateStatus: map[string]int{},
		DeleteStatus: map[string]int{},
	}
	for _, r := range seed {
		cp := *r
		if cp.ID == "" {
			cp.ID = s.newID()
		}
		s.records = append(s.records, &cp)
	}
	return s
}

func (s *Server) newID() string {
	s.nextID++
	return fmt.Sprintf("%024x", s.nextID)
}

// Token builds an unsigned three-segment token whose payload is claims.
func Token(claims map[string]any) string {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	body, _ := json.Marshal(claims)
	payload := base64.RawURLEncoding.EncodeToString(body)
	return header + "." + payload + ".c2lnbmF0dXJl"
}

func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /proxy/network/v2/api/site/{site}/static-dns", s.list)
	mux.HandleFunc("POST /proxy/network/v2/api/site/{site}/static-dns", s.create)
	mux.HandleFunc("DELETE /proxy/network/v2/api/site/{site}/static-dns/{id}", s.delete)
	return s.track(mux)
}

func (s *Server) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			CSRF:   r.Header.Get("x-csrf-token"),
			Body:   body,
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.LoginStatus != 0 {
		w.WriteHeader(s.LoginStatus)
		fmt.Fprint(w, `{"errors":["forced"]}`)
		return
	}

	var req struct {
		Username   string  `json:"username"`
		Password   string  `json:"password"`
		Token      *string `json:"token"`
		RememberMe *bool   `json:"rememberMe"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == nil || req.RememberMe == nil {
		http.Error(w, `{"errors":["bad request"]}`, http.StatusBadRequest)
		return
	}
	if req.Username != Username || req.Password != Password || *req.Token != "" || *req.RememberMe {
		http.Error(w, `{"errors":["invalid credentials"]}`, http.StatusUnauthorized)
		return
	}

	if !s.OmitTokenCookie {
		http.SetCookie(w, &http.Cookie{Name: "TOKEN", Value: Token(map[string]any{"csrfToken": CSRF, "userId": "u1"}), Path: "/"})
	}
	http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: SessionID, Path: "/"})

	w.Header().Set("Content-Type", "application/json")
	if s.LoginBody != "" {
		fmt.Fprint(w, s.LoginBody)
		return
	}
	resp := map[string]any{"username": Username}
	switch s.LoginToken {
	case "":
		resp["deviceToken"] = DeviceToken
	case "-":
	default:
		resp["deviceToken"] = s.LoginToken
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// authorised checks the session cookie and anti-forgery header.
func (s *Server) authorised(w http.ResponseWriter, r *http.Request) bool {
	if _, err := r.Cookie("TOKEN"); err != nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return false
	}
	if s.RequireCSRF && r.Header.Get("x-csrf-token") != CSRF {
		http.Error(w, `{"error":"csrf"}`, http.StatusForbidden)
		return false
	}
	return true
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.authorised(w, r) {
		return
	}
	if s.ListStatus != 0 {
		http.Error(w, `{"error":"list failed"}`, s.ListStatus)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	out := s.records
	if out == nil {
		out = []*record.Record{}
	}
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.authorised(w, r) {
		return
	}
	var rec record.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil || rec.Key == "" {
		http.Error(w, `{"error":"bad record"}`, http.StatusBadRequest)
		return
	}
	if code := s.CreateStatus[rec.Key]; code != 0 {
		http.Error(w, fmt.Sprintf(`{"error":"cannot create %s"}`, rec.Key), code)
		return
	}
	rec.ID = s.newID()
	s.records = append(s.records, &rec)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rec)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.authorised(w, r) {
		return
	}
	id := r.PathValue("id")
	if code := s.DeleteStatus[id]; code != 0 {
		http.Error(w, `{"error":"cannot delete"}`, code)
		return
	}
	for i, rec := range s.records {
		if rec.ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, `{}`)
			return
		}
	}
	http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
}

// Records returns a copy of the records currently stored.
func (s *Server) Records() []record.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]record.Record, len(s.records))
	for i, r := range s.records {
		out[i] = *r
	}
	return out
}

// Requests returns every request seen so far, oldest first.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// CountRequests returns how many requests used method.
func (s *Server) CountRequests(method string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method {
			n++
		}
	}
	return n
}
