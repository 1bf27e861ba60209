// Package unifi talks to the static DNS API of a UniFi network controller.
package unifi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

const (
	loginPath = "/api/auth/login"

	tokenCookie   = "TOKEN"
	sessionCookie = "JSESSIONID"
	csrfHeader    = "x-csrf-token"

	// DefaultTimeout bounds every HTTP call made by a Session.
	DefaultTimeout = 30 * time.Second

	// maxErrorBody caps how much of a failed response is kept in errors.
	maxErrorBody = 4096
)

// Config holds controller connection settings.
type Config struct {
	// BaseURL is the controller root, e.g. "https://10.1.0.1".
	BaseURL  string
	Username string
	Password string
	// Timeout applies to each HTTP call. 0 uses DefaultTimeout.
	Timeout time.Duration
	// InsecureSkipVerify disables TLS certificate checks. Controllers ship
	// with self-signed certificates.
	InsecureSkipVerify bool
	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
}

// Session is one authenticated context against the controller. It is not
// safe for concurrent use and is never re-authenticated; if the controller
// rejects it, calls fail with a RequestError.
type Session struct {
	baseURL     string
	client      *http.Client
	deviceToken string
	csrfToken   string
	sessionID   string
	log         *slog.Logger
}

// Response is the buffered result of a successful Call.
type Response struct {
	Status int
	Body   []byte
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

// loginRequest is the body posted to the login endpoint.
type loginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	Token      string `json:"token"`
	RememberMe bool   `json:"rememberMe"`
}

// Authenticate logs in to the controller and returns a ready Session.
// A missing anti-forgery token is logged but not fatal.
func Authenticate(ctx context.Context, cfg Config, log *slog.Logger) (*Session, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	transport := cfg.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		if cfg.InsecureSkipVerify {
			t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		transport = t
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("unifi: cookie jar: %w", err)
	}

	s := &Session{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client: &http.Client{
			Transport: transport,
			Jar:       jar,
			Timeout:   cfg.Timeout,
		},
		log: log,
	}
	if err := s.login(ctx, cfg.Username, cfg.Password); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) login(ctx context.Context, username, password string) error {
	loginURL := s.url(loginPath)
	s.log.Info("authenticating with controller", "url", loginURL)

	data, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return &AuthenticationError{URL: loginURL, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginURL, bytes.NewReader(data))
	if err != nil {
		return &AuthenticationError{URL: loginURL, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &AuthenticationError{URL: loginURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &AuthenticationError{URL: loginURL, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &AuthenticationError{URL: loginURL, Status: resp.StatusCode, Err: errors.New(truncate(body))}
	}

	var user struct {
		DeviceToken string `json:"deviceToken"`
	}
	if err := json.Unmarshal(body, &user); err != nil {
		return &AuthenticationError{URL: loginURL, Status: resp.StatusCode, Err: fmt.Errorf("parse login response: %w", err)}
	}
	if user.DeviceToken == "" {
		return &AuthenticationError{URL: loginURL, Status: resp.StatusCode, Err: errors.New("no deviceToken in login response")}
	}
	s.deviceToken = user.DeviceToken

	u, _ := url.Parse(loginURL)
	var signed string
	for _, c := range append(resp.Cookies(), s.client.Jar.Cookies(u)...) {
		switch c.Name {
		case tokenCookie:
			if signed == "" {
				signed = c.Value
			}
		case sessionCookie:
			if s.sessionID == "" {
				s.sessionID = c.Value
			}
		}
	}

	source := tokenCookie + " cookie"
	if signed == "" {
		s.log.Debug("no TOKEN cookie in login response, falling back to deviceToken")
		signed = s.deviceToken
		source = "deviceToken"
		s.client.Jar.SetCookies(u, []*http.Cookie{{Name: tokenCookie, Value: s.deviceToken, Path: "/"}})
	}

	csrf, err := csrfFromToken(signed)
	if err != nil {
		s.log.Warn("could not extract anti-forgery token, continuing without it",
			"source", source, "err", err)
	}
	s.csrfToken = csrf

	s.log.Info("authentication successful", "csrf_token", s.csrfToken != "")
	return nil
}

// Call issues an authenticated request. path is relative to the controller
// root. body, when non-nil, is sent as JSON. Any non-2xx response or
// transport failure is returned as a *RequestError.
func (s *Session) Call(ctx context.Context, method, path string, body any) (*Response, error) {
	target := s.url(path)

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &RequestError{Method: method, URL: target, Err: fmt.Errorf("marshal request body: %w", err)}
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, &RequestError{Method: method, URL: target, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.csrfToken != "" {
		req.Header.Set(csrfHeader, s.csrfToken)
	}

	s.log.Debug("controller request", "method", method, "url", target)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &RequestError{Method: method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Method: method, URL: target, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{
			Method: method,
			URL:    target,
			Status: resp.StatusCode,
			Body:   truncate(data),
			Err:    fmt.Errorf("status %d", resp.StatusCode),
		}
	}
	return &Response{Status: resp.StatusCode, Body: data}, nil
}

// CSRFToken returns the anti-forgery token, or "" when none was found.
func (s *Session) CSRFToken() string { return s.csrfToken }

// DeviceToken returns the bearer token issued at login.
func (s *Session) DeviceToken() string { return s.deviceToken }

// SessionID returns the JSESSIONID cookie value, if the controller set one.
func (s *Session) SessionID() string { return s.sessionID }

func (s *Session) url(path string) string {
	return s.baseURL + "/" + strings.TrimLeft(path, "/")
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "...(truncated)"
	}
	return string(b)
}
