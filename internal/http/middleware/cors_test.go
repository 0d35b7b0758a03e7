package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOriginPolicyAdmit(t *testing.T) {
	policy := NewOriginPolicy([]string{" https://book.example.com/ ", "", "*"})

	cases := []struct {
		origin      string
		allowed     bool
		credentials bool
	}{
		{"https://book.example.com", true, true},
		{"https://other.example", true, false},
		{"", false, false},
	}
	for _, tc := range cases {
		allowed, credentials := policy.Admit(tc.origin)
		if allowed != tc.allowed || credentials != tc.credentials {
			t.Fatalf("Admit(%q) = %v, %v; want %v, %v", tc.origin, allowed, credentials, tc.allowed, tc.credentials)
		}
	}

	strict := NewOriginPolicy([]string{"https://book.example.com"})
	if allowed, _ := strict.Admit("https://other.example"); allowed {
		t.Fatalf("unlisted origin admitted without a wildcard")
	}
}

func TestCORSListedOriginGetsCredentials(t *testing.T) {
	called := false
	handler := CORS([]string{"https://book.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodPatch, "/api/booking/draft", nil)
	req.Header.Set("Origin", "https://book.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Fatalf("expected handler to be called")
	}
	h := rec.Header()
	if h.Get("Access-Control-Allow-Origin") != "https://book.example.com" {
		t.Fatalf("expected allow origin header, got %q", h.Get("Access-Control-Allow-Origin"))
	}
	if h.Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("expected listed origin to receive the visitor cookie")
	}
	if h.Get("Access-Control-Expose-Headers") != "X-Request-ID" {
		t.Fatalf("expected request id to be exposed, got %q", h.Get("Access-Control-Expose-Headers"))
	}
}

func TestCORSUnknownOriginStillServed(t *testing.T) {
	called := false
	handler := CORS([]string{"https://book.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/pricing", nil)
	req.Header.Set("Origin", "https://unknown.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Fatalf("the browser enforces CORS; the handler should still run")
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow origin header, got %q", got)
	}
	if rec.Header().Get("Vary") != "Origin" {
		t.Fatalf("expected Vary: Origin")
	}
}

func TestCORSWildcardWithoutCredentials(t *testing.T) {
	handler := CORS([]string{"*"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	req.Header.Set("Origin", "https://random.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://random.example" {
		t.Fatalf("expected allow origin header, got %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Fatalf("wildcard origins must not get credentials")
	}
}

func TestCORSAnswersPreflight(t *testing.T) {
	called := false
	handler := CORS([]string{"https://book.example.com"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/booking/submit", nil)
	req.Header.Set("Origin", "https://book.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if called {
		t.Fatalf("preflight must not reach the handler")
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatalf("expected allow methods header")
	}
}
