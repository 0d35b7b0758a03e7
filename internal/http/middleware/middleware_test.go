package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wolfman30/chauffeur-booking/internal/visitor"
	"github.com/wolfman30/chauffeur-booking/pkg/logging"
)

func TestVisitorAssignsCookieOnce(t *testing.T) {
	var seen string
	handler := Visitor(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = visitor.IDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/booking/draft", nil))
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != visitor.CookieName {
		t.Fatalf("expected visitor cookie, got %v", cookies)
	}
	if seen != cookies[0].Value || !cookies[0].HttpOnly {
		t.Fatalf("cookie %q does not match context id %q", cookies[0].Value, seen)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/booking/draft", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("expected existing cookie to be reused")
	}
	if seen != cookies[0].Value {
		t.Fatalf("expected same visitor id, got %q", seen)
	}
}

func TestVisitorReplacesMalformedCookie(t *testing.T) {
	var seen string
	handler := Visitor(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = visitor.IDFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: visitor.CookieName, Value: "../../etc"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value == "../../etc" || !cookies[0].Secure {
		t.Fatalf("expected a fresh secure cookie, got %v", cookies)
	}
	if seen != cookies[0].Value {
		t.Fatalf("context id %q does not match cookie", seen)
	}
}

func TestRateLimitOnlyCountsWrites(t *testing.T) {
	limiter := NewRateLimiter(1, 2)
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }
	handler := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(method string) int {
		req := httptest.NewRequest(method, "/api/booking/submit", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 5; i++ {
		if code := send(http.MethodGet); code != http.StatusOK {
			t.Fatalf("reads must not be limited, got %d", code)
		}
	}
	if send(http.MethodPost) != http.StatusOK || send(http.MethodPost) != http.StatusOK {
		t.Fatalf("expected burst of two writes")
	}
	if code := send(http.MethodPost); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}
	now = now.Add(time.Second)
	if code := send(http.MethodPost); code != http.StatusOK {
		t.Fatalf("expected refill after a second, got %d", code)
	}

	limiter.Evict(now.Add(time.Minute))
	if len(limiter.buckets) != 0 {
		t.Fatalf("expected stale buckets evicted")
	}
}

func TestRequestLoggerEchoesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, "info")
	handler := Visitor(false)(RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/booking/submit", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-ID") != "req-42" {
		t.Fatalf("expected request id echoed")
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if record["status"] != float64(http.StatusCreated) || record["request_id"] != "req-42" {
		t.Fatalf("unexpected log record: %v", record)
	}
	if record["visitor_id"] == "" {
		t.Fatalf("expected visitor id in log")
	}
}

func TestRequestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, "info")
	status := http.StatusOK
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if buf.Len() != 0 {
		t.Fatalf("healthy probes should log at debug, got %s", buf.String())
	}

	status = http.StatusBadGateway
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if record["level"] != "ERROR" || record["route"] != "/health" {
		t.Fatalf("unexpected log record: %v", record)
	}
}

func TestRateLimiterBucketsArePerClient(t *testing.T) {
	limiter := NewRateLimiter(0.5, 1)
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	if !limiter.Allow("203.0.113.7") || limiter.Allow("203.0.113.7") {
		t.Fatalf("expected a burst of one for the first client")
	}
	if !limiter.Allow("198.51.100.2") {
		t.Fatalf("a second client must get its own bucket")
	}
	now = now.Add(2 * time.Second)
	if !limiter.Allow("203.0.113.7") {
		t.Fatalf("expected one token after two seconds at 0.5 rps")
	}
}
