package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"worldpanel/internal/api"
	"worldpanel/internal/models"
)

// upstream is a fake orchestration backend recording every request.
type upstream struct {
	mu    sync.Mutex
	paths []string
	srv   *httptest.Server
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		u.mu.Lock()
		u.paths = append(u.paths, r.Method+" "+r.URL.Path+" "+strings.TrimSpace(string(body)))
		u.mu.Unlock()

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/minecraft/worlds":
			_, _ = io.WriteString(w, `{"worlds":[{"id":"w1","name":"Alpha","isActive":true}]}`)
		case r.URL.Path == "/api/minecraft/worlds/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":"world not found"}`)
		case r.URL.Path == "/api/minecraft/worlds/w1/datapacks/upload-url":
			_ = json.NewEncoder(w).Encode(api.UploadTarget{UploadURL: u.srv.URL + "/bucket/pack.zip", Key: "k1"})
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) requests() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.paths...)
}

type fakeRoster struct {
	mu      sync.Mutex
	active  bool
	refresh int
}

func (f *fakeRoster) IsActive(string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakeRoster) setActive(active bool) {
	f.mu.Lock()
	f.active = active
	f.mu.Unlock()
}

func (f *fakeRoster) RunOnce(context.Context) ([]models.World, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refresh++
	return nil, nil
}

type fakeAgent struct {
	samples []models.AgentStatus
}

func (f *fakeAgent) Latest() (models.AgentStatus, bool) {
	if len(f.samples) == 0 {
		return models.AgentStatus{}, false
	}
	return f.samples[len(f.samples)-1], true
}

func (f *fakeAgent) History(cutoff time.Time) []models.AgentStatus {
	var out []models.AgentStatus
	for _, s := range f.samples {
		if !s.CheckedAt.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

func newTestServer(t *testing.T, backendURL string, opts Options) *httptest.Server {
	t.Helper()
	backend := api.New(backendURL, api.Options{Timeout: 2 * time.Second})
	s := New(opts, backend, &fakeRoster{active: true}, &fakeAgent{})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, method, target, contentType string, body io.Reader) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, target, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()
	var payload map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	return resp, payload
}

func TestListWorlds(t *testing.T) {
	up := newUpstream(t)
	srv := newTestServer(t, up.srv.URL, Options{})

	resp, payload := doRequest(t, http.MethodGet, srv.URL+"/api/worlds", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	worlds, ok := payload["worlds"].([]any)
	if !ok || len(worlds) != 1 {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestUpstreamStatusIsPropagated(t *testing.T) {
	up := newUpstream(t)
	srv := newTestServer(t, up.srv.URL, Options{})

	resp, payload := doRequest(t, http.MethodGet, srv.URL+"/api/worlds/missing", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if payload["error"] != "world not found" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestTransportErrorIsBadGateway(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()
	srv := newTestServer(t, deadURL, Options{})

	resp, payload := doRequest(t, http.MethodGet, srv.URL+"/api/worlds", "", nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	if payload["error"] == "" {
		t.Fatal("expected error message")
	}
}

func TestInvalidPortRejectedLocally(t *testing.T) {
	up := newUpstream(t)
	srv := newTestServer(t, up.srv.URL, Options{})

	for _, body := range []string{`{"port":25560}`, `{"port":"25570"}`, `{"port":"abc"}`} {
		resp, payload := doRequest(t, http.MethodPost, srv.URL+"/api/worlds/w1/port", "application/json", strings.NewReader(body))
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, resp.StatusCode)
		}
		if body != `{"port":"abc"}` && payload["error"] != "Port must be a number between 25560 and 25570" {
			t.Fatalf("%s: unexpected payload %v", body, payload)
		}
	}
	if n := len(up.requests()); n != 0 {
		t.Fatalf("invalid ports reached the backend %d times", n)
	}

	resp, _ := doRequest(t, http.MethodPost, srv.URL+"/api/worlds/w1/port", "application/json", strings.NewReader(`{"port":"25565"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	reqs := up.requests()
	if len(reqs) != 1 || reqs[0] != `POST /api/minecraft/worlds/w1/port {"port":25565}` {
		t.Fatalf("unexpected upstream requests %v", reqs)
	}
}

func TestRAMConvertedToMegabytes(t *testing.T) {
	up := newUpstream(t)
	srv := newTestServer(t, up.srv.URL, Options{})

	resp, _ := doRequest(t, http.MethodPost, srv.URL+"/api/worlds/w1/ram", "application/json", strings.NewReader(`{"min":2,"max":4.5}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	reqs := up.requests()
	if len(reqs) != 1 || reqs[0] != `POST /api/minecraft/worlds/w1/ram {"min":2048,"max":4608}` {
		t.Fatalf("unexpected upstream requests %v", reqs)
	}

	resp, _ = doRequest(t, http.MethodPost, srv.URL+"/api/worlds/w1/ram", "application/json", strings.NewReader(`{"min":8,"max":4}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for min > max, got %d", resp.StatusCode)
	}
}

func TestControlActions(t *testing.T) {
	up := newUpstream(t)
	srv := newTestServer(t, up.srv.URL, Options{})

	resp, _ := doRequest(t, http.MethodPost, srv.URL+"/api/worlds/w1/restart", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp, _ = doRequest(t, http.MethodPost, srv.URL+"/api/worlds/w1/explode", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown action, got %d", resp.StatusCode)
	}
	reqs := up.requests()
	if len(reqs) != 1 || !strings.HasPrefix(reqs[0], "POST /api/minecraft/worlds/w1/restart") {
		t.Fatalf("unexpected upstream requests %v", reqs)
	}
}

func TestPropertiesValidation(t *testing.T) {
	up := newUpstream(t)
	srv := newTestServer(t, up.srv.URL, Options{})

	resp, payload := doRequest(t, http.MethodPut, srv.URL+"/api/worlds/w1/properties", "application/json",
		strings.NewReader(`{"properties":{"pvp":"maybe","max-players":"many"}}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	problems, ok := payload["problems"].(map[string]any)
	if !ok || len(problems) != 2 {
		t.Fatalf("expected two problems, got %v", payload)
	}
	if n := len(up.requests()); n != 0 {
		t.Fatalf("invalid properties reached the backend %d times", n)
	}
}

func TestPlayerListRoute(t *testing.T) {
	up := newUpstream(t)
	srv := newTestServer(t, up.srv.URL, Options{})

	resp, _ := doRequest(t, http.MethodPost, srv.URL+"/api/worlds/w1/players/Alex/op", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp, _ = doRequest(t, http.MethodPost, srv.URL+"/api/worlds/w1/players/Alex/mods", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown list, got %d", resp.StatusCode)
	}
	reqs := up.requests()
	if len(reqs) != 1 || !strings.HasPrefix(reqs[0], "POST /api/minecraft/worlds/w1/players/Alex/op") {
		t.Fatalf("unexpected upstream requests %v", reqs)
	}
}

func TestDatapackUpload(t *testing.T) {
	up := newUpstream(t)
	srv := newTestServer(t, up.srv.URL, Options{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "pack.zip")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	_, _ = part.Write([]byte("zipbytes"))
	_ = mw.Close()

	resp, payload := doRequest(t, http.MethodPost, srv.URL+"/api/worlds/w1/datapacks", mw.FormDataContentType(), &body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%v)", resp.StatusCode, payload)
	}
	reqs := up.requests()
	want := []string{
		`POST /api/minecraft/worlds/w1/datapacks/upload-url {"name":"pack.zip"}`,
		`PUT /bucket/pack.zip zipbytes`,
		`POST /api/minecraft/worlds/w1/datapacks/notify {"key":"k1","name":"pack.zip"}`,
	}
	if len(reqs) != len(want) {
		t.Fatalf("unexpected upstream requests %v", reqs)
	}
	for i := range want {
		if reqs[i] != want[i] {
			t.Fatalf("request %d: got %q want %q", i, reqs[i], want[i])
		}
	}
}

func TestDatapackUploadRejectsNonZip(t *testing.T) {
	up := newUpstream(t)
	srv := newTestServer(t, up.srv.URL, Options{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("file", "pack.rar")
	_, _ = part.Write([]byte("x"))
	_ = mw.Close()

	resp, payload := doRequest(t, http.MethodPost, srv.URL+"/api/worlds/w1/datapacks", mw.FormDataContentType(), &body)
	if resp.StatusCode != http.StatusBadRequest || payload["error"] != "Datapacks must be .zip files" {
		t.Fatalf("unexpected response %d %v", resp.StatusCode, payload)
	}
}

func TestMutatingRoutesAreRateLimited(t *testing.T) {
	up := newUpstream(t)
	srv := newTestServer(t, up.srv.URL, Options{RequestsPerSec: 0.01, Burst: 1})

	resp, _ := doRequest(t, http.MethodPost, srv.URL+"/api/worlds/w1/start", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", resp.StatusCode)
	}
	resp, _ = doRequest(t, http.MethodPost, srv.URL+"/api/worlds/w1/stop", "", nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	resp, _ = doRequest(t, http.MethodGet, srv.URL+"/api/worlds", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reads must not be limited, got %d", resp.StatusCode)
	}
}

func TestMetricRanges(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1", Options{})

	resp, payload := doRequest(t, http.MethodGet, srv.URL+"/api/metrics/ranges", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	ranges, ok := payload["ranges"].([]any)
	if !ok || len(ranges) != 7 {
		t.Fatalf("expected 7 ranges, got %v", payload["ranges"])
	}
	if payload["available"] != false {
		t.Fatalf("metrics should be unavailable without a source: %v", payload)
	}
}

func TestAgentStatus(t *testing.T) {
	now := time.Now().UTC()
	agent := &fakeAgent{samples: []models.AgentStatus{
		{Target: "agent", OK: false, CheckedAt: now.Add(-2 * time.Hour)},
		{Target: "agent", OK: true, LatencyMs: 3, CheckedAt: now},
	}}
	s := New(Options{}, api.New("http://127.0.0.1:1", api.Options{}), &fakeRoster{}, agent)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	since := now.Add(-time.Hour).Format(time.RFC3339)
	resp, payload := doRequest(t, http.MethodGet, srv.URL+"/api/agent/status?since="+since, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	latest, _ := payload["latest"].(map[string]any)
	if latest["ok"] != true {
		t.Fatalf("unexpected latest %v", payload["latest"])
	}
	if history, _ := payload["history"].([]any); len(history) != 1 {
		t.Fatalf("expected one recent sample, got %v", payload["history"])
	}

	resp, _ = doRequest(t, http.MethodGet, srv.URL+"/api/agent/status?since=yesterday", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad since, got %d", resp.StatusCode)
	}
}

func TestIndexServed(t *testing.T) {
	srv := newTestServer(t, "http://127.0.0.1:1", Options{})
	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("get index: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Fatalf("unexpected index response %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	if ip := getClientIP(req); ip != "192.168.1.1" {
		t.Errorf("expected remote address host, got %q", ip)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.195, 70.41.3.18")
	if ip := getClientIP(req); ip != "203.0.113.195" {
		t.Errorf("expected first forwarded address, got %q", ip)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1"
	if ip := getClientIP(req); ip != "192.168.1.1" {
		t.Errorf("expected bare remote address, got %q", ip)
	}
}

func TestIPRateLimiter(t *testing.T) {
	limiter := newIPRateLimiter(rate.Limit(1), 1)

	l1 := limiter.getLimiter("192.168.1.1")
	if l1 != limiter.getLimiter("192.168.1.1") {
		t.Error("expected same limiter for same IP")
	}
	if l1 == limiter.getLimiter("192.168.1.2") {
		t.Error("expected different limiter for different IP")
	}
	if !l1.Allow() {
		t.Error("first request should be allowed")
	}
	if l1.Allow() {
		t.Error("second immediate request should be denied")
	}
}
