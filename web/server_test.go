package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/niclasankar/nmea-gps-emulator/gps"
	"github.com/niclasankar/nmea-gps-emulator/metrics"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func createTestServer(t *testing.T) (*Server, *gps.Engine, *metrics.Metrics) {
	t.Helper()
	config := gps.DefaultConfig()
	config.Seed = 1
	config.Speed = 5
	config.Heading = 90

	clock := &testClock{now: time.Date(2024, 9, 7, 12, 0, 0, 0, time.UTC)}
	engine, err := gps.New(config, gps.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("gps.New() error = %v", err)
	}
	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("metrics.New() error = %v", err)
	}
	return NewServer(engine, nil, m), engine, m
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleStatus(t *testing.T) {
	s, _, _ := createTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/status", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var status gps.Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if status.Fix.Heading != 90 || status.Targets.Speed != 5 {
		t.Errorf("status = %+v", status)
	}
	if len(status.Fix.Satellites) != 15 {
		t.Errorf("satellites = %d, want 15", len(status.Fix.Satellites))
	}
}

func TestHandleSentences(t *testing.T) {
	s, engine, _ := createTestServer(t)
	engine.Advance()

	rec := do(t, s, http.MethodGet, "/api/sentences", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}

	var body struct {
		Sentences []string `json:"sentences"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if strings.Join(body.Sentences, "") != strings.Join(engine.Current(), "") {
		t.Error("sentences differ from the engine's current batch")
	}
	if !strings.HasPrefix(body.Sentences[0], "$GPGGA,") {
		t.Errorf("first sentence = %q", body.Sentences[0])
	}
}

func TestHandleTarget(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		want     gps.Targets
	}{
		{"speed only", `{"speed": 12.5}`, http.StatusOK, gps.Targets{Heading: 90, Speed: 12.5, Altitude: 0}},
		{"all three", `{"heading": 370, "speed": 3, "altitude": -4}`, http.StatusOK, gps.Targets{Heading: 10, Speed: 3, Altitude: -4}},
		{"negative speed", `{"speed": -1}`, http.StatusBadRequest, gps.Targets{Heading: 90, Speed: 5, Altitude: 0}},
		{"bad json", `{"speed":`, http.StatusBadRequest, gps.Targets{Heading: 90, Speed: 5, Altitude: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, engine, _ := createTestServer(t)
			rec := do(t, s, http.MethodPost, "/api/target", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status code = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if got := engine.Targets(); got != tt.want {
				t.Errorf("Targets() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestHandleTargetKeepsConcurrentChanges(t *testing.T) {
	s, engine, _ := createTestServer(t)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			do(t, s, http.MethodPost, "/api/target", `{"speed": 7}`)
		}()
		go func() {
			defer wg.Done()
			engine.SetHeadingTarget(200)
		}()
	}
	wg.Wait()

	// A speed-only request must never write back a stale heading
	if got := engine.Targets(); got.Heading != 200 || got.Speed != 7 {
		t.Errorf("Targets() = %+v, want heading 200 speed 7", got)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s, _, _ := createTestServer(t)
	if rec := do(t, s, http.MethodGet, "/api/target", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/target = %d, want 405", rec.Code)
	}
	if rec := do(t, s, http.MethodPost, "/api/status", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /api/status = %d, want 405", rec.Code)
	}
	if rec := do(t, s, http.MethodDelete, "/api/sentences", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE /api/sentences = %d, want 405", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/api/nothing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("GET /api/nothing = %d, want 404", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _, _ := createTestServer(t)
	do(t, s, http.MethodGet, "/api/status", "")
	do(t, s, http.MethodGet, "/api/status", "")

	rec := do(t, s, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	body := rec.Body.String()
	want := `nmea_emulator_http_requests_total{code="200",method="GET",path="/api/status"} 2`
	if !strings.Contains(body, want) {
		t.Errorf("metrics output missing %q", want)
	}
}

func TestWebSocketStream(t *testing.T) {
	s, engine, _ := createTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.broadcastToClients(ctx)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var first struct {
		Type string     `json:"type"`
		Data gps.Status `json:"data"`
	}
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if first.Type != "status" {
		t.Errorf("first message type = %q, want status", first.Type)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.clientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	batch := engine.Advance()

	var msg struct {
		Type string       `json:"type"`
		Data gps.NMEAData `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if msg.Type != "nmea_data" {
		t.Errorf("message type = %q, want nmea_data", msg.Type)
	}
	if strings.Join(msg.Data.Sentences, "") != strings.Join(batch, "") {
		t.Error("streamed batch differs from Advance result")
	}
}

func TestServeShutdown(t *testing.T) {
	s, _, _ := createTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
