package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/fdg312/fitswift-hub/internal/ai"
	"github.com/fdg312/fitswift-hub/internal/auth"
	"github.com/fdg312/fitswift-hub/internal/chat"
	"github.com/fdg312/fitswift-hub/internal/config"
	"github.com/fdg312/fitswift-hub/internal/dispatch"
	"github.com/fdg312/fitswift-hub/internal/insights"
	"github.com/fdg312/fitswift-hub/internal/metrics"
	"github.com/fdg312/fitswift-hub/internal/profiles"
	"github.com/fdg312/fitswift-hub/internal/realtime"
	"github.com/fdg312/fitswift-hub/internal/reports"
	"github.com/fdg312/fitswift-hub/internal/storage/memory"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	srv, err := New(context.Background(), cfg, zap.NewNop(), Options{
		Store:    memory.New(),
		Provider: ai.NewMockProvider(),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func devAuthConfig() *config.Config {
	return &config.Config{
		Env:          "local",
		Port:         8080,
		AuthMode:     "dev",
		AuthEnabled:  true,
		AuthRequired: true,
		JWTSecret:    "test-secret",
		JWTIssuer:    "fitswift-test",
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &config.Config{Port: 8080})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status=ok, got %v", resp["status"])
	}
	if resp["ws_sessions"] != float64(0) {
		t.Errorf("expected ws_sessions=0, got %v", resp["ws_sessions"])
	}
}

func TestHealthzMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, &config.Config{Port: 8080})

	req := httptest.NewRequest(http.MethodPost, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t, &config.Config{Port: 8080})

	req := httptest.NewRequest(http.MethodGet, "/v1/nothing-here", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", w.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	srv := newTestServer(t, &config.Config{Port: 8080})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "req-123" {
		t.Errorf("expected echoed request id, got %q", got)
	}

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected generated request id")
	}
}

func TestRateLimitWiring(t *testing.T) {
	srv := newTestServer(t, &config.Config{Port: 8080, RateLimitRPS: 1, RateLimitBurst: 1})
	handler := srv.Handler()

	codes := make([]int, 0, 2)
	for range 2 {
		req := httptest.NewRequest(http.MethodGet, "/v1/profiles", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("expected [200 429], got %v", codes)
	}
}

func TestCORSWiring(t *testing.T) {
	srv := newTestServer(t, &config.Config{Port: 8080, CORSAllowedOrigins: []string{"http://localhost:5173"}})

	req := httptest.NewRequest(http.MethodOptions, "/v1/profiles", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected preflight 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("unexpected allow origin %q", got)
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t, devAuthConfig())
	handler := srv.Handler()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/profiles", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	// healthz и /v1/auth/* публичные
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/profiles", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", w.Code)
	}
}

// apiClient ходит в handler сервера с Bearer токеном
type apiClient struct {
	t       *testing.T
	handler http.Handler
	token   string
}

func (c *apiClient) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	return w
}

func (c *apiClient) decode(w *httptest.ResponseRecorder, wantStatus int, v any) {
	c.t.Helper()
	if w.Code != wantStatus {
		c.t.Fatalf("expected status %d, got %d body=%s", wantStatus, w.Code, w.Body.String())
	}
	if v == nil {
		return
	}
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		c.t.Fatalf("decode response: %v", err)
	}
}

func signInDev(t *testing.T, handler http.Handler) auth.DevAuthResponse {
	t.Helper()
	c := &apiClient{t: t, handler: handler}
	var resp auth.DevAuthResponse
	c.decode(c.do(http.MethodPost, "/v1/auth/dev", nil), http.StatusOK, &resp)
	if resp.AccessToken == "" || resp.TokenType != "Bearer" {
		t.Fatalf("unexpected dev auth response %+v", resp)
	}
	return resp
}

func TestEndToEndFlow(t *testing.T) {
	srv := newTestServer(t, devAuthConfig())
	handler := srv.Handler()

	session := signInDev(t, handler)
	c := &apiClient{t: t, handler: handler, token: session.AccessToken}
	pid := session.OwnerProfileID.String()

	var list profiles.ProfilesResponse
	c.decode(c.do(http.MethodGet, "/v1/profiles", nil), http.StatusOK, &list)
	if len(list.Profiles) != 1 || list.Profiles[0].ID != session.OwnerProfileID {
		t.Fatalf("expected dev owner profile, got %+v", list.Profiles)
	}

	today := time.Now().UTC().Format("2006-01-02")
	var syncResp metrics.SyncBatchResponse
	c.decode(c.do(http.MethodPost, "/v1/sync/batch", metrics.SyncBatchRequest{
		ProfileID: session.OwnerProfileID,
		Daily: []metrics.DailyAggregate{{
			Date: today,
			Activity: &metrics.ActivityDaily{
				Steps:            8000,
				ActiveEnergyKcal: 450,
				ExerciseMin:      25,
				StandHours:       9,
			},
		}},
	}), http.StatusOK, &syncResp)

	var series insights.SeriesResponse
	c.decode(c.do(http.MethodGet, "/v1/charts/series?profile_id="+pid+"&metric=steps&range=week", nil), http.StatusOK, &series)
	if len(series.Points) != 7 {
		t.Fatalf("expected 7 weekly points, got %d", len(series.Points))
	}
	if last := series.Points[len(series.Points)-1]; last.Value != 8000 {
		t.Errorf("expected today's steps 8000, got %+v", last)
	}

	var daily insights.DailyInsightsResponse
	c.decode(c.do(http.MethodGet, "/v1/insights/daily?profile_id="+pid, nil), http.StatusOK, &daily)
	if daily.Date != today || len(daily.Insights) == 0 {
		t.Errorf("unexpected daily insights %+v", daily)
	}

	var sent chat.SendMessageResponse
	c.decode(c.do(http.MethodPost, "/v1/chat/messages", chat.SendMessageRequest{
		ProfileID: session.OwnerProfileID,
		Content:   "Show me a chart of my steps this week",
	}), http.StatusOK, &sent)
	if len(sent.AssistantMessage.ToolResponses) != 1 || sent.AssistantMessage.ToolResponses[0].Metric != "steps" {
		t.Fatalf("expected steps chart tool response, got %+v", sent.AssistantMessage)
	}

	var history chat.ListMessagesResponse
	c.decode(c.do(http.MethodGet, "/v1/chat/messages?profile_id="+pid, nil), http.StatusOK, &history)
	if len(history.Messages) < 2 {
		t.Errorf("expected stored conversation, got %d messages", len(history.Messages))
	}

	var report reports.ReportDTO
	c.decode(c.do(http.MethodPost, "/v1/reports", reports.CreateReportRequest{
		ProfileID: session.OwnerProfileID,
		Format:    reports.FormatCSV,
		From:      today,
		To:        today,
	}), http.StatusCreated, &report)

	// local blob store не умеет presign, ссылка ведет в API
	wantURL := "http://example.com/v1/reports/" + report.ID.String() + "/download"
	if report.DownloadURL != wantURL {
		t.Fatalf("expected download url %s, got %s", wantURL, report.DownloadURL)
	}

	w := c.do(http.MethodGet, "/v1/reports/"+report.ID.String()+"/download", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected download 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), today+",8000,450,25,9,0") {
		t.Errorf("unexpected csv body:\n%s", w.Body.String())
	}

	c.decode(c.do(http.MethodDelete, "/v1/reports/"+report.ID.String(), nil), http.StatusNoContent, nil)
	c.decode(c.do(http.MethodGet, "/v1/reports/"+report.ID.String()+"/download", nil), http.StatusNotFound, nil)
}

func TestWebSocketThroughMiddleware(t *testing.T) {
	srv := newTestServer(t, devAuthConfig())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	session := signInDev(t, srv.Handler())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/ws?profile_id=" + session.OwnerProfileID.String()
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + session.AccessToken}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })

	target := dispatch.Session{UserID: session.OwnerUserID, ProfileID: session.OwnerProfileID.String()}
	deadline := time.Now().Add(5 * time.Second)
	for srv.Hub().SessionConnectionCount(target) != 1 {
		if time.Now().After(deadline) {
			t.Fatal("websocket session was not registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	c := &apiClient{t: t, handler: srv.Handler(), token: session.AccessToken}
	c.decode(c.do(http.MethodPost, "/v1/chat/messages", chat.SendMessageRequest{
		ProfileID: session.OwnerProfileID,
		Content:   "Show me a chart of my calories this month",
	}), http.StatusOK, nil)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("expected %s event, read failed: %v", dispatch.EventShowChart, err)
		}
		var msg realtime.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if msg.Type == dispatch.EventShowChart {
			break
		}
	}
}
