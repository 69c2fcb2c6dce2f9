package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

const (
	defaultAPIBase = "http://localhost:8080"
)

var (
	apiBase    string
	token      string
	profileID  string
	client     = &http.Client{Timeout: 30 * time.Second}
	testDate   string
	createdIDs = make(map[string]string) // track created resources for cleanup
)

func main() {
	fmt.Println("=== FitSwift Hub E2E Smoke Test ===")
	fmt.Println()

	apiBase = getEnv("API_BASE_URL", defaultAPIBase)
	token = getEnv("SMOKE_TOKEN", "")
	profileID = getEnv("SMOKE_PROFILE_ID", "")

	fmt.Printf("API Base: %s\n", apiBase)
	fmt.Printf("Token: %s\n", maskString(token))
	fmt.Printf("Profile ID: %s\n", maskString(profileID))
	fmt.Println()

	testDate = time.Now().UTC().Format("2006-01-02")

	steps := []struct {
		name string
		fn   func() error
	}{
		{"Healthz", testHealthz},
		{"Dev Auth", testDevAuth},
		{"Get Profile ID", testGetProfileID},
		{"Sync Batch", testSyncBatch},
		{"Daily Metrics", testDailyMetrics},
		{"Chat Message", testChatMessage},
		{"Chat Tip", testChatTip},
		{"Chart Series", testChartSeries},
		{"Daily Insights", testDailyInsights},
		{"Create Report (CSV)", testCreateReportCSV},
		{"List Reports", testListReports},
		{"Download Report", testDownloadReport},
		{"Delete Report", testDeleteReport},
	}

	failed := false
	for i, step := range steps {
		fmt.Printf("[%d/%d] %s... ", i+1, len(steps), step.name)
		if err := step.fn(); err != nil {
			fmt.Printf("❌ FAILED\n")
			fmt.Printf("  Error: %v\n\n", err)
			failed = true
			break
		}
		fmt.Printf("✅ OK\n")
	}

	fmt.Println()
	if failed {
		fmt.Println("❌ SMOKE TEST FAILED")
		os.Exit(1)
	}

	fmt.Println("✅ ALL SMOKE TESTS PASSED")
}

func testHealthz() error {
	var result struct {
		Status string `json:"status"`
	}
	if err := doJSON(http.MethodGet, "/healthz", nil, http.StatusOK, &result); err != nil {
		return err
	}
	if result.Status != "ok" {
		return fmt.Errorf("unexpected status %q", result.Status)
	}
	return nil
}

// testDevAuth получает токен через /v1/auth/dev, если SMOKE_TOKEN не задан.
// При AUTH_MODE=none запрос все равно отвечает токеном, сервер его просто игнорирует.
func testDevAuth() error {
	if token != "" {
		return nil
	}

	var result struct {
		AccessToken    string `json:"access_token"`
		OwnerProfileID string `json:"owner_profile_id"`
	}
	if err := doJSON(http.MethodPost, "/v1/auth/dev", nil, http.StatusOK, &result); err != nil {
		return err
	}
	if result.AccessToken == "" {
		return fmt.Errorf("empty access token")
	}

	token = result.AccessToken
	if profileID == "" {
		profileID = result.OwnerProfileID
	}
	return nil
}

func testGetProfileID() error {
	var result struct {
		Profiles []struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		} `json:"profiles"`
	}
	if err := doJSON(http.MethodGet, "/v1/profiles", nil, http.StatusOK, &result); err != nil {
		return err
	}
	if len(result.Profiles) == 0 {
		return fmt.Errorf("no profiles found")
	}

	// If profile ID already set via env or dev auth, just check it is visible
	if profileID != "" {
		for _, p := range result.Profiles {
			if p.ID == profileID {
				return nil
			}
		}
		return fmt.Errorf("profile %s is not visible to the current user", profileID)
	}

	for _, p := range result.Profiles {
		if p.Type == "owner" {
			profileID = p.ID
			return nil
		}
	}
	profileID = result.Profiles[0].ID
	return nil
}

func testSyncBatch() error {
	payload := map[string]any{
		"profile_id": profileID,
		"daily": []map[string]any{
			{
				"date": testDate,
				"activity": map[string]any{
					"steps":              8000,
					"active_energy_kcal": 450,
					"exercise_min":       25,
					"stand_hours":        9,
					"distance_km":        5.6,
				},
			},
		},
		"sessions": map[string]any{
			"workouts": []map[string]any{
				{
					"start":         time.Now().UTC().Add(-2 * time.Hour).Format(time.RFC3339),
					"end":           time.Now().UTC().Add(-90 * time.Minute).Format(time.RFC3339),
					"label":         "Running",
					"calories_kcal": 320,
				},
			},
		},
	}
	return doJSON(http.MethodPost, "/v1/sync/batch", payload, http.StatusOK, nil)
}

func testDailyMetrics() error {
	path := fmt.Sprintf("/v1/metrics/daily?profile_id=%s&from=%s&to=%s", profileID, testDate, testDate)
	var result struct {
		Daily []json.RawMessage `json:"daily"`
	}
	if err := doJSON(http.MethodGet, path, nil, http.StatusOK, &result); err != nil {
		return err
	}
	if len(result.Daily) == 0 {
		return fmt.Errorf("synced day %s not returned", testDate)
	}
	return nil
}

func testChatMessage() error {
	payload := map[string]any{
		"profile_id": profileID,
		"content":    "Show me a chart of my steps this week",
	}
	var result struct {
		AssistantMessage struct {
			Content       string            `json:"content"`
			ToolResponses []json.RawMessage `json:"tool_responses"`
		} `json:"assistant_message"`
	}
	if err := doJSON(http.MethodPost, "/v1/chat/messages", payload, http.StatusOK, &result); err != nil {
		return err
	}
	if result.AssistantMessage.Content == "" {
		return fmt.Errorf("empty assistant reply")
	}
	return nil
}

func testChatTip() error {
	var result struct {
		Tip string `json:"tip"`
	}
	if err := doJSON(http.MethodGet, "/v1/chat/tip?profile_id="+profileID, nil, http.StatusOK, &result); err != nil {
		return err
	}
	if result.Tip == "" {
		return fmt.Errorf("empty tip")
	}
	return nil
}

func testChartSeries() error {
	path := fmt.Sprintf("/v1/charts/series?profile_id=%s&metric=steps&range=week", profileID)
	var result struct {
		Points []json.RawMessage `json:"points"`
	}
	if err := doJSON(http.MethodGet, path, nil, http.StatusOK, &result); err != nil {
		return err
	}
	if len(result.Points) != 7 {
		return fmt.Errorf("expected 7 points, got %d", len(result.Points))
	}
	return nil
}

func testDailyInsights() error {
	var result struct {
		Insights []json.RawMessage `json:"insights"`
	}
	if err := doJSON(http.MethodGet, "/v1/insights/daily?profile_id="+profileID, nil, http.StatusOK, &result); err != nil {
		return err
	}
	if len(result.Insights) == 0 {
		return fmt.Errorf("no insights returned")
	}
	return nil
}

func testCreateReportCSV() error {
	payload := map[string]any{
		"profile_id": profileID,
		"format":     "csv",
		"from":       time.Now().UTC().AddDate(0, 0, -7).Format("2006-01-02"),
		"to":         testDate,
	}

	var result struct {
		ID        string `json:"id"`
		SizeBytes int64  `json:"size_bytes"`
	}
	if err := doJSON(http.MethodPost, "/v1/reports", payload, http.StatusCreated, &result); err != nil {
		return err
	}
	if result.SizeBytes < 10 {
		return fmt.Errorf("report size is %d bytes (too small)", result.SizeBytes)
	}

	createdIDs["report"] = result.ID
	return nil
}

func testListReports() error {
	var result struct {
		Reports []struct {
			ID string `json:"id"`
		} `json:"reports"`
	}
	if err := doJSON(http.MethodGet, "/v1/reports?profile_id="+profileID, nil, http.StatusOK, &result); err != nil {
		return err
	}
	for _, r := range result.Reports {
		if r.ID == createdIDs["report"] {
			return nil
		}
	}
	return fmt.Errorf("created report not in list")
}

func testDownloadReport() error {
	reportID := createdIDs["report"]
	if reportID == "" {
		return fmt.Errorf("no report ID to download")
	}

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/v1/reports/%s/download", apiBase, reportID), nil)
	if err != nil {
		return err
	}
	addAuth(req)

	// Don't follow redirects automatically - we need to check redirect behavior
	originalCheckRedirect := client.CheckRedirect
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	defer func() { client.CheckRedirect = originalCheckRedirect }()

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// local mode: файл отдает сам API
		return checkReportBody(resp.Body)
	case http.StatusFound:
		// S3 mode: presigned или публичный URL
		location := resp.Header.Get("Location")
		if location == "" {
			return fmt.Errorf("redirect without Location header")
		}
		getResp, err := client.Get(location)
		if err != nil {
			return fmt.Errorf("failed to follow redirect: %w", err)
		}
		defer getResp.Body.Close()
		if getResp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(getResp.Body, 4096))
			return fmt.Errorf("redirect failed: status=%d body=%s", getResp.StatusCode, string(body))
		}
		return checkReportBody(getResp.Body)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status=%d body=%s", resp.StatusCode, string(body))
	}
}

func testDeleteReport() error {
	reportID := createdIDs["report"]
	if reportID == "" {
		return fmt.Errorf("no report ID to delete")
	}
	return doJSON(http.MethodDelete, "/v1/reports/"+reportID, nil, http.StatusNoContent, nil)
}

// Helper functions

func doJSON(method, path string, payload any, wantStatus int, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, apiBase+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	addAuth(req)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode failed: %w", err)
	}
	return nil
}

func checkReportBody(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) < 10 {
		return fmt.Errorf("report too small: %d bytes", len(data))
	}
	return nil
}

func addAuth(req *http.Request) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func maskString(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
