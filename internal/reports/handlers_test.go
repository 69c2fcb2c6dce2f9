package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fdg312/fitswift-hub/internal/blob"
	"github.com/fdg312/fitswift-hub/internal/storage"
	"github.com/fdg312/fitswift-hub/internal/storage/memory"
	"github.com/fdg312/fitswift-hub/internal/userctx"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// presignStore ведёт себя как S3: отдаёт внешние ссылки.
type presignStore struct {
	*blob.MemoryStore
}

func (p presignStore) PresignGet(ctx context.Context, key string, ttlSeconds int) (string, error) {
	return fmt.Sprintf("https://s3.example.test/%s?ttl=%d", key, ttlSeconds), nil
}

type testEnv struct {
	service   *Service
	handler   *Handlers
	blobStore *blob.MemoryStore
	profileID uuid.UUID
}

func setupTestService(t *testing.T, store blob.Store, opts Options) testEnv {
	t.Helper()
	ctx := context.Background()

	mem := memory.New()
	profileID := uuid.New()
	if err := mem.CreateProfile(ctx, &storage.Profile{
		ID:          profileID,
		OwnerUserID: "user-a",
		Type:        "owner",
		Name:        "A",
	}); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}

	if err := mem.UpsertDailyMetric(ctx, profileID, "2026-02-10",
		[]byte(`{"date":"2026-02-10","activity":{"steps":10000,"active_energy_kcal":520,"exercise_min":35,"stand_hours":11}}`)); err != nil {
		t.Fatalf("UpsertDailyMetric: %v", err)
	}
	start := time.Date(2026, 2, 11, 8, 0, 0, 0, time.UTC)
	if err := mem.InsertWorkout(ctx, storage.WorkoutRow{
		ProfileID: profileID,
		Start:     start,
		End:       start.Add(40 * time.Minute),
		Label:     "Running",
	}); err != nil {
		t.Fatalf("InsertWorkout: %v", err)
	}

	memBlob := blob.NewMemoryStore()
	if store == nil {
		store = memBlob
	}

	service := NewService(mem.GetReportsStorage(), mem, mem, store, opts, zap.NewNop())
	return testEnv{
		service:   service,
		handler:   NewHandlers(service),
		blobStore: memBlob,
		profileID: profileID,
	}
}

func postReport(t *testing.T, h *Handlers, req CreateReportRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(req)
	r := httptest.NewRequest(http.MethodPost, "/v1/reports", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.HandleCreate(w, r)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp.Error.Code
}

func TestHandleCreate_CSV_Success(t *testing.T) {
	env := setupTestService(t, nil, Options{})

	w := postReport(t, env.handler, CreateReportRequest{
		ProfileID: env.profileID,
		From:      "2026-02-01",
		To:        "2026-02-15",
		Format:    FormatCSV,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp ReportDTO
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Format != FormatCSV || resp.Status != StatusReady {
		t.Fatalf("unexpected report: %+v", resp)
	}
	wantURL := fmt.Sprintf("http://example.com/v1/reports/%s/download", resp.ID)
	if resp.DownloadURL != wantURL {
		t.Fatalf("expected download URL %s, got %s", wantURL, resp.DownloadURL)
	}
	if env.blobStore.Len() != 1 {
		t.Fatalf("expected report stored in blob store, got %d objects", env.blobStore.Len())
	}

	r := httptest.NewRequest(http.MethodGet, "/v1/reports/"+resp.ID.String()+"/download", nil)
	r.SetPathValue("id", resp.ID.String())
	dl := httptest.NewRecorder()
	env.handler.HandleDownload(dl, r)

	if dl.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", dl.Code)
	}
	if ct := dl.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("expected text/csv, got %s", ct)
	}
	if cd := dl.Header().Get("Content-Disposition"); !strings.Contains(cd, "report_2026-02-01_2026-02-15.csv") {
		t.Fatalf("unexpected Content-Disposition: %s", cd)
	}

	want := "date,steps,active_energy_kcal,exercise_min,stand_hours,workouts\n" +
		"2026-02-10,10000,520,35,11,0\n" +
		"2026-02-11,0,0,0,0,1\n"
	if diff := cmp.Diff(want, dl.Body.String()); diff != "" {
		t.Fatalf("csv mismatch (-want +got):\n%s", diff)
	}
	if resp.SizeBytes != int64(len(want)) {
		t.Fatalf("expected size %d, got %d", len(want), resp.SizeBytes)
	}
}

func TestHandleCreate_PDF_Success(t *testing.T) {
	env := setupTestService(t, nil, Options{})

	report, err := env.service.CreateReport(context.Background(), CreateReportRequest{
		ProfileID: env.profileID,
		From:      "2026-02-01",
		To:        "2026-02-15",
		Format:    FormatPDF,
	})
	if err != nil {
		t.Fatalf("CreateReport: %v", err)
	}

	dl, err := env.service.Download(context.Background(), report.ID)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if dl.ContentType != "application/pdf" {
		t.Fatalf("expected application/pdf, got %s", dl.ContentType)
	}
	if !bytes.HasPrefix(dl.Data, []byte("%PDF")) {
		t.Fatalf("expected PDF header, got %q", dl.Data[:min(8, len(dl.Data))])
	}
}

func TestHandleCreate_Validation(t *testing.T) {
	env := setupTestService(t, nil, Options{})

	tests := []struct {
		name     string
		req      CreateReportRequest
		wantCode int
		wantErr  string
	}{
		{
			name:     "missing params",
			req:      CreateReportRequest{ProfileID: env.profileID, Format: FormatCSV},
			wantCode: http.StatusBadRequest,
			wantErr:  "missing_params",
		},
		{
			name:     "invalid format",
			req:      CreateReportRequest{ProfileID: env.profileID, From: "2026-02-01", To: "2026-02-15", Format: "xlsx"},
			wantCode: http.StatusBadRequest,
			wantErr:  "invalid_format",
		},
		{
			name:     "invalid date",
			req:      CreateReportRequest{ProfileID: env.profileID, From: "01.02.2026", To: "2026-02-15", Format: FormatCSV},
			wantCode: http.StatusBadRequest,
			wantErr:  "invalid_date",
		},
		{
			name:     "from after to",
			req:      CreateReportRequest{ProfileID: env.profileID, From: "2026-02-15", To: "2026-02-01", Format: FormatCSV},
			wantCode: http.StatusBadRequest,
			wantErr:  "invalid_range",
		},
		{
			name:     "range too large",
			req:      CreateReportRequest{ProfileID: env.profileID, From: "2026-01-01", To: "2026-06-01", Format: FormatCSV},
			wantCode: http.StatusBadRequest,
			wantErr:  "range_too_large",
		},
		{
			name:     "unknown profile",
			req:      CreateReportRequest{ProfileID: uuid.New(), From: "2026-02-01", To: "2026-02-15", Format: FormatCSV},
			wantCode: http.StatusNotFound,
			wantErr:  "profile_not_found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postReport(t, env.handler, tt.req)
			if w.Code != tt.wantCode {
				t.Fatalf("expected status %d, got %d", tt.wantCode, w.Code)
			}
			if got := errorCode(t, w); got != tt.wantErr {
				t.Fatalf("expected error code %s, got %s", tt.wantErr, got)
			}
		})
	}
}

func TestHandleCreate_ForeignProfile(t *testing.T) {
	env := setupTestService(t, nil, Options{})

	body, _ := json.Marshal(CreateReportRequest{
		ProfileID: env.profileID,
		From:      "2026-02-01",
		To:        "2026-02-15",
		Format:    FormatCSV,
	})
	r := httptest.NewRequest(http.MethodPost, "/v1/reports", bytes.NewReader(body))
	r = r.WithContext(userctx.WithUserID(r.Context(), "user-b"))
	w := httptest.NewRecorder()
	env.handler.HandleCreate(w, r)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestHandleList(t *testing.T) {
	env := setupTestService(t, nil, Options{})
	ctx := context.Background()

	for _, format := range []string{FormatCSV, FormatPDF} {
		if _, err := env.service.CreateReport(ctx, CreateReportRequest{
			ProfileID: env.profileID,
			From:      "2026-02-01",
			To:        "2026-02-15",
			Format:    format,
		}); err != nil {
			t.Fatalf("CreateReport(%s): %v", format, err)
		}
	}

	r := httptest.NewRequest(http.MethodGet, "/v1/reports?profile_id="+env.profileID.String(), nil)
	w := httptest.NewRecorder()
	env.handler.HandleList(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var resp ReportsResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(resp.Reports))
	}
	for _, rep := range resp.Reports {
		if !strings.HasSuffix(rep.DownloadURL, "/v1/reports/"+rep.ID.String()+"/download") {
			t.Fatalf("unexpected download URL %s", rep.DownloadURL)
		}
	}

	r = httptest.NewRequest(http.MethodGet, "/v1/reports?profile_id="+env.profileID.String()+"&limit=1", nil)
	w = httptest.NewRecorder()
	env.handler.HandleList(w, r)
	resp = ReportsResponse{}
	json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.Reports) != 1 {
		t.Fatalf("expected limit to apply, got %d reports", len(resp.Reports))
	}
}

func TestHandleList_BadParams(t *testing.T) {
	env := setupTestService(t, nil, Options{})

	tests := []struct {
		query   string
		wantErr string
	}{
		{query: "", wantErr: "missing_profile_id"},
		{query: "?profile_id=nope", wantErr: "invalid_profile_id"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/v1/reports"+tt.query, nil)
		w := httptest.NewRecorder()
		env.handler.HandleList(w, r)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%q: expected 400, got %d", tt.query, w.Code)
		}
		if got := errorCode(t, w); got != tt.wantErr {
			t.Fatalf("%q: expected %s, got %s", tt.query, tt.wantErr, got)
		}
	}
}

func TestHandleDownload_PresignRedirect(t *testing.T) {
	store := presignStore{MemoryStore: blob.NewMemoryStore()}
	env := setupTestService(t, store, Options{PresignTTL: 300})

	report, err := env.service.CreateReport(context.Background(), CreateReportRequest{
		ProfileID: env.profileID,
		From:      "2026-02-01",
		To:        "2026-02-15",
		Format:    FormatCSV,
	})
	if err != nil {
		t.Fatalf("CreateReport: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/v1/reports/"+report.ID.String()+"/download", nil)
	r.SetPathValue("id", report.ID.String())
	w := httptest.NewRecorder()
	env.handler.HandleDownload(w, r)

	if w.Code != http.StatusFound {
		t.Fatalf("expected status 302, got %d", w.Code)
	}
	want := "https://s3.example.test/" + *report.ObjectKey + "?ttl=300"
	if loc := w.Header().Get("Location"); loc != want {
		t.Fatalf("expected redirect to %s, got %s", want, loc)
	}
}

func TestHandleDownload_PreferPublicURL(t *testing.T) {
	env := setupTestService(t, nil, Options{PublicBaseURL: "https://cdn.example.test/", PreferPublicURL: true})

	report, err := env.service.CreateReport(context.Background(), CreateReportRequest{
		ProfileID: env.profileID,
		From:      "2026-02-01",
		To:        "2026-02-15",
		Format:    FormatCSV,
	})
	if err != nil {
		t.Fatalf("CreateReport: %v", err)
	}

	url, err := env.service.GetReportDownloadURL(context.Background(), report, "http://api.local")
	if err != nil {
		t.Fatalf("GetReportDownloadURL: %v", err)
	}
	if url != "https://cdn.example.test/"+*report.ObjectKey {
		t.Fatalf("unexpected public URL %s", url)
	}
}

func TestHandleDownload_MissingObject(t *testing.T) {
	env := setupTestService(t, nil, Options{})

	report, err := env.service.CreateReport(context.Background(), CreateReportRequest{
		ProfileID: env.profileID,
		From:      "2026-02-01",
		To:        "2026-02-15",
		Format:    FormatCSV,
	})
	if err != nil {
		t.Fatalf("CreateReport: %v", err)
	}
	if err := env.blobStore.DeleteObject(context.Background(), *report.ObjectKey); err != nil {
		t.Fatalf("DeleteObject: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/v1/reports/"+report.ID.String()+"/download", nil)
	r.SetPathValue("id", report.ID.String())
	w := httptest.NewRecorder()
	env.handler.HandleDownload(w, r)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestHandleDelete(t *testing.T) {
	env := setupTestService(t, nil, Options{})

	report, err := env.service.CreateReport(context.Background(), CreateReportRequest{
		ProfileID: env.profileID,
		From:      "2026-02-01",
		To:        "2026-02-15",
		Format:    FormatCSV,
	})
	if err != nil {
		t.Fatalf("failed to create report: %v", err)
	}

	r := httptest.NewRequest(http.MethodDelete, "/v1/reports/"+report.ID.String(), nil)
	r.SetPathValue("id", report.ID.String())
	w := httptest.NewRecorder()
	env.handler.HandleDelete(w, r)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", w.Code)
	}
	if _, err := env.service.GetReport(context.Background(), report.ID); err != ErrReportNotFound {
		t.Fatalf("expected ErrReportNotFound after delete, got %v", err)
	}
	if env.blobStore.Len() != 0 {
		t.Fatalf("expected blob object removed, got %d objects", env.blobStore.Len())
	}
}

func TestHandleDelete_NotFound(t *testing.T) {
	env := setupTestService(t, nil, Options{})

	id := uuid.New()
	r := httptest.NewRequest(http.MethodDelete, "/v1/reports/"+id.String(), nil)
	r.SetPathValue("id", id.String())
	w := httptest.NewRecorder()
	env.handler.HandleDelete(w, r)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
	if got := errorCode(t, w); got != "report_not_found" {
		t.Fatalf("expected report_not_found, got %s", got)
	}
}

func TestHandleDelete_InvalidID(t *testing.T) {
	env := setupTestService(t, nil, Options{})

	r := httptest.NewRequest(http.MethodDelete, "/v1/reports/abc", nil)
	r.SetPathValue("id", "abc")
	w := httptest.NewRecorder()
	env.handler.HandleDelete(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}
