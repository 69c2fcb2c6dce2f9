package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fdg312/fitswift-hub/internal/blob"
	"github.com/fdg312/fitswift-hub/internal/storage"
	"github.com/fdg312/fitswift-hub/internal/userctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Errors
var (
	ErrInvalidFormat    = errors.New("invalid format")
	ErrInvalidDate      = errors.New("invalid date format")
	ErrInvalidDateRange = errors.New("from date must be before to date")
	ErrRangeTooLarge    = errors.New("date range too large")
	ErrProfileNotFound  = errors.New("profile not found")
	ErrReportNotFound   = errors.New("report not found")
)

// Options — параметры выдачи ссылок и ограничения периода
type Options struct {
	MaxRangeDays    int
	PresignTTL      int // seconds
	PublicBaseURL   string
	PreferPublicURL bool
}

// Service handles reports business logic
type Service struct {
	reportsStorage storage.ReportsStorage
	profileStorage storage.Storage
	generator      *Generator
	blobStore      blob.Store
	opts           Options
	log            *zap.Logger
}

// NewService creates a new reports service. blobStore обязателен:
// в local режиме это blob.MemoryStore.
func NewService(
	reportsStorage storage.ReportsStorage,
	metricsStorage MetricsReader,
	profileStorage storage.Storage,
	blobStore blob.Store,
	opts Options,
	log *zap.Logger,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.MaxRangeDays <= 0 {
		opts.MaxRangeDays = 90
	}
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = 900
	}
	if blobStore == nil {
		blobStore = blob.NewMemoryStore()
	}

	return &Service{
		reportsStorage: reportsStorage,
		profileStorage: profileStorage,
		generator:      NewGenerator(metricsStorage, log),
		blobStore:      blobStore,
		opts:           opts,
		log:            log,
	}
}

// MaxRangeDays — максимальная длина периода отчёта
func (s *Service) MaxRangeDays() int {
	return s.opts.MaxRangeDays
}

// CreateReport creates a new report
func (s *Service) CreateReport(ctx context.Context, req CreateReportRequest) (*Report, error) {
	if req.Format != FormatPDF && req.Format != FormatCSV {
		return nil, ErrInvalidFormat
	}

	fromDate, err := time.Parse("2006-01-02", req.From)
	if err != nil {
		return nil, ErrInvalidDate
	}
	toDate, err := time.Parse("2006-01-02", req.To)
	if err != nil {
		return nil, ErrInvalidDate
	}
	if fromDate.After(toDate) {
		return nil, ErrInvalidDateRange
	}

	daysDiff := int(toDate.Sub(fromDate).Hours() / 24)
	if daysDiff > s.opts.MaxRangeDays {
		return nil, ErrRangeTooLarge
	}

	if err = s.ensureProfileAccess(ctx, req.ProfileID); err != nil {
		return nil, ErrProfileNotFound
	}

	data, err := s.generator.GenerateReport(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to generate report: %w", err)
	}

	objectKey := fmt.Sprintf("reports/%s/%s_%s_%s.%s",
		req.ProfileID.String(),
		req.From,
		req.To,
		uuid.New().String(),
		req.Format,
	)

	size, err := s.blobStore.PutObject(ctx, objectKey, data, contentTypeFor(req.Format))
	if err != nil {
		return nil, fmt.Errorf("failed to upload report: %w", err)
	}

	report := &storage.ReportMeta{
		ProfileID: req.ProfileID,
		Format:    req.Format,
		FromDate:  req.From,
		ToDate:    req.To,
		ObjectKey: &objectKey,
		SizeBytes: size,
		Status:    StatusReady,
	}

	if err := s.reportsStorage.CreateReport(ctx, report); err != nil {
		if delErr := s.blobStore.DeleteObject(ctx, objectKey); delErr != nil {
			s.log.Warn("failed to clean up report object", zap.String("key", objectKey), zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to save report metadata: %w", err)
	}

	s.log.Info("report created",
		zap.Stringer("report_id", report.ID),
		zap.Stringer("profile_id", report.ProfileID),
		zap.String("format", report.Format),
		zap.Int64("size_bytes", report.SizeBytes),
	)

	return toReport(report), nil
}

// GetReport retrieves a report by ID
func (s *Service) GetReport(ctx context.Context, id uuid.UUID) (*Report, error) {
	meta, err := s.reportMeta(ctx, id)
	if err != nil {
		return nil, err
	}
	return toReport(meta), nil
}

// ListReports lists reports for a profile, newest first
func (s *Service) ListReports(ctx context.Context, profileID uuid.UUID, limit, offset int) ([]Report, error) {
	if err := s.ensureProfileAccess(ctx, profileID); err != nil {
		return nil, ErrProfileNotFound
	}

	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	metaList, err := s.reportsStorage.ListReports(ctx, profileID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	reports := make([]Report, len(metaList))
	for i := range metaList {
		reports[i] = *toReport(&metaList[i])
	}

	return reports, nil
}

// DeleteReport deletes a report and its object
func (s *Service) DeleteReport(ctx context.Context, id uuid.UUID) error {
	meta, err := s.reportMeta(ctx, id)
	if err != nil {
		return err
	}

	if meta.ObjectKey != nil {
		if err := s.blobStore.DeleteObject(ctx, *meta.ObjectKey); err != nil {
			// метаданные всё равно удаляем, объект подчистится lifecycle-правилом бакета
			s.log.Warn("failed to delete report object", zap.String("key", *meta.ObjectKey), zap.Error(err))
		}
	}

	if err := s.reportsStorage.DeleteReport(ctx, id); err != nil {
		if errors.Is(err, storage.ErrReportNotFound) {
			return ErrReportNotFound
		}
		return fmt.Errorf("failed to delete report metadata: %w", err)
	}

	s.log.Info("report deleted", zap.Stringer("report_id", id))
	return nil
}

// GetReportDownloadURL возвращает ссылку для скачивания: публичный URL бакета,
// presigned URL или, если store не умеет presign, endpoint API.
func (s *Service) GetReportDownloadURL(ctx context.Context, report *Report, baseURL string) (string, error) {
	apiURL := fmt.Sprintf("%s/v1/reports/%s/download", strings.TrimSuffix(baseURL, "/"), report.ID.String())
	if report.ObjectKey == nil {
		return apiURL, nil
	}

	if s.opts.PreferPublicURL && s.opts.PublicBaseURL != "" {
		return strings.TrimSuffix(s.opts.PublicBaseURL, "/") + "/" + *report.ObjectKey, nil
	}

	presignedURL, err := s.blobStore.PresignGet(ctx, *report.ObjectKey, s.opts.PresignTTL)
	if errors.Is(err, blob.ErrPresignUnsupported) {
		return apiURL, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return presignedURL, nil
}

// Download решает, как отдать файл: redirect на внешний URL или содержимое из store.
func (s *Service) Download(ctx context.Context, id uuid.UUID) (*Download, error) {
	meta, err := s.reportMeta(ctx, id)
	if err != nil {
		return nil, err
	}
	if meta.ObjectKey == nil {
		return nil, fmt.Errorf("report %s has no object key", id)
	}

	if s.opts.PreferPublicURL && s.opts.PublicBaseURL != "" {
		return &Download{RedirectURL: strings.TrimSuffix(s.opts.PublicBaseURL, "/") + "/" + *meta.ObjectKey}, nil
	}

	presignedURL, err := s.blobStore.PresignGet(ctx, *meta.ObjectKey, s.opts.PresignTTL)
	switch {
	case err == nil:
		return &Download{RedirectURL: presignedURL}, nil
	case !errors.Is(err, blob.ErrPresignUnsupported):
		return nil, fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	data, err := s.blobStore.GetObject(ctx, *meta.ObjectKey)
	if errors.Is(err, blob.ErrObjectNotFound) {
		// объект пропал (например, рестарт в memory режиме)
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read report object: %w", err)
	}

	return &Download{
		Data:        data,
		ContentType: contentTypeFor(meta.Format),
		Filename:    fmt.Sprintf("report_%s_%s.%s", meta.FromDate, meta.ToDate, meta.Format),
	}, nil
}

func (s *Service) reportMeta(ctx context.Context, id uuid.UUID) (*storage.ReportMeta, error) {
	meta, err := s.reportsStorage.GetReport(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrReportNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}
	if err := s.ensureProfileAccess(ctx, meta.ProfileID); err != nil {
		return nil, ErrReportNotFound
	}
	return meta, nil
}

// toReport converts ReportMeta to Report model
func toReport(meta *storage.ReportMeta) *Report {
	return &Report{
		ID:        meta.ID,
		ProfileID: meta.ProfileID,
		Format:    meta.Format,
		FromDate:  meta.FromDate,
		ToDate:    meta.ToDate,
		ObjectKey: meta.ObjectKey,
		SizeBytes: meta.SizeBytes,
		Status:    meta.Status,
		Error:     meta.Error,
		CreatedAt: meta.CreatedAt,
		UpdatedAt: meta.UpdatedAt,
	}
}

func (s *Service) ensureProfileAccess(ctx context.Context, profileID uuid.UUID) error {
	profile, err := s.profileStorage.GetProfile(ctx, profileID)
	if err != nil {
		return ErrProfileNotFound
	}

	if userID, ok := userctx.GetUserID(ctx); ok && strings.TrimSpace(userID) != "" && profile.OwnerUserID != userID {
		return ErrProfileNotFound
	}

	return nil
}
