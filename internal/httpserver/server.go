package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fdg312/fitswift-hub/internal/ai"
	"github.com/fdg312/fitswift-hub/internal/auth"
	"github.com/fdg312/fitswift-hub/internal/blob"
	"github.com/fdg312/fitswift-hub/internal/chat"
	"github.com/fdg312/fitswift-hub/internal/config"
	"github.com/fdg312/fitswift-hub/internal/dispatch"
	"github.com/fdg312/fitswift-hub/internal/insights"
	"github.com/fdg312/fitswift-hub/internal/metrics"
	"github.com/fdg312/fitswift-hub/internal/profiles"
	"github.com/fdg312/fitswift-hub/internal/realtime"
	"github.com/fdg312/fitswift-hub/internal/reports"
	"github.com/fdg312/fitswift-hub/internal/storage"
	"github.com/fdg312/fitswift-hub/internal/storage/memory"
	"github.com/fdg312/fitswift-hub/internal/storage/postgres"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Store — всё, что серверу нужно от основного хранилища
type Store interface {
	storage.Storage
	storage.MetricsStorage
	storage.ChatStorage
}

// Options позволяют подменить зависимости в тестах
type Options struct {
	// Store используется вместо выбора memory/postgres по DATABASE_URL
	Store Store
	// Provider используется вместо ai.NewProvider
	Provider ai.Provider
}

// Server представляет HTTP сервер
type Server struct {
	config         *config.Config
	log            *zap.Logger
	mux            *http.ServeMux
	storage        Store
	reportsStorage storage.ReportsStorage
	hub            *realtime.Hub
	authMiddleware *auth.Middleware
	httpServer     *http.Server
}

// ErrorResponse — формат ошибок, которые пишет сам сервер (middleware, 404)
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// New собирает сервер: хранилище, сервисы и маршруты.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, opts Options) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		config: cfg,
		log:    log,
		mux:    http.NewServeMux(),
		hub:    realtime.NewHub(log.Named("realtime")),
	}

	if opts.Store != nil {
		s.storage = opts.Store
	} else {
		s.storage = s.initStorage(ctx)
	}

	reportsStorage, err := reportsStorageOf(s.storage)
	if err != nil {
		return nil, err
	}
	s.reportsStorage = reportsStorage

	provider := opts.Provider
	if provider == nil {
		provider, err = ai.NewProvider(ctx, cfg.AI, log.Named("ai"))
		if err != nil {
			return nil, fmt.Errorf("init ai provider: %w", err)
		}
	}

	reportsBlobStore, err := s.initReportsBlobStore(ctx)
	if err != nil {
		return nil, err
	}

	s.routes(provider, reportsBlobStore)
	return s, nil
}

// initStorage выбирает Postgres, если задан DATABASE_URL, иначе память.
// Ошибка подключения не фатальна: сервер поднимается на памяти.
func (s *Server) initStorage(ctx context.Context) Store {
	if s.config.DatabaseURL == "" {
		s.log.Info("using in-memory storage")
		return memory.New()
	}

	s.log.Info("connecting to postgres")
	pgStorage, err := postgres.New(ctx, s.config.DatabaseURL)
	if err != nil {
		s.log.Warn("postgres unavailable, falling back to in-memory storage", zap.Error(err))
		return memory.New()
	}

	s.log.Info("postgres connected")
	return pgStorage
}

func reportsStorageOf(st Store) (storage.ReportsStorage, error) {
	switch st := st.(type) {
	case *memory.MemoryStorage:
		return st.GetReportsStorage(), nil
	case *postgres.PostgresStorage:
		return st.GetReportsStorage(), nil
	case storage.ReportsStorage:
		return st, nil
	default:
		return nil, fmt.Errorf("storage %T has no reports storage", st)
	}
}

// initReportsBlobStore учитывает REPORTS_MODE поверх BLOB_MODE.
func (s *Server) initReportsBlobStore(ctx context.Context) (blob.Store, error) {
	cfg := s.config.Blob
	cfg.Mode = cfg.EffectiveReportsMode()

	store, mode, err := blob.NewBlobStore(ctx, cfg, s.log)
	if err != nil {
		return nil, fmt.Errorf("init reports blob store: %w", err)
	}
	s.log.Info("reports blob store ready", zap.String("mode", mode))
	return store, nil
}

// routes регистрирует маршруты
func (s *Server) routes(provider ai.Provider, reportsBlobStore blob.Store) {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)

	// Auth API
	authService := auth.NewService(s.config, s.storage, s.log.Named("auth"))
	authHandler := auth.NewHandlers(authService)
	s.authMiddleware = auth.NewMiddleware(s.config, authService)
	s.mux.HandleFunc("POST /v1/auth/dev", authHandler.HandleDevAuth)

	// Profiles API
	profileHandler := profiles.NewHandler(profiles.NewService(s.storage, s.log.Named("profiles")))
	s.mux.HandleFunc("GET /v1/profiles", profileHandler.HandleList)
	s.mux.HandleFunc("POST /v1/profiles", profileHandler.HandleCreate)
	s.mux.HandleFunc("GET /v1/profiles/{id}", profileHandler.HandleGet)
	s.mux.HandleFunc("PATCH /v1/profiles/{id}", profileHandler.HandleUpdate)
	s.mux.HandleFunc("DELETE /v1/profiles/{id}", profileHandler.HandleDelete)

	// Metrics API
	metricsHandler := metrics.NewHandler(metrics.NewService(s.storage, s.storage, s.log.Named("metrics")))
	s.mux.HandleFunc("POST /v1/sync/batch", metricsHandler.HandleSyncBatch)
	s.mux.HandleFunc("GET /v1/metrics/daily", metricsHandler.HandleGetDailyMetrics)
	s.mux.HandleFunc("GET /v1/metrics/hourly", metricsHandler.HandleGetHourlyMetrics)
	s.mux.HandleFunc("GET /v1/workouts", metricsHandler.HandleListWorkouts)

	// Chat API: ассистент, команды уходят в realtime hub
	dispatcher := dispatch.New(s.hub, s.hub, s.log.Named("dispatch"))
	chatService := chat.NewService(
		s.storage,
		s.storage,
		s.storage,
		provider,
		dispatcher,
		s.config.ChatHistoryWindow,
		s.log.Named("chat"),
	)
	chatHandler := chat.NewHandler(chatService)
	s.mux.HandleFunc("GET /v1/chat/messages", chatHandler.HandleListMessages)
	s.mux.HandleFunc("POST /v1/chat/messages", chatHandler.HandleSendMessage)
	s.mux.HandleFunc("GET /v1/chat/tip", chatHandler.HandleTip)

	// Charts & insights
	insightsHandler := insights.NewHandler(insights.NewService(s.storage, s.storage, s.config.Goals, s.log.Named("insights")))
	s.mux.HandleFunc("GET /v1/charts/series", insightsHandler.HandleSeries)
	s.mux.HandleFunc("GET /v1/insights/daily", insightsHandler.HandleDaily)

	// Realtime
	wsHandler := realtime.NewHandler(s.hub, s.storage, wsOriginPatterns(s.config.CORSAllowedOrigins))
	s.mux.HandleFunc("GET /v1/ws", wsHandler.HandleWS)

	// Reports API
	reportsService := reports.NewService(
		s.reportsStorage,
		s.storage,
		s.storage,
		reportsBlobStore,
		reports.Options{
			MaxRangeDays:    s.config.ReportsMaxRangeDays,
			PresignTTL:      s.config.Blob.S3.PresignTTLSeconds,
			PublicBaseURL:   s.config.Blob.S3.PublicBaseURL,
			PreferPublicURL: s.config.Blob.S3.PreferPublicURL,
		},
		s.log.Named("reports"),
	)
	reportsHandler := reports.NewHandlers(reportsService)
	s.mux.HandleFunc("POST /v1/reports", reportsHandler.HandleCreate)
	s.mux.HandleFunc("GET /v1/reports", reportsHandler.HandleList)
	s.mux.HandleFunc("GET /v1/reports/{id}/download", reportsHandler.HandleDownload)
	s.mux.HandleFunc("DELETE /v1/reports/{id}", reportsHandler.HandleDelete)
}

// Handler возвращает mux с middleware (outermost first): CORS → Rate Limit → Access Log → Auth → Router
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.mux
	if s.authMiddleware != nil && s.config.AuthEnabled {
		if s.config.AuthRequired {
			handler = s.authMiddleware.RequireAuth(handler)
		} else {
			handler = s.authMiddleware.OptionalAuth(handler)
		}
	}
	handler = AccessLogMiddleware(s.log.Named("http"), handler)
	handler = RateLimitMiddleware(s.config, handler)
	handler = CORSMiddleware(s.config, handler)
	return handler
}

// Hub — realtime hub сервера
func (s *Server) Hub() *realtime.Hub {
	return s.hub
}

// handleHealthz возвращает статус сервера
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"ws_sessions": s.hub.ConnectionCount(),
	})
}

// Start запускает HTTP сервер и блокируется до ctx.Done или ошибки listener.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening",
			zap.String("addr", addr),
			zap.String("healthz", fmt.Sprintf("http://localhost%s/healthz", addr)),
		)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		s.log.Info("shutting down server")
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// Close закрывает storage и освобождает ресурсы
func (s *Server) Close() error {
	if s.storage != nil {
		return s.storage.Close()
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
}
