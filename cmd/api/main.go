package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"github.com/fdg312/fitswift-hub/internal/config"
	"github.com/fdg312/fitswift-hub/internal/dbmigrate"
	"github.com/fdg312/fitswift-hub/internal/httpserver"
	"github.com/fdg312/fitswift-hub/internal/logging"
)

func main() {
	// config.Load пишет предупреждения в глобальный логгер, поэтому он нужен раньше конфига
	bootLog, err := logging.New(firstNonEmpty(os.Getenv("APP_ENV"), os.Getenv("ENV"), "local"), os.Getenv("LOG_LEVEL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	restore := zap.ReplaceGlobals(bootLog)

	cfg := config.Load()

	log, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		bootLog.Fatal("init logger", zap.Error(err))
	}
	restore()
	zap.ReplaceGlobals(log)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	printStartupBanner(cfg, log)

	if cfg.RunMigrationsOnStartup {
		dbURL, source, _, err := dbmigrate.SelectDatabaseURL(cfg, true)
		if err != nil {
			return fmt.Errorf("startup migrations: %w", err)
		}

		log.Info("startup migrations", zap.String("command", "up"), zap.String("using", source))
		if err := dbmigrate.Run("up", dbURL, ""); err != nil {
			return fmt.Errorf("startup migrations failed: %w", err)
		}
		log.Info("startup migrations completed")
	}

	if err := validateProductionConfig(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := httpserver.New(ctx, cfg, log, httpserver.Options{})
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}
	defer server.Close()

	return server.Start(ctx)
}

// printStartupBanner logs a one-time summary of the resolved configuration.
// No secrets are ever printed, only "set" / "not set".
func printStartupBanner(cfg *config.Config, log *zap.Logger) {
	log.Info("fitswift hub api",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
	)

	dbFields := []zap.Field{
		zap.String("runtime_url", describeDBURL(cfg.DatabaseURL, cfg.DatabaseURLPooled)),
		zap.String("pooled", setOrNot(cfg.DatabaseURLPooled)),
		zap.String("direct", setOrNot(cfg.DatabaseURLDirect)),
		zap.Bool("migrations_on_startup", cfg.RunMigrationsOnStartup),
	}
	if cfg.RunMigrationsOnStartup && cfg.DatabaseURLDirect == "" {
		dbFields = append(dbFields, zap.String("migrations_via", "will fail, DATABASE_URL_DIRECT not set"))
	}
	log.Info("database", dbFields...)

	log.Info("auth",
		zap.String("auth_mode", cfg.AuthMode),
		zap.Bool("auth_required", cfg.AuthRequired),
		zap.String("jwt_secret", secretStatus(cfg.JWTSecret, "change_me")),
		zap.Int("jwt_ttl_minutes", cfg.JWTTTLMinutes),
	)

	blobFields := []zap.Field{
		zap.String("blob_mode", cfg.Blob.Mode),
		zap.String("reports_mode", displayReportsMode(cfg)),
		zap.String("reports_mode_effective", cfg.Blob.EffectiveReportsMode()),
	}
	if cfg.Blob.Mode != config.BlobModeLocal || cfg.Blob.EffectiveReportsMode() != config.BlobModeLocal {
		blobFields = append(blobFields, zap.String("s3", cfg.Blob.S3.DiagnosticsSummary()))
	}
	log.Info("blob", blobFields...)

	aiFields := []zap.Field{zap.String("ai_mode", cfg.AI.Mode)}
	switch cfg.AI.Mode {
	case config.AIModeGemini:
		aiFields = append(aiFields,
			zap.String("gemini_model", cfg.AI.GeminiModel),
			zap.String("gemini_api_key", setOrNot(cfg.AI.GeminiAPIKey)),
		)
	case config.AIModeOpenAI:
		aiFields = append(aiFields,
			zap.String("openai_model", cfg.AI.OpenAIModel),
			zap.String("openai_api_key", setOrNot(cfg.AI.OpenAIAPIKey)),
			zap.String("openai_base_url", nonEmptyOrDash(cfg.AI.OpenAIBaseURL)),
		)
	}
	log.Info("ai", aiFields...)

	log.Info("chat",
		zap.Int("history_window", cfg.ChatHistoryWindow),
		zap.Int("goal_steps", cfg.Goals.Steps),
		zap.Int("goal_calories", cfg.Goals.Calories),
		zap.Int("goal_exercise_min", cfg.Goals.ExerciseMin),
	)
}

// validateProductionConfig performs checks that only matter in non-local envs
// or for explicitly requested backends.
func validateProductionConfig(cfg *config.Config) error {
	isProd := cfg.Env == "production" || cfg.Env == "prod" || cfg.Env == "staging"

	needsS3 := cfg.Blob.Mode == config.BlobModeS3 || cfg.Blob.EffectiveReportsMode() == config.BlobModeS3
	if needsS3 {
		if missing := cfg.Blob.S3.MissingRequired(); len(missing) > 0 {
			return fmt.Errorf("blob: BLOB_MODE or REPORTS_MODE is 's3' but S3 config is incomplete, missing: %s", strings.Join(missing, ", "))
		}
	}

	if key := cfg.AI.MissingRequired(); key != "" {
		return fmt.Errorf("ai: AI_MODE=%s requires %s", cfg.AI.Mode, key)
	}

	if isProd && cfg.AuthRequired && cfg.JWTSecret == "change_me" {
		return fmt.Errorf("auth: JWT_SECRET must not be 'change_me' in %s with AUTH_REQUIRED=1", cfg.Env)
	}

	if isProd && cfg.DatabaseURL == "" {
		return fmt.Errorf("db: no DATABASE_URL configured in %s", cfg.Env)
	}

	return nil
}

// ---- helpers (no secrets) ----

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func setOrNot(v string) string {
	if strings.TrimSpace(v) == "" {
		return "not set"
	}
	return "set"
}

func nonEmptyOrDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}

func secretStatus(v, insecureDefault string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "not set"
	}
	if v == insecureDefault {
		return fmt.Sprintf("set (default, insecure '%s')", insecureDefault)
	}
	return "set (custom)"
}

func describeDBURL(runtime, pooled string) string {
	if runtime == "" {
		return "not set (in-memory storage)"
	}
	if pooled != "" && runtime == pooled {
		return "set (via DATABASE_URL_POOLED)"
	}
	return "set"
}

func displayReportsMode(cfg *config.Config) string {
	if cfg.Blob.ReportsModeSet {
		return cfg.Blob.ReportsMode
	}
	return fmt.Sprintf("(inherits BLOB_MODE=%s)", cfg.Blob.Mode)
}
