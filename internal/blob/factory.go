package blob

import (
	"context"
	"fmt"
	"strings"

	appcfg "github.com/fdg312/fitswift-hub/internal/config"
	"go.uber.org/zap"
)

// NewBlobStore builds a blob store using mode local|s3|auto.
// local (и auto без S3) даёт MemoryStore, поэтому store никогда не nil.
// Второе значение — итоговый режим.
func NewBlobStore(ctx context.Context, cfg appcfg.BlobConfig, log *zap.Logger) (Store, string, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("blob")

	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = appcfg.BlobModeLocal
	}

	switch mode {
	case appcfg.BlobModeLocal:
		log.Info("blob mode selected", zap.String("mode", appcfg.BlobModeLocal), zap.String("reason", "forced"))
		return NewMemoryStore(), appcfg.BlobModeLocal, nil

	case appcfg.BlobModeAuto:
		if !cfg.S3.IsConfigured() {
			level, code, msg := cfg.S3.Diagnostics()
			fields := []zap.Field{
				zap.String("code", code),
				zap.String("message", msg),
				zap.String("summary", cfg.S3.DiagnosticsSummary()),
			}
			if level == "WARN" {
				log.Warn("s3 diagnostics", fields...)
			} else {
				log.Info("s3 diagnostics", fields...)
			}
			log.Info("blob mode selected", zap.String("mode", appcfg.BlobModeLocal), zap.String("reason", "auto, s3 not configured"))
			return NewMemoryStore(), appcfg.BlobModeLocal, nil
		}

		log.Info("s3 diagnostics", zap.String("code", "s3_ready"), zap.String("summary", cfg.S3.DiagnosticsSummary()))
		store, err := NewS3Store(ctx, cfg.S3.Endpoint, cfg.S3.Region, cfg.S3.Bucket, cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey)
		if err != nil {
			log.Warn("s3 init failed, fallback to local", zap.Error(err))
			return NewMemoryStore(), appcfg.BlobModeLocal, nil
		}

		log.Info("blob mode selected", zap.String("mode", appcfg.BlobModeS3), zap.String("reason", "auto, configured"))
		return store, appcfg.BlobModeS3, nil

	case appcfg.BlobModeS3:
		if !cfg.S3.IsConfigured() {
			missing := cfg.S3.MissingRequired()
			log.Error("s3 config incomplete",
				zap.String("code", "s3_config_incomplete"),
				zap.Strings("missing", missing),
				zap.String("summary", cfg.S3.DiagnosticsSummary()),
			)
			return nil, "", fmt.Errorf("BLOB_MODE=s3 requested but missing required config: %s", strings.Join(missing, ", "))
		}

		log.Info("s3 diagnostics", zap.String("code", "s3_ready"), zap.String("summary", cfg.S3.DiagnosticsSummary()))
		store, err := NewS3Store(ctx, cfg.S3.Endpoint, cfg.S3.Region, cfg.S3.Bucket, cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey)
		if err != nil {
			return nil, "", fmt.Errorf("BLOB_MODE=s3 init failed: %w", err)
		}

		log.Info("blob mode selected", zap.String("mode", appcfg.BlobModeS3), zap.String("reason", "forced"))
		return store, appcfg.BlobModeS3, nil

	default:
		return nil, "", fmt.Errorf("unsupported blob mode: %s", mode)
	}
}
