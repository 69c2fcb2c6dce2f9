package main

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"github.com/fdg312/fitswift-hub/internal/config"
	"github.com/fdg312/fitswift-hub/internal/dbmigrate"
	"github.com/fdg312/fitswift-hub/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: go run ./cmd/migrate [up|status|down|list]")
		os.Exit(2)
	}

	log, err := logging.New("local", os.Getenv("LOG_LEVEL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer zap.ReplaceGlobals(log)()
	defer func() { _ = log.Sync() }()

	command := os.Args[1]
	switch command {
	case "up", "status", "down":
	case "list":
		files, err := dbmigrate.EmbeddedFiles()
		if err != nil {
			log.Fatal("read embedded migrations", zap.Error(err))
		}
		for _, name := range files {
			fmt.Println(name)
		}
		return
	default:
		log.Fatal("unsupported command (allowed: up, status, down, list)", zap.String("command", command))
	}

	cfg := config.Load()
	dbURL, source, warning, err := dbmigrate.SelectDatabaseURL(cfg, false)
	if err != nil {
		log.Fatal("select database url", zap.Error(err))
	}

	if warning != "" {
		log.Warn("migrate", zap.String("warning", warning))
	}
	log.Info("migrate", zap.String("command", command), zap.String("using", source))

	// MIGRATIONS_DIR позволяет гонять миграции с диска вместо встроенных
	if err := dbmigrate.Run(command, dbURL, os.Getenv("MIGRATIONS_DIR")); err != nil {
		log.Fatal("migrate failed", zap.String("command", command), zap.Error(err))
	}

	log.Info("migrate completed", zap.String("command", command))
}
