package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calladine/migralog/internal/backup"
	"github.com/calladine/migralog/internal/database"
	"github.com/calladine/migralog/internal/logging"
	"github.com/calladine/migralog/internal/server"
)

const appVersion = "1.4.2"

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := logging.Setup(env("MIGRALOG_LOG_LEVEL", "info"))

	port := env("MIGRALOG_PORT", "8080")
	dbPath := env("MIGRALOG_DB_PATH", "migralog.db")

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("failed to open database", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cfg := server.Config{
		APIToken: os.Getenv("MIGRALOG_API_TOKEN"),
		Backup: backup.Config{
			Dir:        env("MIGRALOG_BACKUP_DIR", "backups"),
			AppVersion: appVersion,
			Offsite: backup.OffsiteConfig{
				Endpoint:   os.Getenv("MIGRALOG_S3_ENDPOINT"),
				Bucket:     os.Getenv("MIGRALOG_S3_BUCKET"),
				Region:     env("MIGRALOG_S3_REGION", "auto"),
				AccessKey:  os.Getenv("MIGRALOG_S3_ACCESS_KEY"),
				SecretKey:  os.Getenv("MIGRALOG_S3_SECRET_KEY"),
				Prefix:     os.Getenv("MIGRALOG_S3_PREFIX"),
				Passphrase: os.Getenv("MIGRALOG_S3_PASSPHRASE"),
			},
		},
	}

	srv := server.New(db, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv.BackupManager().Start(ctx)
	defer srv.BackupManager().Stop()

	srv.Scheduler().Start(ctx)
	defer srv.Scheduler().Stop()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		fmt.Printf("Migralog running at http://localhost:%s\n", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
