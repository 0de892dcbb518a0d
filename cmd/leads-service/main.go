package main

import (
	"context"
	"fmt"
	"os"

	"github.com/valetops/leads-service/internal/auth"
	"github.com/valetops/leads-service/internal/config"
	"github.com/valetops/leads-service/internal/db"
	"github.com/valetops/leads-service/internal/excel"
	httphandler "github.com/valetops/leads-service/internal/http"
	"github.com/valetops/leads-service/internal/http/middleware"
	"github.com/valetops/leads-service/internal/logger"
	"github.com/valetops/leads-service/internal/pdf"
	"github.com/valetops/leads-service/internal/repository"
	"github.com/valetops/leads-service/internal/service"
	"github.com/valetops/leads-service/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	bucket, err := storage.Open(context.Background(), cfg.Blob.BucketURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open blob bucket")
	}
	defer bucket.Close()

	leadRepo := repository.NewLeadRepository(database)
	userRepo := repository.NewUserRepository(database)

	leadService := service.NewLeadService(leadRepo, bucket, excel.NewGenerator(), pdf.NewGenerator(), cfg, log)
	authService := service.NewAuthService(userRepo, auth.NewIssuer(cfg.Auth.AccessSecret))

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(leadService, authService, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment, cfg.HTTP.AllowedOrigins)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting leads service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
