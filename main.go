package main

import (
	"log"
	"net/http"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"ecoledger/auth"
	"ecoledger/config"
	"ecoledger/filestore"
	"ecoledger/models"
	"ecoledger/notify"
	"ecoledger/observability/logging"
	"ecoledger/payment"
	"ecoledger/server"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := logging.Setup("ecoledger", cfg.Env)

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatalf("database connection error: %v", err)
	}

	if err := models.AutoMigrate(db); err != nil {
		log.Fatalf("auto migrate error: %v", err)
	}

	srv := server.New(server.Config{
		DB:               db,
		Payments:         payment.NewHTTPClient(cfg.PaymentBaseURL, cfg.PaymentAPIKey),
		Notifier:         notify.NewWebhook(notify.WebhookConfig{Endpoint: cfg.NotifyEndpoint, Token: cfg.NotifyToken}),
		Files:            filestore.NewHTTPStore(cfg.StorageBaseURL, cfg.StorageToken),
		Log:              logger,
		EvidenceMinFiles: cfg.EvidenceMinFiles,
		EvidenceMaxFiles: cfg.EvidenceMaxFiles,
		ProductImagesMin: cfg.ProductImagesMin,
		ProductImagesMax: cfg.ProductImagesMax,
		Auth: auth.Options{
			JWTSecret: []byte(cfg.JWTSecret),
			Issuer:    cfg.JWTIssuer,
			Audience:  cfg.JWTAudience,
		},
	})

	addr := ":" + cfg.Port
	logger.Info("starting ecoledger", "addr", addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
