package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config represents runtime configuration for the platform service.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string

	PaymentBaseURL string
	PaymentAPIKey  string

	NotifyEndpoint string
	NotifyToken    string

	StorageBaseURL string
	StorageToken   string

	EvidenceMinFiles int
	EvidenceMaxFiles int
	ProductImagesMin int
	ProductImagesMax int

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
}

// FromEnv loads configuration from environment variables required by the service.
func FromEnv() (*Config, error) {
	dbURL := os.Getenv("ECO_DB_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("ECO_DB_URL is required")
	}

	paymentBase := os.Getenv("ECO_PAYMENT_BASE_URL")
	if paymentBase == "" {
		return nil, fmt.Errorf("ECO_PAYMENT_BASE_URL is required")
	}

	notifyEndpoint := os.Getenv("ECO_NOTIFY_ENDPOINT")
	if notifyEndpoint == "" {
		return nil, fmt.Errorf("ECO_NOTIFY_ENDPOINT is required")
	}

	storageBase := os.Getenv("ECO_STORAGE_BASE_URL")
	if storageBase == "" {
		return nil, fmt.Errorf("ECO_STORAGE_BASE_URL is required")
	}

	evidenceMin := parseIntEnv("ECO_EVIDENCE_MIN_FILES", 1)
	evidenceMax := parseIntEnv("ECO_EVIDENCE_MAX_FILES", 3)
	if evidenceMin < 1 || evidenceMax < evidenceMin {
		return nil, fmt.Errorf("invalid evidence file bounds [%d, %d]", evidenceMin, evidenceMax)
	}

	imagesMin := parseIntEnv("ECO_PRODUCT_IMAGES_MIN", 1)
	imagesMax := parseIntEnv("ECO_PRODUCT_IMAGES_MAX", 5)
	if imagesMin < 1 || imagesMax < imagesMin {
		return nil, fmt.Errorf("invalid product image bounds [%d, %d]", imagesMin, imagesMax)
	}

	jwtSecret := strings.TrimSpace(os.Getenv("ECO_AUTH_JWT_SECRET"))
	jwtIssuer := strings.TrimSpace(os.Getenv("ECO_AUTH_JWT_ISSUER"))
	if jwtSecret != "" && jwtIssuer == "" {
		return nil, fmt.Errorf("ECO_AUTH_JWT_ISSUER is required when JWT auth is enabled")
	}

	return &Config{
		Port:             normalizePort(getEnvDefault("ECO_PORT", "8080")),
		Env:              getEnvDefault("ECO_ENV", "dev"),
		DatabaseURL:      dbURL,
		PaymentBaseURL:   paymentBase,
		PaymentAPIKey:    os.Getenv("ECO_PAYMENT_API_KEY"),
		NotifyEndpoint:   notifyEndpoint,
		NotifyToken:      os.Getenv("ECO_NOTIFY_TOKEN"),
		StorageBaseURL:   storageBase,
		StorageToken:     os.Getenv("ECO_STORAGE_TOKEN"),
		EvidenceMinFiles: evidenceMin,
		EvidenceMaxFiles: evidenceMax,
		ProductImagesMin: imagesMin,
		ProductImagesMax: imagesMax,
		JWTSecret:        jwtSecret,
		JWTIssuer:        jwtIssuer,
		JWTAudience:      strings.TrimSpace(os.Getenv("ECO_AUTH_JWT_AUDIENCE")),
	}, nil
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func normalizePort(port string) string {
	if port == "" {
		return "8080"
	}
	if _, err := strconv.Atoi(port); err == nil {
		return port
	}
	// Allow values like ":8080".
	if len(port) > 0 && port[0] == ':' {
		return port[1:]
	}
	return port
}

func parseIntEnv(key string, def int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return def
}
