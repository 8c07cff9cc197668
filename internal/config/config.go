// Package config loads runtime configuration from the environment, with a
// .env file honored for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Env  string

	// Gemini settings for the text-generation gateway.
	GeminiAPIKey string
	GeminiModel  string

	// Context store backend: memory, disk, or postgres.
	ContextBackend string
	ContextDir     string
	PostgresDSN    string

	// Output storage for packaged cases.
	OutputDir string
	Artifact  ArtifactConfig

	Concurrency      int
	MaxFixIterations int
	ProfilesPath     string
	Timezone         string
}

// ArtifactConfig configures the MinIO/S3 upload target for packaged cases.
type ArtifactConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = ":8082"
	} else if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	cfg := &Config{
		Port:             port,
		Env:              env,
		GeminiAPIKey:     strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:      firstNonEmpty(strings.TrimSpace(os.Getenv("GEMINI_MODEL")), "gemini-2.0-flash"),
		ContextBackend:   firstNonEmpty(strings.ToLower(strings.TrimSpace(os.Getenv("CONTEXT_BACKEND"))), "disk"),
		ContextDir:       firstNonEmpty(strings.TrimSpace(os.Getenv("CONTEXT_DIR")), ".caseforge/context"),
		PostgresDSN:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		OutputDir:        firstNonEmpty(strings.TrimSpace(os.Getenv("OUTPUT_DIR")), ".caseforge/cases"),
		Artifact:         loadArtifactConfig(env),
		Concurrency:      intEnv("PIPELINE_CONCURRENCY", 4),
		MaxFixIterations: intEnv("MAX_FIX_ITERATIONS", 3),
		ProfilesPath:     strings.TrimSpace(os.Getenv("PROFILES_PATH")),
		Timezone:         firstNonEmpty(strings.TrimSpace(os.Getenv("CASE_TIMEZONE")), "UTC"),
	}

	switch cfg.ContextBackend {
	case "memory", "disk", "postgres":
	default:
		return nil, fmt.Errorf("config: unknown CONTEXT_BACKEND %q", cfg.ContextBackend)
	}
	if cfg.ContextBackend == "postgres" && cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("config: CONTEXT_BACKEND=postgres requires DATABASE_URL")
	}
	return cfg, nil
}

func loadArtifactConfig(env string) ArtifactConfig {
	endpoint := resolveArtifactEndpoint(env)
	return ArtifactConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_BUCKET")), "caseforge-cases"),
		UseSSL:    resolveArtifactUseSSL(env),
	}
}

func resolveArtifactEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return strings.TrimSpace(os.Getenv("ARTIFACT_MINIO_ENDPOINT"))
	}
	return strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT"))
}

func resolveArtifactUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("ARTIFACT_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func intEnv(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
