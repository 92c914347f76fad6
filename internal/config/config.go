package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the judge API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	JWTSecret              string
	JWTRefreshSecret       string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	CatalogCacheTTL        time.Duration
	ProgressCacheTTL       time.Duration
	DockerHost             string
	ExecutionTimeout       time.Duration
	SandboxMemoryMB        int
	SandboxCPUShares       int
	AIProvider             string
	OpenAIAPIKey           string
	AnthropicAPIKey        string
	SeedEnabled            bool
	SeedToken              string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("EVALIA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Evalia Judge API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("cloudinary.folder", "evalia/attachments")
	v.SetDefault("catalog.cache_ttl", "5m")
	v.SetDefault("progress.cache_ttl", "1m")
	v.SetDefault("execution_timeout_ms", 10000)
	v.SetDefault("sandbox_memory_mb", 256)
	v.SetDefault("sandbox_cpu_shares", 512)
	v.SetDefault("ai.provider", "openai")

	catalogTTL, err := parseTTL(v.GetString("catalog.cache_ttl"), 5*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid catalog cache ttl: %w", err)
	}

	progressTTL, err := parseTTL(v.GetString("progress.cache_ttl"), time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid progress cache ttl: %w", err)
	}

	timeoutMs := v.GetInt("execution_timeout_ms")
	if timeoutMs <= 0 {
		timeoutMs = 10000
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		JWTRefreshSecret:       v.GetString("jwt.refresh_secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		CatalogCacheTTL:        catalogTTL,
		ProgressCacheTTL:       progressTTL,
		DockerHost:             v.GetString("docker_host"),
		ExecutionTimeout:       time.Duration(timeoutMs) * time.Millisecond,
		SandboxMemoryMB:        v.GetInt("sandbox_memory_mb"),
		SandboxCPUShares:       v.GetInt("sandbox_cpu_shares"),
		AIProvider:             strings.ToLower(v.GetString("ai.provider")),
		OpenAIAPIKey:           v.GetString("openai_api_key"),
		AnthropicAPIKey:        v.GetString("anthropic_api_key"),
		SeedEnabled:            v.GetBool("seed.enabled"),
		SeedToken:              v.GetString("seed.token"),
	}

	if cfg.JWTSecret == "" || cfg.JWTRefreshSecret == "" {
		return Config{}, fmt.Errorf("jwt secrets must be provided")
	}

	if cfg.SandboxMemoryMB <= 0 {
		cfg.SandboxMemoryMB = 256
	}

	if cfg.SandboxCPUShares <= 0 {
		cfg.SandboxCPUShares = 512
	}

	return cfg, nil
}

func parseTTL(value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	return time.ParseDuration(value)
}
