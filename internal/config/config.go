package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey        string        `validate:"required_without=PollinationsAPIKey"`
	PollinationsAPIKey  string        `validate:"required_without=GeminiAPIKey"`
	PollinationsBaseURL string        `validate:"required,url"`
	DatabaseURL         string        `validate:"required"`
	KVBackend           string        `validate:"oneof=badger sqlite"`
	BadgerPath          string        `validate:"required_if=KVBackend badger"`
	ModelRegistryFile   string        // empty means the built-in registry
	HTTPPort            string        `validate:"required,numeric"`
	LogLevel            string        `validate:"oneof=DEBUG INFO WARN ERROR"`
	JWTSecret           string        `validate:"required"`
	AdminUserIDs        []string      // external user ids allowed to change the global model
	SummaryTimeout      time.Duration `validate:"gt=0"`
}

var AppConfig Config

// StorageFields are the settings needed to open the registry and the selection
// store. Commands that never serve HTTP or call a provider validate only these.
var StorageFields = []string{"DatabaseURL", "KVBackend", "BadgerPath", "ModelRegistryFile", "LogLevel"}

// LoadConfig populates AppConfig from the environment and exits on invalid config.
// With no fields every setting is validated.
func LoadConfig(fields ...string) {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg, err := FromEnv(fields...)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	AppConfig = cfg
}

// FromEnv reads and validates the configuration without touching AppConfig.
// When fields are given only those are validated.
func FromEnv(fields ...string) (Config, error) {
	cfg := Config{
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		PollinationsAPIKey:  getEnv("POLLINATIONS_API_KEY", ""),
		PollinationsBaseURL: getEnv("POLLINATIONS_BASE_URL", "https://text.pollinations.ai/openai"),
		DatabaseURL:         getEnv("DATABASE_URL", "ai_stylist.db"),
		KVBackend:           strings.ToLower(getEnv("KV_BACKEND", "badger")),
		BadgerPath:          getEnv("BADGER_PATH", "data/kv"),
		ModelRegistryFile:   getEnv("MODEL_REGISTRY_FILE", ""),
		HTTPPort:            getEnv("HTTP_PORT", "8080"),
		LogLevel:            strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		AdminUserIDs:        getEnvAsList("ADMIN_USER_IDS"),
		SummaryTimeout:      getEnvAsDuration("SUMMARY_TIMEOUT", 20*time.Second),
	}

	validate := validator.New()
	var err error
	if len(fields) == 0 {
		err = validate.Struct(cfg)
	} else {
		err = validate.StructPartial(cfg, fields...)
	}
	if err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			e := verrs[0]
			return Config{}, fmt.Errorf("config field %s failed on '%s'", e.Field(), e.Tag())
		}
		return Config{}, err
	}
	return cfg, nil
}

// IsAdmin reports whether the external user id is listed in ADMIN_USER_IDS.
func (c Config) IsAdmin(externalUserID string) bool {
	for _, id := range c.AdminUserIDs {
		if id == externalUserID {
			return true
		}
	}
	return false
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvAsDuration accepts Go durations ("30s") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
