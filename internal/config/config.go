package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Model provider
	GeminiAPIKey         string  `env:"GEMINI_API_KEY" validate:"required"`
	PrimaryModel         string  `env:"PRIMARY_MODEL" validate:"required"`
	SecondaryModel       string  `env:"SECONDARY_MODEL" validate:"required"`
	ModelTemperature     float32 `env:"MODEL_TEMPERATURE" validate:"gte=0,lte=2"`
	ModelMaxOutputTokens int32   `env:"MODEL_MAX_OUTPUT_TOKENS" validate:"gt=0"`

	// Remote conversion service
	BackendURL     string        `env:"BACKEND_URL" validate:"omitempty,http_url"`
	BackendTimeout time.Duration `env:"BACKEND_TIMEOUT" validate:"gt=0"`

	// Conversion
	ConvertTimeout time.Duration `env:"CONVERT_TIMEOUT" validate:"gt=0"`

	// Rate Limit
	RateLimitConvert int `env:"RATE_LIMIT_CONVERT" validate:"gt=0"`

	// Server
	ServerPort string `env:"SERVER_PORT" validate:"required,numeric"`
	// TrustProxyHeaders はX-Forwarded-For/X-Real-IPをクライアントIPとして使うかどうか。
	// リバースプロキシの背後で、プロキシがこれらのヘッダーを上書きする場合のみ有効にする。
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS"`

	// CORS
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" validate:"required"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに .env があれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定、または値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		PrimaryModel:         getEnvString("PRIMARY_MODEL", "gemini-1.5-pro"),
		SecondaryModel:       getEnvString("SECONDARY_MODEL", "gemini-2.0-flash-lite"),
		ModelTemperature:     getEnvFloat32("MODEL_TEMPERATURE", 0.2),
		ModelMaxOutputTokens: int32(getEnvInt("MODEL_MAX_OUTPUT_TOKENS", 2048)),
		BackendURL:           strings.TrimRight(os.Getenv("BACKEND_URL"), "/"),
		BackendTimeout:       getEnvDuration("BACKEND_TIMEOUT", 30*time.Second),
		ConvertTimeout:       getEnvDuration("CONVERT_TIMEOUT", 90*time.Second),
		RateLimitConvert:     getEnvInt("RATE_LIMIT_CONVERT", 30),
		ServerPort:           getEnvString("SERVER_PORT", "8080"),
		TrustProxyHeaders:    getEnvBool("TRUST_PROXY_HEADERS", false),
		CORSAllowedOrigin:    getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000"),
		LogLevel:             strings.ToLower(getEnvString("LOG_LEVEL", "info")),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate は構造体タグに従って設定値を検証する。
// 未設定の必須変数と不正な値を環境変数名でまとめて報告する。
func validate(cfg *Config) error {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("env")
	})

	err := v.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate config: %w", err)
	}

	var missing, invalid []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
			continue
		}
		invalid = append(invalid, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", missing)
	}
	return fmt.Errorf("invalid environment variables: %v", invalid)
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvFloat32(key string, defaultVal float32) float32 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return defaultVal
	}
	return float32(f)
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
