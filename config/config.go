package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// R2Config описывает подключение к Cloudflare R2 для обложек.
// Пустая конфигурация означает, что загрузка обложек отключена.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicBaseURL   string
}

// Enabled reports whether every R2 field is set.
func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.SecretAccessKey != "" &&
		c.BucketName != "" && c.PublicBaseURL != ""
}

func (c R2Config) partiallySet() bool {
	return !c.Enabled() && (c.AccountID != "" || c.AccessKeyID != "" || c.SecretAccessKey != "" ||
		c.BucketName != "" || c.PublicBaseURL != "")
}

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL     string
	DBMaxOpenConns  int
	SocketSecretKey string
	ServerPort      int
	AppURL          string
	Demo            bool
	Local           bool
	AllowedOrigins  []string
	R2              R2Config
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	secret := os.Getenv("SOCKET_SECRET_KEY")
	if secret == "" {
		return nil, fmt.Errorf("SOCKET_SECRET_KEY environment variable is not set")
	}

	portStr := os.Getenv("SERVER_PORT")
	if portStr == "" {
		portStr = "8080" // Порт по умолчанию
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	maxConns := 0
	if v := os.Getenv("DB_MAX_OPEN_CONNS"); v != "" {
		maxConns, err = strconv.Atoi(v)
		if err != nil || maxConns < 0 {
			return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS environment variable: %q", v)
		}
	}

	r2 := R2Config{
		AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		BucketName:      os.Getenv("R2_BUCKET_NAME"),
		PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
	}
	if r2.partiallySet() {
		return nil, fmt.Errorf("R2 configuration is incomplete: set all R2_* variables or none")
	}

	cfg := &Config{
		DatabaseURL:     dbURL,
		DBMaxOpenConns:  maxConns,
		SocketSecretKey: secret,
		ServerPort:      port,
		AppURL:          strings.TrimSuffix(os.Getenv("APP_URL"), "/"),
		Demo:            isSet(os.Getenv("DEMO")),
		Local:           isSet(os.Getenv("LOCAL")),
		AllowedOrigins:  splitList(os.Getenv("ALLOWED_ORIGINS")),
		R2:              r2,
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"https://*", "http://*"}
	}

	return cfg, nil
}

// isSet treats any non-empty value other than an explicit false as enabled,
// matching how DEMO and LOCAL flags are usually exported in shells.
func isSet(v string) bool {
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return true
	}
	return b
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
