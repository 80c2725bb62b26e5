// Пакет config — загрузка и валидация конфигурации каталога реплеев
// из переменных окружения (префикс RC_).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Драйверы хранилища записей.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Драйверы файлового хранилища артефактов.
const (
	BlobDriverFS = "fs"
	BlobDriverS3 = "s3"
)

// Config содержит все параметры конфигурации каталога реплеев.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration

	// --- Хранилище записей ---

	// StoreDriver — postgres или memory
	StoreDriver string
	DBHost      string
	DBPort      int
	DBName      string
	DBUser      string
	DBPassword  string
	DBSSLMode   string
	// DBMaxConns — максимальный размер пула соединений
	DBMaxConns int
	// DBConnectTimeout — сколько ждать доступности PostgreSQL при старте
	DBConnectTimeout time.Duration

	// --- Файловое хранилище ---

	// BlobDriver — fs или s3
	BlobDriver string
	// DataDir — корневой каталог артефактов для драйвера fs
	DataDir    string
	S3Bucket   string
	S3Region   string
	S3Endpoint string
	// S3PathStyle — path-style адресация (MinIO, Ceph RGW)
	S3PathStyle bool

	// --- Кэш ---

	CacheSize int
	CacheTTL  time.Duration

	// --- Жизненный цикл ---

	// CleanupSchedule — cron-выражение для sweep ("" = отключён)
	CleanupSchedule string
	// CleanupTimeout — ограничение длительности одного запуска sweep
	CleanupTimeout time.Duration
	// WeeklyUploadLimit — загрузок на владельца за 7 дней (0 = без ограничения)
	WeeklyUploadLimit int
	// MaxUploadSize — максимальный размер multipart-загрузки в байтах
	MaxUploadSize int64

	// --- JWT ---

	// JWKSURL — URL JWKS endpoint ("" = аутентификация отключена)
	JWKSURL string
	// JWTIssuer — ожидаемый iss ("" = не проверяется)
	JWTIssuer string
	// AdminGroups — группы IdP, дающие роль admin
	AdminGroups []string
	// JWKSClientTimeout — таймаут HTTP-клиента для загрузки JWKS
	JWKSClientTimeout time.Duration
	// JWKSRefreshInterval — интервал обновления JWKS
	JWKSRefreshInterval time.Duration
	// JWTLeeway — допуск расхождения часов при проверке exp/nbf
	JWTLeeway time.Duration
	// DevRole — роль локального пользователя при отключённой аутентификации
	DevRole string

	// --- Dephealth ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
//
//nolint:gocyclo,funlen // линейная последовательность переменных
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	cfg.Port, err = getEnvInt("RC_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("RC_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("RC_PORT: порт вне диапазона 1-65535: %d", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("RC_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("RC_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("RC_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("RC_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("RC_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RC_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("RC_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RC_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("RC_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RC_HTTP_IDLE_TIMEOUT: %w", err)
	}

	cfg.ShutdownTimeout, err = getEnvDuration("RC_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RC_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- Хранилище записей ---

	cfg.StoreDriver = getEnvDefault("RC_STORE_DRIVER", StoreDriverPostgres)
	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DBHost, err = getEnvRequired("RC_DB_HOST"); err != nil {
			return nil, err
		}
		if cfg.DBName, err = getEnvRequired("RC_DB_NAME"); err != nil {
			return nil, err
		}
		if cfg.DBUser, err = getEnvRequired("RC_DB_USER"); err != nil {
			return nil, err
		}
		if cfg.DBPassword, err = getEnvRequired("RC_DB_PASSWORD"); err != nil {
			return nil, err
		}
	case StoreDriverMemory:
		// БД не нужна
	default:
		return nil, fmt.Errorf("RC_STORE_DRIVER: недопустимое значение %q, допустимые: postgres, memory", cfg.StoreDriver)
	}

	cfg.DBPort, err = getEnvInt("RC_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("RC_DB_PORT: %w", err)
	}
	cfg.DBSSLMode = getEnvDefault("RC_DB_SSL_MODE", "disable")
	cfg.DBMaxConns, err = getEnvInt("RC_DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("RC_DB_MAX_CONNS: %w", err)
	}
	if cfg.DBMaxConns < 1 {
		return nil, fmt.Errorf("RC_DB_MAX_CONNS: значение должно быть >= 1, получено %d", cfg.DBMaxConns)
	}
	cfg.DBConnectTimeout, err = getEnvDuration("RC_DB_CONNECT_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RC_DB_CONNECT_TIMEOUT: %w", err)
	}

	// --- Файловое хранилище ---

	cfg.BlobDriver = getEnvDefault("RC_BLOB_DRIVER", BlobDriverFS)
	cfg.DataDir = getEnvDefault("RC_DATA_DIR", "./data/replays")
	cfg.S3Region = getEnvDefault("RC_S3_REGION", "us-east-1")
	cfg.S3Endpoint = os.Getenv("RC_S3_ENDPOINT")
	cfg.S3PathStyle, err = getEnvBool("RC_S3_PATH_STYLE", false)
	if err != nil {
		return nil, fmt.Errorf("RC_S3_PATH_STYLE: %w", err)
	}
	switch cfg.BlobDriver {
	case BlobDriverFS:
	case BlobDriverS3:
		if cfg.S3Bucket, err = getEnvRequired("RC_S3_BUCKET"); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("RC_BLOB_DRIVER: недопустимое значение %q, допустимые: fs, s3", cfg.BlobDriver)
	}

	// --- Кэш ---

	cfg.CacheSize, err = getEnvInt("RC_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("RC_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize <= 0 {
		return nil, fmt.Errorf("RC_CACHE_SIZE: значение должно быть положительным")
	}
	cfg.CacheTTL, err = getEnvDuration("RC_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("RC_CACHE_TTL: %w", err)
	}

	// --- Жизненный цикл ---

	cfg.CleanupSchedule = getEnvDefault("RC_CLEANUP_SCHEDULE", "@daily")
	if strings.EqualFold(cfg.CleanupSchedule, "off") {
		cfg.CleanupSchedule = ""
	}
	if cfg.CleanupSchedule != "" {
		if _, err := cron.ParseStandard(cfg.CleanupSchedule); err != nil {
			return nil, fmt.Errorf("RC_CLEANUP_SCHEDULE: некорректное cron-выражение %q: %w", cfg.CleanupSchedule, err)
		}
	}

	cfg.CleanupTimeout, err = getEnvDuration("RC_CLEANUP_TIMEOUT", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("RC_CLEANUP_TIMEOUT: %w", err)
	}

	cfg.WeeklyUploadLimit, err = getEnvInt("RC_WEEKLY_UPLOAD_LIMIT", 3)
	if err != nil {
		return nil, fmt.Errorf("RC_WEEKLY_UPLOAD_LIMIT: %w", err)
	}
	if cfg.WeeklyUploadLimit < 0 {
		return nil, fmt.Errorf("RC_WEEKLY_UPLOAD_LIMIT: значение не может быть отрицательным")
	}

	cfg.MaxUploadSize, err = getEnvInt64("RC_MAX_UPLOAD_SIZE", 10<<20)
	if err != nil {
		return nil, fmt.Errorf("RC_MAX_UPLOAD_SIZE: %w", err)
	}
	if cfg.MaxUploadSize <= 0 {
		return nil, fmt.Errorf("RC_MAX_UPLOAD_SIZE: значение должно быть положительным")
	}

	// --- JWT ---

	cfg.JWKSURL = os.Getenv("RC_JWKS_URL")
	cfg.JWTIssuer = os.Getenv("RC_JWT_ISSUER")
	cfg.AdminGroups = parseCSV(getEnvDefault("RC_ADMIN_GROUPS", "artstore-admins"))

	cfg.JWKSClientTimeout, err = getEnvDuration("RC_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RC_JWKS_CLIENT_TIMEOUT: %w", err)
	}
	cfg.JWKSRefreshInterval, err = getEnvDuration("RC_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("RC_JWKS_REFRESH_INTERVAL: %w", err)
	}
	cfg.JWTLeeway, err = getEnvDuration("RC_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RC_JWT_LEEWAY: %w", err)
	}

	cfg.DevRole = getEnvDefault("RC_DEV_ROLE", "readonly")
	if cfg.DevRole != "readonly" && cfg.DevRole != "admin" {
		return nil, fmt.Errorf("RC_DEV_ROLE: допустимые значения readonly, admin; получено %q", cfg.DevRole)
	}

	// --- Dephealth ---

	cfg.DephealthGroup = getEnvDefault("RC_DEPHEALTH_GROUP", "replaystore")
	cfg.DephealthCheckInterval, err = getEnvDuration("RC_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RC_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов мониторинга).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s@%s:%d/%s", c.DBUser, c.DBHost, c.DBPort, c.DBName)
}

// AuthEnabled сообщает, включена ли JWT-аутентификация.
func (c *Config) AuthEnabled() bool {
	return c.JWKSURL != ""
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
