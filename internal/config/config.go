// Пакет config — загрузка и валидация конфигурации сервиса сбора
// материалов из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации сервиса.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Путь к директории конфигурации: справочники и журнал записей
	ConfigDir string
	// Путь к директории временных файлов загрузки
	TempDir string

	// Базовый URL API внешнего хранилища
	StorageEndpoint string
	// Имя зоны хранилища
	StorageZone string
	// Ключ доступа зоны
	StorageAccessKey string
	// Базовый путь материалов внутри зоны (без ведущих/замыкающих "/")
	StorageBasePath string

	// Корневой URL CDN, с которого раздаются файлы зоны
	CdnRootUrl string
	// Ключ подписи URL CDN
	CdnTokenKey string
	// URL API сброса кэша CDN
	CdnPurgeUrl string
	// Ключ аккаунта CDN для сброса кэша (пустой — сброс выключен)
	CdnApiKey string

	// Секретный ключ мандатных токенов сервиса
	AuthPrivateKey string

	// Пути к внешним инструментам анализа медиа
	FfmpegPath  string
	FfprobePath string

	// URL JWKS endpoint для проверки административных JWT.
	// Пустое значение отключает административные маршруты.
	JWKSUrl string
	// Путь к CA-сертификату для проверки TLS JWKS endpoint (опционально)
	JWKSCACert string

	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
	// Интервал фоновой проверки, что журнал записей сохранён на диск
	EnsureOnDiskInterval time.Duration
	// Интервал фоновой уборки осиротевших временных файлов загрузки
	JanitorInterval time.Duration
	// Возраст временного файла, после которого он считается осиротевшим
	JanitorMaxAge time.Duration
	// Интервал фоновой сверки журнала записей с каталогом
	ReconcileInterval time.Duration

	// Интервал проверки зависимостей topologymetrics
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics
	DephealthGroup string
	// Имя зависимости (целевого сервиса) в метриках topologymetrics
	DephealthDepName string
	// Имя владельца пода для метки name в topologymetrics
	DephealthName string
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// UP_PORT — порт HTTP-сервера (по умолчанию 8080)
	port, err := getEnvInt("UP_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("UP_PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("UP_PORT: значение %d вне допустимого диапазона", port)
	}
	cfg.Port = port

	// UP_CONFIG_DIR — обязательный
	cfg.ConfigDir, err = getEnvRequired("UP_CONFIG_DIR")
	if err != nil {
		return nil, err
	}

	// UP_TEMP_DIR — директория временных файлов (по умолчанию системная)
	cfg.TempDir = getEnvDefault("UP_TEMP_DIR", os.TempDir())

	// UP_STORAGE_ENDPOINT — базовый URL API хранилища
	cfg.StorageEndpoint = getEnvDefault("UP_STORAGE_ENDPOINT", "https://storage.bunnycdn.com")

	// UP_STORAGE_ZONE — обязательный
	cfg.StorageZone, err = getEnvRequired("UP_STORAGE_ZONE")
	if err != nil {
		return nil, err
	}

	// UP_STORAGE_ACCESS_KEY — обязательный
	cfg.StorageAccessKey, err = getEnvRequired("UP_STORAGE_ACCESS_KEY")
	if err != nil {
		return nil, err
	}

	// UP_STORAGE_BASE_PATH — обязательный
	basePath, err := getEnvRequired("UP_STORAGE_BASE_PATH")
	if err != nil {
		return nil, err
	}
	cfg.StorageBasePath = strings.Trim(basePath, "/")

	// UP_CDN_ROOT_URL — обязательный
	rootUrl, err := getEnvRequired("UP_CDN_ROOT_URL")
	if err != nil {
		return nil, err
	}
	cfg.CdnRootUrl = strings.TrimSuffix(rootUrl, "/")

	// UP_CDN_TOKEN_KEY — обязательный
	cfg.CdnTokenKey, err = getEnvRequired("UP_CDN_TOKEN_KEY")
	if err != nil {
		return nil, err
	}

	// UP_CDN_PURGE_URL — URL API сброса кэша
	cfg.CdnPurgeUrl = getEnvDefault("UP_CDN_PURGE_URL", "https://api.bunny.net/purge")

	// UP_CDN_API_KEY — ключ аккаунта CDN (опционально)
	cfg.CdnApiKey = getEnvDefault("UP_CDN_API_KEY", "")

	// UP_AUTH_PRIVATE_KEY — обязательный
	cfg.AuthPrivateKey, err = getEnvRequired("UP_AUTH_PRIVATE_KEY")
	if err != nil {
		return nil, err
	}

	// UP_FFMPEG_PATH, UP_FFPROBE_PATH — пути к инструментам анализа
	cfg.FfmpegPath = getEnvDefault("UP_FFMPEG_PATH", "/usr/bin/ffmpeg")
	cfg.FfprobePath = getEnvDefault("UP_FFPROBE_PATH", "/usr/bin/ffprobe")

	// UP_JWKS_URL — опциональный, без него административные маршруты выключены
	cfg.JWKSUrl = getEnvDefault("UP_JWKS_URL", "")

	// UP_JWKS_CA_CERT — путь к CA-сертификату для JWKS endpoint (опционально)
	cfg.JWKSCACert = getEnvDefault("UP_JWKS_CA_CERT", "")

	// UP_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("UP_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("UP_LOG_LEVEL: %w", err)
	}

	// UP_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("UP_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("UP_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// UP_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("UP_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("UP_SHUTDOWN_TIMEOUT: %w", err)
	}

	// UP_ENSURE_ON_DISK_INTERVAL — интервал фоновой проверки журнала (по умолчанию 1m)
	cfg.EnsureOnDiskInterval, err = getEnvDuration("UP_ENSURE_ON_DISK_INTERVAL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("UP_ENSURE_ON_DISK_INTERVAL: %w", err)
	}

	// UP_JANITOR_INTERVAL — интервал уборки временных файлов (по умолчанию 30m)
	cfg.JanitorInterval, err = getEnvDuration("UP_JANITOR_INTERVAL", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("UP_JANITOR_INTERVAL: %w", err)
	}

	// UP_JANITOR_MAX_AGE — возраст осиротевшего временного файла (по умолчанию 6h)
	cfg.JanitorMaxAge, err = getEnvDuration("UP_JANITOR_MAX_AGE", 6*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("UP_JANITOR_MAX_AGE: %w", err)
	}

	// UP_RECONCILE_INTERVAL — интервал сверки журнала с каталогом (по умолчанию 6h)
	cfg.ReconcileInterval, err = getEnvDuration("UP_RECONCILE_INTERVAL", 6*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("UP_RECONCILE_INTERVAL: %w", err)
	}

	// UP_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("UP_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("UP_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// UP_DEPHEALTH_GROUP — имя группы в метриках topologymetrics
	cfg.DephealthGroup = getEnvDefault("UP_DEPHEALTH_GROUP", "collector")

	// UP_DEPHEALTH_DEP_NAME — имя зависимости в метриках topologymetrics
	cfg.DephealthDepName = getEnvDefault("UP_DEPHEALTH_DEP_NAME", "media-storage")

	// DEPHEALTH_NAME — имя владельца пода для метки name в topologymetrics
	cfg.DephealthName = getEnvDefault("DEPHEALTH_NAME", "")

	return cfg, nil
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

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
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

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
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
