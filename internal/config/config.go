package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Guard    GuardConfig
	Sentinel SentinelConfig
	Approval ApprovalConfig
	Worker   WorkerConfig
	Venue    VenueConfig
	Notify   NotifyConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	// EncryptionKey - ключ AES-256 для API ключей клиентов (ровно 32 байта)
	EncryptionKey string

	// OperatorTokens - имя оператора -> bcrypt хеш токена.
	// Формат переменной OPERATOR_TOKENS: "alice:$2a$...;bob:$2a$..."
	OperatorTokens map[string]string
}

// GuardConfig - дефолтные лимиты circuit breaker деплоя
type GuardConfig struct {
	MaxGlobalDrawdownUsd float64
	MaxRunLossUsd        float64
	MaxAPIErrorsPerMin   int
	StaleTicker          time.Duration

	// StreamStaleTicker - порог тишины стрима, действующий лимит
	// на свежесть берётся как min двух порогов
	StreamStaleTicker time.Duration

	// StrictPersist эскалирует ошибки записи GuardState операторам
	StrictPersist bool
}

// SentinelConfig - пороги глобального мониторинга рынка
type SentinelConfig struct {
	BtcDropPct  float64
	GasSpikeWei uint64
	Venues      []string
	Cooldown    time.Duration
	Interval    time.Duration
	Retention   time.Duration
}

// ApprovalConfig - политика согласования крупных сделок
type ApprovalConfig struct {
	ThresholdUsd float64
}

// WorkerConfig - настройки оркестраторов воркеров
type WorkerConfig struct {
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
}

// VenueConfig - клиент рыночных данных
type VenueConfig struct {
	BaseURL           string
	RequestsPerSecond float64
}

// NotifyConfig - нотификатор
type NotifyConfig struct {
	QueueSize   int
	SendTimeout time.Duration

	// Пустые URL переключают на LogSender (dev режим)
	OpsWebhookURL    string
	ClientWebhookURL string
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Output string // console, file, both
	File   string
}

// Load загружает конфигурацию из переменных окружения
//
// .env подхватывается если есть (dev), в проде переменные приходят
// из окружения контейнера.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "tradeguard"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			EncryptionKey:  getEnv("ENCRYPTION_KEY", ""),
			OperatorTokens: parseOperatorTokens(getEnv("OPERATOR_TOKENS", "")),
		},
		Guard: GuardConfig{
			MaxGlobalDrawdownUsd: getEnvAsFloat("GUARD_MAX_GLOBAL_DRAWDOWN_USD", 10000),
			MaxRunLossUsd:        getEnvAsFloat("GUARD_MAX_RUN_LOSS_USD", 500),
			MaxAPIErrorsPerMin:   getEnvAsInt("GUARD_MAX_API_ERRORS_PER_MIN", 10),
			StaleTicker:          getEnvAsDuration("GUARD_STALE_TICKER", 30*time.Second),
			StreamStaleTicker:    getEnvAsDuration("GUARD_STREAM_STALE_TICKER", 90*time.Second),
			StrictPersist:        getEnvAsBool("GUARD_STRICT_PERSIST", false),
		},
		Sentinel: SentinelConfig{
			BtcDropPct:  getEnvAsFloat("SENTINEL_BTC_DROP_PCT", 5.0),
			GasSpikeWei: getEnvAsUint64("SENTINEL_GAS_SPIKE_WEI", 150_000_000_000),
			Venues:      splitNonEmpty(getEnv("SENTINEL_VENUES", "main")),
			Cooldown:    getEnvAsDuration("SENTINEL_COOLDOWN", 15*time.Minute),
			Interval:    getEnvAsDuration("SENTINEL_INTERVAL", 30*time.Second),
			Retention:   getEnvAsDuration("SENTINEL_RETENTION", 90*24*time.Hour),
		},
		Approval: ApprovalConfig{
			ThresholdUsd: getEnvAsFloat("APPROVAL_THRESHOLD_USD", 10000),
		},
		Worker: WorkerConfig{
			PollInterval:      getEnvAsDuration("WORKER_POLL_INTERVAL", 2*time.Second),
			HeartbeatInterval: getEnvAsDuration("WORKER_HEARTBEAT_INTERVAL", 15*time.Second),
		},
		Venue: VenueConfig{
			BaseURL:           getEnv("VENUE_BASE_URL", "http://localhost:9010"),
			RequestsPerSecond: getEnvAsFloat("VENUE_RPS", 5),
		},
		Notify: NotifyConfig{
			QueueSize:        getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
			SendTimeout:      getEnvAsDuration("NOTIFY_SEND_TIMEOUT", 10*time.Second),
			OpsWebhookURL:    getEnv("NOTIFY_OPS_WEBHOOK_URL", ""),
			ClientWebhookURL: getEnv("NOTIFY_CLIENT_WEBHOOK_URL", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Output: getEnv("LOG_OUTPUT", "console"),
			File:   getEnv("LOG_FILE", "logs/tradeguard.log"),
		},
	}

	// Валидация критичных параметров безопасности
	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	// Валидация числовых диапазонов
	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// ENCRYPTION_KEY обязателен для расшифровки API ключей клиентов
	if c.Security.EncryptionKey == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required for decrypting client API keys")
	}

	if len(c.Security.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	// Риск-лимиты должны быть положительными, нулевой лимит остановил
	// бы торговлю всех клиентов сразу
	if c.Guard.MaxGlobalDrawdownUsd <= 0 {
		return fmt.Errorf("GUARD_MAX_GLOBAL_DRAWDOWN_USD must be positive, got %v", c.Guard.MaxGlobalDrawdownUsd)
	}

	if c.Guard.MaxRunLossUsd <= 0 {
		return fmt.Errorf("GUARD_MAX_RUN_LOSS_USD must be positive, got %v", c.Guard.MaxRunLossUsd)
	}

	if c.Guard.MaxAPIErrorsPerMin < 1 {
		return fmt.Errorf("GUARD_MAX_API_ERRORS_PER_MIN must be at least 1, got %d", c.Guard.MaxAPIErrorsPerMin)
	}

	if c.Guard.StaleTicker <= 0 {
		return fmt.Errorf("GUARD_STALE_TICKER must be positive, got %v", c.Guard.StaleTicker)
	}

	if c.Guard.StreamStaleTicker <= 0 {
		return fmt.Errorf("GUARD_STREAM_STALE_TICKER must be positive, got %v", c.Guard.StreamStaleTicker)
	}

	if c.Sentinel.BtcDropPct <= 0 || c.Sentinel.BtcDropPct > 100 {
		return fmt.Errorf("SENTINEL_BTC_DROP_PCT must be in (0, 100], got %v", c.Sentinel.BtcDropPct)
	}

	if c.Sentinel.Interval <= 0 {
		return fmt.Errorf("SENTINEL_INTERVAL must be positive, got %v", c.Sentinel.Interval)
	}

	if c.Sentinel.Cooldown <= 0 {
		return fmt.Errorf("SENTINEL_COOLDOWN must be positive, got %v", c.Sentinel.Cooldown)
	}

	if c.Sentinel.Retention <= 0 {
		return fmt.Errorf("SENTINEL_RETENTION must be positive, got %v", c.Sentinel.Retention)
	}

	if c.Approval.ThresholdUsd <= 0 {
		return fmt.Errorf("APPROVAL_THRESHOLD_USD must be positive, got %v", c.Approval.ThresholdUsd)
	}

	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("WORKER_POLL_INTERVAL must be positive, got %v", c.Worker.PollInterval)
	}

	if c.Worker.HeartbeatInterval <= 0 {
		return fmt.Errorf("WORKER_HEARTBEAT_INTERVAL must be positive, got %v", c.Worker.HeartbeatInterval)
	}

	if c.Venue.RequestsPerSecond <= 0 {
		return fmt.Errorf("VENUE_RPS must be positive, got %v", c.Venue.RequestsPerSecond)
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// parseOperatorTokens разбирает "name:bcrypt;name2:bcrypt"
//
// bcrypt хеши содержат "$", но не ":" и не ";", разбор однозначен.
func parseOperatorTokens(raw string) map[string]string {
	tokens := make(map[string]string)
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		tokens[parts[0]] = parts[1]
	}
	return tokens
}

func splitNonEmpty(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsUint64(key string, defaultValue uint64) uint64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
