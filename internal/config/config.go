// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Драйверы хранилища
const (
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

// Провайдеры генератора контента
const (
	AIProviderOpenAI       = "openai"
	AIProviderPollinations = "pollinations"
	AIProviderOff          = "off"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Telegram ---
	TelegramBotToken string  `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	AdminIDsRaw      string  `envconfig:"ADMIN_IDS"`
	AdminIDs         []int64 `envconfig:"-"` // заполняется в Load

	// --- Storage ---
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"postgres"`
	SQLitePath    string `envconfig:"SQLITE_PATH" default:"reputation.db"`

	// --- Database ---
	// В Docker дефолт "postgres" (имя сервиса в docker-compose), локально DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" default:"reputation_bot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	// --- Bot runtime ---
	// Сколько апдейтов обрабатываем параллельно.
	BotMaxInflight          int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Admin ---
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH"`

	// --- Content generator ---
	AIProvider          string        `envconfig:"AI_PROVIDER" default:"off"`
	AIAPIKey            string        `envconfig:"AI_API_KEY"`
	AIBaseURL           string        `envconfig:"AI_BASE_URL"`
	AIModel             string        `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	AITimeout           time.Duration `envconfig:"AI_TIMEOUT" default:"25s"`
	AIMaxAttempts       int           `envconfig:"AI_MAX_ATTEMPTS" default:"3"`
	AIRequestsPerMinute int           `envconfig:"AI_REQUESTS_PER_MINUTE" default:"20"`

	// --- Effects ---
	EffectSweepInterval time.Duration `envconfig:"EFFECT_SWEEP_INTERVAL" default:"1m"`

	// --- Directives ---
	TrackerSweepSpec string `envconfig:"TRACKER_SWEEP_SPEC" default:"@every 5m"`

	// --- Events ---
	EventSchedule       string        `envconfig:"EVENT_SCHEDULE" default:"0 */3 * * *"`
	EventChance         float64       `envconfig:"EVENT_CHANCE" default:"0.35"`
	EventDuration       time.Duration `envconfig:"EVENT_DURATION" default:"30m"`
	EventDynamicEnabled bool          `envconfig:"EVENT_DYNAMIC_ENABLED" default:"true"`
	QuotaThreshold      int           `envconfig:"QUOTA_THRESHOLD" default:"50"`

	// --- Thanks ---
	ThanksPoints   int64         `envconfig:"THANKS_POINTS" default:"5"`
	ThanksCooldown time.Duration `envconfig:"THANKS_COOLDOWN" default:"24h"`

	// --- Confessions ---
	ConfessionCooldown time.Duration `envconfig:"CONFESSION_COOLDOWN" default:"24h"`
	ConfessionReward   int64         `envconfig:"CONFESSION_REWARD" default:"10"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"10"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Feature Flags ---
	FeatureEventsEnabled      bool `envconfig:"FEATURE_EVENTS_ENABLED" default:"true"`
	FeatureDirectivesEnabled  bool `envconfig:"FEATURE_DIRECTIVES_ENABLED" default:"true"`
	FeatureThanksEnabled      bool `envconfig:"FEATURE_THANKS_ENABLED" default:"true"`
	FeatureConfessionsEnabled bool `envconfig:"FEATURE_CONFESSIONS_ENABLED" default:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// Validate проверяет согласованность настроек.
func (c *Config) Validate() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN не задан")
	}
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	switch c.StorageDriver {
	case StoragePostgres:
		if c.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD обязателен для STORAGE_DRIVER=postgres")
		}
		if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
			return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
		}
	case StorageSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH не задан")
		}
	default:
		return fmt.Errorf("неизвестный STORAGE_DRIVER %q", c.StorageDriver)
	}
	switch c.AIProvider {
	case AIProviderOff, AIProviderPollinations:
	case AIProviderOpenAI:
		if c.AIAPIKey == "" {
			return fmt.Errorf("AI_API_KEY обязателен для AI_PROVIDER=openai")
		}
	default:
		return fmt.Errorf("неизвестный AI_PROVIDER %q", c.AIProvider)
	}
	if c.AIMaxAttempts <= 0 {
		return fmt.Errorf("AI_MAX_ATTEMPTS должен быть > 0")
	}
	if c.AIRequestsPerMinute <= 0 {
		return fmt.Errorf("AI_REQUESTS_PER_MINUTE должен быть > 0")
	}
	if c.EffectSweepInterval <= 0 {
		return fmt.Errorf("EFFECT_SWEEP_INTERVAL должен быть > 0")
	}
	if c.EventChance < 0 || c.EventChance > 1 {
		return fmt.Errorf("EVENT_CHANCE должен быть в [0, 1]")
	}
	if c.EventDuration <= 0 {
		return fmt.Errorf("EVENT_DURATION должен быть > 0")
	}
	if c.QuotaThreshold <= 0 {
		return fmt.Errorf("QUOTA_THRESHOLD должен быть > 0")
	}
	if c.ThanksCooldown <= 0 || c.ConfessionCooldown <= 0 {
		return fmt.Errorf("кулдауны должны быть > 0")
	}
	return nil
}

// IsAdminID проверяет, входит ли пользователь в ADMIN_IDS.
func (c *Config) IsAdminID(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := parseInt64CSV(cfg.AdminIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS parse: %w", err)
	}
	cfg.AdminIDs = ids

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
