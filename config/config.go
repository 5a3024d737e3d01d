package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port           string        `yaml:"port"`
	LogLevel       string        `yaml:"log_level"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	DBPath         string        `yaml:"db_path"`
	RedisAddr      string        `yaml:"redis_addr"`
	CounterStore   string        `yaml:"counter_store"` // "badger", "redis" or "memory"
	DailyLimit     int           `yaml:"daily_limit"`
	SurfaceTTL     time.Duration `yaml:"surface_ttl"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`

	MaxPromptLength int  `yaml:"max_prompt_length"`
	RejectGibberish bool `yaml:"reject_gibberish"`

	Inference InferenceConfig `yaml:"inference"`
	Retry     RetryConfig     `yaml:"retry"`
	Charts    ChartConfig     `yaml:"charts"`
	Links     LinkConfig      `yaml:"links"`
	SQLServer SQLServerConfig `yaml:"sql_server"`
}

type InferenceConfig struct {
	InferenceURL string        `yaml:"inference_url"`
	ChartURL     string        `yaml:"chart_url"`
	HealthURL    string        `yaml:"health_url"`
	APIKey       string        `yaml:"api_key"`
	Timeout      time.Duration `yaml:"timeout"`
}

type RetryConfig struct {
	Retries    int           `yaml:"retries"`
	Delay      time.Duration `yaml:"delay"`
	Multiplier float64       `yaml:"multiplier"`
	MaxDelay   time.Duration `yaml:"max_delay"`
}

type ChartConfig struct {
	Scripts       []string `yaml:"scripts"`
	Styles        []string `yaml:"styles"`
	VerifyScripts bool     `yaml:"verify_scripts"`
	ContainerID   string   `yaml:"container_id"`
	CanvasID      string   `yaml:"canvas_id"`
	HelperClasses []string `yaml:"helper_classes"`
}

type LinkConfig struct {
	ContactSalesURL string `yaml:"contact_sales_url"`
	AddDataURL      string `yaml:"add_data_url"`
}

type SQLServerConfig struct {
	Server   string `yaml:"server"`
	Port     string `yaml:"port"`
	Database string `yaml:"database"`
	UserID   string `yaml:"user_id"`
	Password string `yaml:"password"`
	Encrypt  bool   `yaml:"encrypt"`
	Fill     bool   `yaml:"fill"`
	MaxRows  int    `yaml:"max_rows"`
}

// Enabled reports whether enough is configured to open a warehouse connection.
func (s SQLServerConfig) Enabled() bool {
	return s.Server != "" && s.Database != ""
}

func GetConfig() Config {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	return Config{
		Port:           getEnv("PORT", "9090"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", nil),
		DBPath:         getEnv("DB_PATH", "./data/badger"),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		CounterStore:   getEnv("COUNTER_STORE", "badger"),
		DailyLimit:     getEnvInt("DAILY_LIMIT", DefaultDailyLimit),
		SurfaceTTL:     getEnvDuration("SURFACE_TTL", 30*time.Minute),
		CacheTTL:       getEnvDuration("CACHE_TTL", 5*time.Minute),

		MaxPromptLength: getEnvInt("MAX_PROMPT_LENGTH", DefaultMaxPromptLength),
		RejectGibberish: getEnv("REJECT_GIBBERISH", "false") == "true",

		Inference: InferenceConfig{
			InferenceURL: getEnv("INFERENCE_URL", "http://localhost:8000/functions/v1/inference"),
			ChartURL:     getEnv("CHART_URL", "http://localhost:8000/functions/v1/generate-chart"),
			HealthURL:    getEnv("HEALTH_URL", "http://localhost:8000/functions/v1/health"),
			APIKey:       getEnv("INFERENCE_API_KEY", ""),
			Timeout:      getEnvDuration("INFERENCE_TIMEOUT", 15*time.Second),
		},
		Retry: RetryConfig{
			Retries:    getEnvInt("RETRY_COUNT", 3),
			Delay:      getEnvDuration("RETRY_DELAY", time.Second),
			Multiplier: getEnvFloat("RETRY_MULTIPLIER", 2),
			MaxDelay:   getEnvDuration("RETRY_MAX_DELAY", 8*time.Second),
		},
		Charts: ChartConfig{
			Scripts:       getEnvList("CHART_SCRIPTS", DefaultChartScripts),
			Styles:        getEnvList("CHART_STYLES", nil),
			VerifyScripts: getEnv("CHART_VERIFY_SCRIPTS", "false") == "true",
			ContainerID:   getEnv("CHART_CONTAINER_ID", DefaultContainerID),
			CanvasID:      getEnv("CHART_CANVAS_ID", DefaultCanvasID),
			HelperClasses: getEnvList("CHART_HELPER_CLASSES", DefaultHelperClasses),
		},
		Links: LinkConfig{
			ContactSalesURL: getEnv("CONTACT_SALES_URL", "/contact-sales"),
			AddDataURL:      getEnv("ADD_DATA_URL", "/data-sources"),
		},
		SQLServer: SQLServerConfig{
			Server:   getEnv("SQL_SERVER", ""),
			Port:     getEnv("SQL_PORT", "1433"),
			Database: getEnv("SQL_DATABASE", ""),
			UserID:   getEnv("SQL_USER", ""),
			Password: getEnv("SQL_PASSWORD", ""),
			Encrypt:  getEnv("SQL_ENCRYPT", "true") == "true",
			Fill:     getEnv("SQL_FILL", "false") == "true",
			MaxRows:  getEnvInt("SQL_MAX_ROWS", 500),
		},
	}
}

// Load returns the environment configuration with the YAML file at path
// applied on top. An empty path skips the overlay.
func Load(path string) (Config, error) {
	cfg := GetConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "parse config %s", path)
		}
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings that have no sensible meaning.
func (c Config) Validate() error {
	switch {
	case c.Retry.Retries < 0:
		return errors.Errorf("retry count must not be negative, got %d", c.Retry.Retries)
	case c.Retry.Delay < 0 || c.Retry.MaxDelay < 0:
		return errors.New("retry delays must not be negative")
	case c.Retry.Multiplier < 0:
		return errors.Errorf("retry multiplier must not be negative, got %g", c.Retry.Multiplier)
	case c.DailyLimit < 0:
		return errors.Errorf("daily limit must not be negative, got %d", c.DailyLimit)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if f, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return f
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
