package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Saga       SagaConfig       `yaml:"saga"`
	Reasoning  ReasoningConfig  `yaml:"reasoning"`
	Stripe     StripeConfig     `yaml:"stripe"`
	AMQP       AMQPConfig       `yaml:"amqp"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Recovery   RecoveryConfig   `yaml:"recovery"`
	Backup     BackupConfig     `yaml:"backup"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool         `yaml:"enabled"`
	Port       int          `yaml:"port"`
	Reflection bool         `yaml:"reflection"`
	TLS        APITLSConfig `yaml:"tls"`
}

type APITLSConfig struct {
	Enabled           bool   `yaml:"enabled"`
	CertFile          string `yaml:"cert_file"`
	KeyFile           string `yaml:"key_file"`
	ClientCAFile      string `yaml:"client_ca_file"`
	RequireClientCert bool   `yaml:"require_client_cert"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// SagaConfig tunes the after-booking saga.
type SagaConfig struct {
	EngineCode      string        `yaml:"engine_code"`
	CommissionRate  *float64      `yaml:"commission_rate"`
	EscrowHoldHours int           `yaml:"escrow_hold_hours"`
	Currency        string        `yaml:"currency"`
	StepTimeout     time.Duration `yaml:"step_timeout"`
	// ChecklistTimeout bounds the checklist step, which makes ChecklistReasoningCalls sequential reasoning calls.
	ChecklistTimeout time.Duration `yaml:"checklist_timeout"`
	LockTTL          time.Duration `yaml:"lock_ttl"`
	DashboardURL     string        `yaml:"dashboard_url"`
}

// ChecklistReasoningCalls is how many reasoning calls the checklist step makes in sequence.
const ChecklistReasoningCalls = 2

const defaultCommissionRate = 0.10

// Commission returns the configured rate, or the default when the key is absent.
// An explicit 0 is kept.
func (s SagaConfig) Commission() float64 {
	if s.CommissionRate == nil {
		return defaultCommissionRate
	}
	return *s.CommissionRate
}

type ReasoningConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

type StripeConfig struct {
	WebhookSecret string `yaml:"webhook_secret"`
}

type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type TelegramConfig struct {
	BotToken     string  `yaml:"bot_token"`
	AdminChatIDs []int64 `yaml:"admin_chat_ids"`
	Debug        bool    `yaml:"debug"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

type BackupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	RetentionDays int           `yaml:"retention_days"`
	StoragePath   string        `yaml:"storage_path"`
}

type RecoveryConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Interval     time.Duration `yaml:"interval"`
	BatchSize    int           `yaml:"batch_size"`
	MaxRetries   int           `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

func Load(configPath string) (*Config, error) {
	// .env опционален: в контейнере переменные приходят из окружения
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if rate := c.Saga.Commission(); rate < 0 || rate >= 1 {
		return fmt.Errorf("saga.commission_rate must be in [0, 1), got %v", rate)
	}

	if need := ChecklistReasoningCalls * c.Reasoning.Timeout; c.Saga.ChecklistTimeout > 0 && c.Saga.ChecklistTimeout < need {
		return fmt.Errorf("saga.checklist_timeout %s cannot cover %d reasoning calls of %s", c.Saga.ChecklistTimeout, ChecklistReasoningCalls, c.Reasoning.Timeout)
	}

	if c.Saga.EscrowHoldHours < 0 {
		return errors.New("saga.escrow_hold_hours must not be negative")
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return errors.New("tracing.endpoint is required when tracing is enabled")
	}

	seen := make(map[string]bool, len(c.API.Auth.APIKeys))
	for _, k := range c.API.Auth.APIKeys {
		if k.Key == "" {
			return fmt.Errorf("api key %q has empty key", k.Name)
		}
		if seen[k.Key] {
			return fmt.Errorf("duplicate api key for client %q", k.Name)
		}
		seen[k.Key] = true
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "eventplace"
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	// Saga defaults
	if c.Saga.EngineCode == "" {
		c.Saga.EngineCode = "ABE"
	}
	if c.Saga.CommissionRate == nil {
		rate := defaultCommissionRate
		c.Saga.CommissionRate = &rate
	}
	if c.Saga.EscrowHoldHours == 0 {
		c.Saga.EscrowHoldHours = 72
	}
	if c.Saga.Currency == "" {
		c.Saga.Currency = "USD"
	}
	if c.Saga.StepTimeout == 0 {
		c.Saga.StepTimeout = 10 * time.Second
	}
	if c.Saga.LockTTL == 0 {
		c.Saga.LockTTL = 2 * time.Minute
	}

	if c.Reasoning.Timeout == 0 {
		c.Reasoning.Timeout = 20 * time.Second
	}
	if c.Saga.ChecklistTimeout == 0 {
		c.Saga.ChecklistTimeout = ChecklistReasoningCalls*c.Reasoning.Timeout + c.Saga.StepTimeout
	}
	if c.AMQP.Exchange == "" {
		c.AMQP.Exchange = "eventplace.bookings"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = c.App.Name
	}
	if c.Tracing.SampleRatio == 0 {
		c.Tracing.SampleRatio = 1
	}

	if c.Recovery.Interval == 0 {
		c.Recovery.Interval = 5 * time.Minute
	}
	if c.Recovery.BatchSize == 0 {
		c.Recovery.BatchSize = 20
	}
	if c.Recovery.MaxRetries == 0 {
		c.Recovery.MaxRetries = 5
	}
	if c.Recovery.InitialDelay == 0 {
		c.Recovery.InitialDelay = 2 * time.Second
	}
	if c.Recovery.MaxDelay == 0 {
		c.Recovery.MaxDelay = time.Minute
	}

	if c.Backup.Interval == 0 {
		c.Backup.Interval = 24 * time.Hour
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "data/backups"
	}
}
