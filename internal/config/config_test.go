package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("EVENTPLACE_TEST_SECRET", "whsec_test")

	yamlContent := `
app:
  name: "eventplace"
  environment: "test"
database:
  path: "test.db"
saga:
  step_timeout: 3s
stripe:
  webhook_secret: "${EVENTPLACE_TEST_SECRET}"
api:
  enabled: true
  auth:
    api_keys:
      - key: "k1"
        extra: "e1"
        name: "ops"
        permissions: ["write:confirmations"]
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "whsec_test", cfg.Stripe.WebhookSecret)
	assert.Equal(t, 3*time.Second, cfg.Saga.StepTimeout)
	assert.True(t, cfg.API.HTTP.Enabled)
	require.Len(t, cfg.API.Auth.APIKeys, 1)
	assert.Equal(t, []string{"write:confirmations"}, cfg.API.Auth.APIKeys[0].Permissions)
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{Database: DatabaseConfig{Path: "x.db"}}
	cfg.applyDefaults()

	assert.Equal(t, "ABE", cfg.Saga.EngineCode)
	assert.InDelta(t, 0.10, cfg.Saga.Commission(), 1e-9)
	assert.Equal(t, 72, cfg.Saga.EscrowHoldHours)
	assert.Equal(t, "USD", cfg.Saga.Currency)
	assert.Equal(t, 10*time.Second, cfg.Saga.StepTimeout)
	assert.Equal(t, 20*time.Second, cfg.Reasoning.Timeout)
	assert.Equal(t, 50*time.Second, cfg.Saga.ChecklistTimeout)
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
	assert.Equal(t, 8080, cfg.API.HTTP.Port)
	assert.Equal(t, 8081, cfg.API.GRPC.Port)
	assert.Equal(t, 5, cfg.Recovery.MaxRetries)
	assert.NoError(t, cfg.Validate())
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name:    "valid config",
			cfg:     Config{Database: DatabaseConfig{Path: "path"}, Saga: SagaConfig{CommissionRate: rate(0.1)}},
			wantErr: false,
		},
		{
			name:    "missing database path",
			cfg:     Config{},
			wantErr: true,
		},
		{
			name:    "commission rate out of range",
			cfg:     Config{Database: DatabaseConfig{Path: "path"}, Saga: SagaConfig{CommissionRate: rate(1.5)}},
			wantErr: true,
		},
		{
			name:    "zero commission",
			cfg:     Config{Database: DatabaseConfig{Path: "path"}, Saga: SagaConfig{CommissionRate: rate(0)}},
			wantErr: false,
		},
		{
			name: "checklist timeout below reasoning calls",
			cfg: Config{
				Database:  DatabaseConfig{Path: "path"},
				Saga:      SagaConfig{ChecklistTimeout: 30 * time.Second},
				Reasoning: ReasoningConfig{Timeout: 20 * time.Second},
			},
			wantErr: true,
		},
		{
			name: "checklist timeout covers reasoning calls",
			cfg: Config{
				Database:  DatabaseConfig{Path: "path"},
				Saga:      SagaConfig{ChecklistTimeout: 40 * time.Second},
				Reasoning: ReasoningConfig{Timeout: 20 * time.Second},
			},
			wantErr: false,
		},
		{
			name:    "tracing without endpoint",
			cfg:     Config{Database: DatabaseConfig{Path: "path"}, Tracing: TracingConfig{Enabled: true}},
			wantErr: true,
		},
		{
			name: "duplicate api key",
			cfg: Config{
				Database: DatabaseConfig{Path: "path"},
				API: APIConfig{Auth: APIAuthConfig{APIKeys: []APIClientKey{
					{Key: "a", Name: "one"},
					{Key: "a", Name: "two"},
				}}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func rate(v float64) *float64 { return &v }

func TestLoadConfig_ExplicitZeroCommission(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := `
database:
  path: "test.db"
saga:
  commission_rate: 0
reasoning:
  timeout: 5s
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)
	require.NotNil(t, cfg.Saga.CommissionRate)
	assert.Equal(t, 0.0, cfg.Saga.Commission())
	assert.Equal(t, 20*time.Second, cfg.Saga.ChecklistTimeout)
}
