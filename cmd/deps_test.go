package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metal_price_tracker/internal/config"
	"metal_price_tracker/internal/provider"
)

func testConfig(t *testing.T, providers config.ProvidersConfig) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Server:    config.ServerConfig{Port: "0"},
		Database:  config.DatabaseConfig{DSN: "sqlite:" + filepath.Join(dir, "pricing.db"), LogLevel: "silent"},
		Log:       config.LogConfig{Mode: "prod"},
		Providers: providers,
		Snapshot:  config.SnapshotConfig{Driver: "local", Dir: filepath.Join(dir, "snapshots")},
		Schedule:  config.ScheduleConfig{Enabled: false},
	}
}

func TestInitDependencies_ProviderCredentials(t *testing.T) {
	tests := []struct {
		name      string
		providers config.ProvidersConfig
		wantErr   bool
	}{
		{
			name:      "Teraswitch 启用但无凭证",
			providers: config.ProvidersConfig{Teraswitch: config.TeraswitchConfig{Enabled: true, BaseURL: "http://127.0.0.1:1"}},
			wantErr:   true,
		},
		{
			name:      "OVH 缺少 consumer_key",
			providers: config.ProvidersConfig{OVH: config.OVHConfig{Enabled: true, BaseURL: "http://127.0.0.1:1", AppKey: "k", AppSecret: "s"}},
			wantErr:   true,
		},
		{
			name:      "未启用的供应商不校验",
			providers: config.ProvidersConfig{Teraswitch: config.TeraswitchConfig{Enabled: false}, Hetzner: config.HetznerConfig{Enabled: true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, err := initDependencies(context.Background(), testConfig(t, tt.providers))
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, deps)
				assert.True(t, errors.Is(err, provider.ErrMissingCredentials))
				return
			}
			require.NoError(t, err)
			defer deps.Close()
			assert.NotNil(t, deps.Tasks)
			assert.Equal(t, false, deps.Tasks.Status()["scheduled"])
		})
	}
}
