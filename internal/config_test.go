package internal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "local", cfg.StorageProvider)
	assert.Equal(t, "simulated", cfg.MapServerMode)
	assert.Equal(t, 30*time.Second, cfg.MapRefreshInterval)
	assert.Equal(t, 5*time.Second, cfg.DashboardRefreshInterval)
	assert.Empty(t, cfg.DatabaseUrl)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.True(t, cfg.SeedAccounts)
	assert.Zero(t, cfg.ExportRetention)
	assert.Equal(t, "@daily", cfg.PruneSchedule)
	assert.True(t, cfg.IsDevelopment())
}

func TestNewConfig_FromEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENV", "production")
	t.Setenv("PORT", "9090")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,,")
	t.Setenv("MAP_REFRESH_INTERVAL", "1m")
	t.Setenv("MAP_SERVER_RPS", "2.5")
	t.Setenv("EXPORT_SCHEDULE", "0 6 * * *")
	t.Setenv("EXPORT_RETENTION", "720h")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, time.Minute, cfg.MapRefreshInterval)
	assert.Equal(t, 2.5, cfg.MapServerRPS)
	assert.Equal(t, "0 6 * * *", cfg.ExportSchedule)
	assert.Equal(t, 30*24*time.Hour, cfg.ExportRetention)
	assert.False(t, cfg.IsDevelopment())
}

func TestNewConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "unknown storage provider",
			env:  map[string]string{"STORAGE_PROVIDER": "r2"},
			want: "STORAGE_PROVIDER",
		},
		{
			name: "s3 without bucket",
			env:  map[string]string{"STORAGE_PROVIDER": "s3", "S3_ACCESS_KEY_ID": "a", "S3_SECRET_ACCESS_KEY": "b"},
			want: "S3_BUCKET",
		},
		{
			name: "unknown map server mode",
			env:  map[string]string{"MAP_SERVER_MODE": "wms"},
			want: "MAP_SERVER_MODE",
		},
		{
			name: "bad cron schedule",
			env:  map[string]string{"EXPORT_SCHEDULE": "daily at six"},
			want: "EXPORT_SCHEDULE",
		},
		{
			name: "bad prune schedule",
			env:  map[string]string{"PRUNE_SCHEDULE": "nightly"},
			want: "PRUNE_SCHEDULE",
		},
		{
			name: "negative retention",
			env:  map[string]string{"EXPORT_RETENTION": "-24h"},
			want: "EXPORT_RETENTION",
		},
		{
			name: "influx without token",
			env:  map[string]string{"INFLUX_URL": "http://influx:8086"},
			want: "INFLUX_TOKEN",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := NewConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
