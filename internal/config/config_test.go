package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"printmatch/internal/config"

	"github.com/stretchr/testify/require"
)

// noEnv - путь к несуществующему .env, чтобы тест не зависел от рабочего каталога
func noEnv(t *testing.T) string {
	t.Helper()
	return "--env-file=" + filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_CONN", "postgres://localhost/printmatch")
	t.Setenv("BOT_TOKEN", "123:abc")

	cfg, err := config.Load([]string{noEnv(t)})
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:8080", cfg.ServerAddress)
	require.Equal(t, 10*time.Second, cfg.SendTimeout)
	require.Equal(t, 5*time.Second, cfg.QueryTimeout)
	require.Equal(t, 8, cfg.FanoutParallelism)
	require.Equal(t, slog.LevelInfo, cfg.LogLevel)
	require.Empty(t, cfg.AdminIDs)
	require.Empty(t, cfg.SessionDir)
	require.False(t, cfg.HTTPOnly)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POSTGRES_CONN", "postgres://localhost/printmatch")
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("SERVER_ADDRESS", "127.0.0.1:9000")
	t.Setenv("ADMIN_IDS", "42, 7")
	t.Setenv("SEND_TIMEOUT", "3s")
	t.Setenv("FANOUT_PARALLELISM", "2")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SESSION_DIR", "/var/lib/printmatch")

	cfg, err := config.Load([]string{noEnv(t)})
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9000", cfg.ServerAddress)
	require.Equal(t, []int64{42, 7}, cfg.AdminIDs)
	require.Equal(t, 3*time.Second, cfg.SendTimeout)
	require.Equal(t, 2, cfg.FanoutParallelism)
	require.Equal(t, slog.LevelDebug, cfg.LogLevel)
	require.Equal(t, "/var/lib/printmatch", cfg.SessionDir)

	cfg, err = config.Load([]string{noEnv(t), "--addr", ":7070"})
	require.NoError(t, err)
	require.Equal(t, ":7070", cfg.ServerAddress)
}

func TestLoadRequiredKeys(t *testing.T) {
	t.Setenv("POSTGRES_CONN", "")
	t.Setenv("BOT_TOKEN", "")
	_, err := config.Load([]string{noEnv(t)})
	require.ErrorContains(t, err, "POSTGRES_CONN")

	t.Setenv("POSTGRES_CONN", "postgres://localhost/printmatch")
	_, err = config.Load([]string{noEnv(t)})
	require.ErrorContains(t, err, "BOT_TOKEN")

	cfg, err := config.Load([]string{noEnv(t), "--http-only"})
	require.NoError(t, err)
	require.True(t, cfg.HTTPOnly)
}

func TestLoadDotEnv(t *testing.T) {
	// godotenv не перезаписывает уже заданные переменные, даже пустые
	for _, key := range []string{"POSTGRES_CONN", "BOT_TOKEN"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("POSTGRES_CONN=postgres://db/printmatch\nBOT_TOKEN=1:x\n"), 0o600))

	cfg, err := config.Load([]string{"--env-file", path})
	require.NoError(t, err)
	require.Equal(t, "postgres://db/printmatch", cfg.PostgresConn)
	require.Equal(t, "1:x", cfg.BotToken)
}

func TestParseAdminIDs(t *testing.T) {
	tests := []struct {
		raw     string
		want    []int64
		wantErr bool
	}{
		{raw: "", want: []int64{}},
		{raw: "1", want: []int64{1}},
		{raw: " 1 ,2,, 3 ", want: []int64{1, 2, 3}},
		{raw: "1,abc", wantErr: true},
		{raw: "-4", wantErr: true},
		{raw: "0", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := config.ParseAdminIDs(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestLoadRejectsBadAdminIDs(t *testing.T) {
	t.Setenv("POSTGRES_CONN", "postgres://localhost/printmatch")
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_IDS", "12,boss")

	_, err := config.Load([]string{noEnv(t)})
	require.ErrorContains(t, err, "boss")
}
