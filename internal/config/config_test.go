package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_RejectsBadEnvironment(t *testing.T) {
	cfg := &Config{
		App:    AppConfig{Environment: "prod"},
		Logger: LoggerConfig{Level: "info"},
		Data:   DataConfig{BasePath: "/tmp/shelfsync"},
		Import: ImportConfig{BatchSize: 100, PreviewSampleSize: 20},
	}
	err := cfg.Validate()
	assert.ErrorContains(t, err, "invalid environment")
}

func TestValidate_RejectsBadLogLevel(t *testing.T) {
	cfg := &Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "verbose"},
		Data:   DataConfig{BasePath: "/tmp/shelfsync"},
		Import: ImportConfig{BatchSize: 100, PreviewSampleSize: 20},
	}
	err := cfg.Validate()
	assert.ErrorContains(t, err, "invalid log level")
}

func TestValidate_RejectsNonPositiveBatchSize(t *testing.T) {
	cfg := &Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		Data:   DataConfig{BasePath: "/tmp/shelfsync"},
		Import: ImportConfig{BatchSize: 0, PreviewSampleSize: 20},
	}
	err := cfg.Validate()
	assert.ErrorContains(t, err, "batch size")
}

func TestValidate_OK(t *testing.T) {
	cfg := &Config{
		App:    AppConfig{Environment: "production"},
		Logger: LoggerConfig{Level: "warn"},
		Data:   DataConfig{BasePath: "/var/lib/shelfsync"},
		Server: ServerConfig{Port: "8080"},
		Import: ImportConfig{
			BatchSize:         100,
			PreviewSampleSize: 20,
			QueueRetention:    24 * time.Hour,
		},
	}
	assert.NoError(t, cfg.Validate())
}

func TestExpandPath_Tilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	expanded, err := expandPath("~/shelfsync-data", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "shelfsync-data"), expanded)
}

func TestExpandPath_EmptyUsesDefault(t *testing.T) {
	expanded, err := expandPath("", "/default/path")
	require.NoError(t, err)
	assert.Equal(t, "/default/path", expanded)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	content := "# comment\nSHELFSYNC_TEST_KEY=hello\nSHELFSYNC_TEST_QUOTED=\"world\"\n"
	require.NoError(t, os.WriteFile(envPath, []byte(content), 0o600))

	t.Setenv("SHELFSYNC_TEST_KEY", "")
	os.Unsetenv("SHELFSYNC_TEST_KEY")
	os.Unsetenv("SHELFSYNC_TEST_QUOTED")

	require.NoError(t, loadEnvFile(envPath))
	assert.Equal(t, "hello", os.Getenv("SHELFSYNC_TEST_KEY"))
	assert.Equal(t, "world", os.Getenv("SHELFSYNC_TEST_QUOTED"))

	os.Unsetenv("SHELFSYNC_TEST_KEY")
	os.Unsetenv("SHELFSYNC_TEST_QUOTED")
}

func TestGetBoolConfigValue(t *testing.T) {
	assert.True(t, getBoolConfigValue("yes", "UNSET_KEY", false))
	assert.False(t, getBoolConfigValue("no", "UNSET_KEY", true))
	assert.True(t, getBoolConfigValue("", "UNSET_KEY", true))
}
