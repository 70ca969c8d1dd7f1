package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_ENV", "missing")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, 54*time.Second, cfg.PingPeriod)
	assert.Equal(t, 60*time.Second, cfg.PongWait)
	assert.Equal(t, 10, cfg.Rate.Burst)
	assert.False(t, cfg.Debug())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	yaml := []byte("mode: debug\nport: 9000\nsend_buffer: 8\nlog:\n  level: debug\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), yaml, 0o644))
	chdir(t, dir)
	t.Setenv("CONFIG_ENV", "test")
	t.Setenv("HUDDLE_PORT", "9100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, 8, cfg.SendBuffer)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Debug())
}

func TestValidate(t *testing.T) {
	cfg := Config{Port: 80, PingPeriod: time.Minute, PongWait: time.Second, SendBuffer: 1}
	assert.Error(t, cfg.Validate())

	cfg.PingPeriod = time.Millisecond
	assert.NoError(t, cfg.Validate())

	cfg.Port = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadClientPrecedence(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("HUDDLE_NAME", "from-env")
	t.Setenv("HUDDLE_CODEC", "msgpack")

	fs := pflag.NewFlagSet("join", pflag.ContinueOnError)
	fs.String("room", "", "")
	fs.String("name", "", "")
	fs.String("codec", "json", "")
	require.NoError(t, fs.Parse([]string{"--room", "r1", "--codec", "json"}))

	cfg, err := LoadClient(fs)
	require.NoError(t, err)
	assert.Equal(t, "r1", cfg.Room)
	assert.Equal(t, "from-env", cfg.Name)
	assert.Equal(t, "json", cfg.Codec)
	assert.Equal(t, "ws://localhost:8080/api/ws/signal", cfg.Server)
}

func TestLoadClientRequiresRoom(t *testing.T) {
	chdir(t, t.TempDir())
	fs := pflag.NewFlagSet("join", pflag.ContinueOnError)
	fs.String("room", "", "")
	require.NoError(t, fs.Parse(nil))

	_, err := LoadClient(fs)
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
