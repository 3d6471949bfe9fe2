package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/workload-runner/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `{
		"UserService": {"ip": "127.0.0.1", "port": 14001},
		"ProductService": {"ip": "127.0.0.1", "port": 15000},
		"OrderService": {"ip": "10.0.0.5", "port": 14000},
		"InterServiceCommunication": {"ip": "127.0.0.1", "port": 14002},
		"Lifecycle": {"script": "scripts/control.sh", "timeout_seconds": 5, "restart_notify": "127.0.0.1:14010", "reset_dir": "/abs/reset"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	eps := cfg.Endpoints()
	assert.Equal(t, model.Endpoint{IP: "10.0.0.5", Port: 14000}, eps.Services[model.Order])
	assert.Equal(t, model.Endpoint{IP: "127.0.0.1", Port: 14001}, eps.Services[model.User])
	require.NotNil(t, eps.InterService)
	assert.Equal(t, 14002, eps.InterService.Port)

	assert.Equal(t, filepath.Join(filepath.Dir(path), "scripts/control.sh"), cfg.Lifecycle.Script)
	assert.Equal(t, "/abs/reset", cfg.Lifecycle.ResetDir)
	assert.Equal(t, 5*time.Second, cfg.Lifecycle.Timeout())
	assert.Equal(t, "127.0.0.1:14010", cfg.Lifecycle.RestartNotify)
	assert.Equal(t, DefaultChannel, cfg.Events.Channel)
}

func TestLoadRequiresInterService(t *testing.T) {
	path := writeConfig(t, `{
		"UserService": {"ip": "127.0.0.1", "port": 1},
		"ProductService": {"ip": "127.0.0.1", "port": 2},
		"OrderService": {"ip": "127.0.0.1", "port": 3}
	}`)

	_, err := Load(path)
	var cerr *Error
	require.True(t, errors.As(err, &cerr), "expected config error, got %v", err)
	assert.Contains(t, err.Error(), model.InterServiceName)
}

func TestLoadDefaultsScriptTimeout(t *testing.T) {
	path := writeConfig(t, `{
		"UserService": {"ip": "127.0.0.1", "port": 1},
		"ProductService": {"ip": "127.0.0.1", "port": 2},
		"OrderService": {"ip": "127.0.0.1", "port": 3},
		"InterServiceCommunication": {"ip": "127.0.0.1", "port": 4}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Lifecycle.Timeout())
}

func TestLoadRejectsIncompleteConfig(t *testing.T) {
	tests := map[string]string{
		"missing service": `{"UserService": {"ip": "a", "port": 1}, "ProductService": {"ip": "a", "port": 2}}`,
		"bad port":        `{"UserService": {"ip": "a", "port": 0}, "ProductService": {"ip": "a", "port": 2}, "OrderService": {"ip": "a", "port": 3}}`,
		"missing ip":      `{"UserService": {"port": 1}, "ProductService": {"ip": "a", "port": 2}, "OrderService": {"ip": "a", "port": 3}}`,
		"bad iscs port":   `{"UserService": {"ip": "a", "port": 1}, "ProductService": {"ip": "a", "port": 2}, "OrderService": {"ip": "a", "port": 3}, "InterServiceCommunication": {"ip": "a", "port": 70000}}`,
		"not json":        `{"UserService":`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			var cerr *Error
			assert.True(t, errors.As(err, &cerr), "expected config error, got %v", err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), FileName))
	var cerr *Error
	assert.True(t, errors.As(err, &cerr))
}

func TestBaseDirFromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(HomeEnv, dir)

	got, err := BaseDir()
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestResolveWorkload(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "w.txt"), []byte("restart\n"), 0o644))

	path, err := ResolveWorkload(base, "w.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "w.txt"), path)

	_, err = ResolveWorkload(base, "missing.txt")
	var merr *MissingFileError
	require.True(t, errors.As(err, &merr))
	assert.True(t, errors.Is(err, fs.ErrNotExist))

	_, err = ResolveWorkload(base, ".")
	assert.True(t, errors.As(err, &merr))
}
