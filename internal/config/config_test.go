package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newTestViper(t))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.ListenAddr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, ThreadScopeGlobal, cfg.Threads.Scope)
	assert.Equal(t, 60*time.Second, cfg.Generation.Timeout)
	assert.Equal(t, 1000, cfg.App.MaxMessageLength)
	assert.Equal(t, []string{"futebol", "futsal", "basquete", "volei"}, cfg.App.Sports)
	assert.Empty(t, cfg.HTTP.ListenAddr)
	assert.Zero(t, cfg.Maintenance.RetentionDays)
}

func TestNewViper_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sportchat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
threads:
  scope: user
app:
  sports: [tenis]
`), 0o600))

	t.Setenv("SPORTCHAT_JWT_SECRET", "from-env")
	t.Setenv("SPORTCHAT_GENERATION_TIMEOUT", "5s")

	v, err := NewViper(path)
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, ThreadScopeUser, cfg.Threads.Scope)
	assert.Equal(t, []string{"tenis"}, cfg.App.Sports)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, 5*time.Second, cfg.Generation.Timeout)
}

func TestNewViper_MissingExplicitFile(t *testing.T) {
	_, err := NewViper(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(v *viper.Viper){
		"unknown driver":       func(v *viper.Viper) { v.Set("database.driver", "mysql") },
		"postgres without dsn": func(v *viper.Viper) { v.Set("database.driver", "postgres") },
		"sqlite without path":  func(v *viper.Viper) { v.Set("database.path", "") },
		"unknown scope":        func(v *viper.Viper) { v.Set("threads.scope", "room") },
		"no sports":            func(v *viper.Viper) { v.Set("app.sports", []string{}) },
		"empty secret":         func(v *viper.Viper) { v.Set("jwt.secret", "") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			v := newTestViper(t)
			mutate(v)
			_, err := Load(v)
			assert.Error(t, err)
		})
	}
}

func TestServerConfig_IsAdmin(t *testing.T) {
	cfg := ServerConfig{AdminUsers: []string{" Root ", "ops"}}
	assert.True(t, cfg.IsAdmin("root"))
	assert.True(t, cfg.IsAdmin("ops"))
	assert.False(t, cfg.IsAdmin("alice"))
	assert.False(t, ServerConfig{}.IsAdmin("root"))
}

func TestLoadClient(t *testing.T) {
	v := newTestViper(t)
	v.Set("client.server_addr", "example:1234")
	cfg := LoadClient(v)
	assert.Equal(t, "example:1234", cfg.ServerAddr)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.NotEmpty(t, cfg.TokenFile)
}
