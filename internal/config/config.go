package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment override, e.g. SPORTCHAT_JWT_SECRET.
const EnvPrefix = "SPORTCHAT"

// Config is the full runtime configuration of the chat service.
type Config struct {
	Server      ServerConfig
	HTTP        HTTPConfig
	Database    DatabaseConfig
	JWT         JWTConfig
	Generation  GenerationConfig
	Threads     ThreadsConfig
	App         AppConfig
	Maintenance MaintenanceConfig
	Log         LogConfig
}

// ServerConfig holds settings for the TCP server runtime.
type ServerConfig struct {
	ListenAddr    string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	MaxFrameBytes int
	AdminUsers    []string
}

// HTTPConfig holds settings for the HTTP API. An empty address disables it.
type HTTPConfig struct {
	ListenAddr string
}

// ClientConfig holds settings for the command line client.
type ClientConfig struct {
	ServerAddr  string
	DialTimeout time.Duration
	TokenFile   string
}

// DatabaseConfig captures storage configuration.
type DatabaseConfig struct {
	Driver string // sqlite or postgres
	Path   string // sqlite file
	DSN    string // postgres connection string
}

// JWTConfig defines token issuance parameters.
type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

// GenerationConfig selects and parameterizes the text generation backend.
type GenerationConfig struct {
	Provider string // gemini or openai
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// Thread scopes for new thread id allocation.
const (
	ThreadScopeGlobal = "global"
	ThreadScopeUser   = "user"
)

// ThreadsConfig controls thread id allocation.
type ThreadsConfig struct {
	Scope string
}

// AppConfig is the client-visible application settings.
type AppConfig struct {
	Sports                  []string
	MaxMessageLength        int
	MaxConversationsPerUser int
	SupportedLanguages      []string
	Version                 string
}

// MaintenanceConfig drives the retention sweeper. RetentionDays <= 0 disables it.
type MaintenanceConfig struct {
	RetentionDays int
	Interval      time.Duration
}

// LogConfig configures the zerolog logger.
type LogConfig struct {
	Level      string
	Format     string
	WithCaller bool
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":9000")
	v.SetDefault("server.read_timeout", 5*time.Minute)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.max_frame_bytes", 1<<20)
	v.SetDefault("server.admin_users", []string{})

	v.SetDefault("http.listen_addr", "")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "sportchat.db")
	v.SetDefault("database.dsn", "")

	v.SetDefault("jwt.secret", "replace-me")
	v.SetDefault("jwt.issuer", "sportchat")
	v.SetDefault("jwt.expiration", 24*time.Hour)

	v.SetDefault("generation.provider", "gemini")
	v.SetDefault("generation.model", "gemini-1.5-flash")
	v.SetDefault("generation.api_key", "")
	v.SetDefault("generation.base_url", "")
	v.SetDefault("generation.timeout", 60*time.Second)

	v.SetDefault("threads.scope", ThreadScopeGlobal)

	v.SetDefault("app.sports", []string{"futebol", "futsal", "basquete", "volei"})
	v.SetDefault("app.max_message_length", 1000)
	v.SetDefault("app.max_conversations_per_user", 100)
	v.SetDefault("app.supported_languages", []string{"pt-BR"})
	v.SetDefault("app.version", "1.0.0")

	v.SetDefault("maintenance.retention_days", 0)
	v.SetDefault("maintenance.interval", 24*time.Hour)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.with_caller", false)

	v.SetDefault("client.server_addr", "localhost:9000")
	v.SetDefault("client.dial_timeout", 5*time.Second)
	v.SetDefault("client.token_file", defaultTokenFile())
}

// NewViper returns a viper instance with defaults, env binding and an optional config file.
// A .env file in the working directory is loaded first when present.
func NewViper(configFile string) (*viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("sportchat")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.sportchat")
		v.AddConfigPath("/etc/sportchat")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configFile != "" {
			return nil, errors.Wrap(err, "read config")
		}
	}
	return v, nil
}

// Load builds the service configuration from viper.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			ListenAddr:    v.GetString("server.listen_addr"),
			ReadTimeout:   v.GetDuration("server.read_timeout"),
			WriteTimeout:  v.GetDuration("server.write_timeout"),
			MaxFrameBytes: v.GetInt("server.max_frame_bytes"),
			AdminUsers:    v.GetStringSlice("server.admin_users"),
		},
		HTTP: HTTPConfig{ListenAddr: v.GetString("http.listen_addr")},
		Database: DatabaseConfig{
			Driver: strings.ToLower(v.GetString("database.driver")),
			Path:   v.GetString("database.path"),
			DSN:    v.GetString("database.dsn"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Issuer:     v.GetString("jwt.issuer"),
			Expiration: v.GetDuration("jwt.expiration"),
		},
		Generation: GenerationConfig{
			Provider: strings.ToLower(v.GetString("generation.provider")),
			Model:    v.GetString("generation.model"),
			APIKey:   v.GetString("generation.api_key"),
			BaseURL:  v.GetString("generation.base_url"),
			Timeout:  v.GetDuration("generation.timeout"),
		},
		Threads: ThreadsConfig{Scope: strings.ToLower(v.GetString("threads.scope"))},
		App: AppConfig{
			Sports:                  v.GetStringSlice("app.sports"),
			MaxMessageLength:        v.GetInt("app.max_message_length"),
			MaxConversationsPerUser: v.GetInt("app.max_conversations_per_user"),
			SupportedLanguages:      v.GetStringSlice("app.supported_languages"),
			Version:                 v.GetString("app.version"),
		},
		Maintenance: MaintenanceConfig{
			RetentionDays: v.GetInt("maintenance.retention_days"),
			Interval:      v.GetDuration("maintenance.interval"),
		},
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			WithCaller: v.GetBool("log.with_caller"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadClient builds the client configuration from viper.
func LoadClient(v *viper.Viper) ClientConfig {
	return ClientConfig{
		ServerAddr:  v.GetString("client.server_addr"),
		DialTimeout: v.GetDuration("client.dial_timeout"),
		TokenFile:   v.GetString("client.token_file"),
	}
}

// Validate rejects configurations the service cannot start with.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return errors.New("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for postgres")
		}
	default:
		return errors.Errorf("unsupported database.driver %q", c.Database.Driver)
	}
	switch c.Threads.Scope {
	case ThreadScopeGlobal, ThreadScopeUser:
	default:
		return errors.Errorf("unsupported threads.scope %q", c.Threads.Scope)
	}
	if len(c.App.Sports) == 0 {
		return errors.New("app.sports must not be empty")
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret must not be empty")
	}
	return nil
}

// IsAdmin reports whether username is listed in server.admin_users.
func (c ServerConfig) IsAdmin(username string) bool {
	for _, admin := range c.AdminUsers {
		if strings.EqualFold(strings.TrimSpace(admin), username) {
			return true
		}
	}
	return false
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".sportchat-token"
	}
	return home + "/.sportchat/token"
}
