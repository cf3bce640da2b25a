// Package config loads qfs configuration from a YAML file and QFS_*
// environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"eddisonso.com/go-qfs/internal/chunkstore"
	"eddisonso.com/go-qfs/internal/metaserver"
	"eddisonso.com/go-qfs/pkg/qfslog"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides: server.port is QFS_SERVER_PORT.
const EnvPrefix = "QFS"

// Config is the configuration shared by the metaserver and the shell.
type Config struct {
	Logging   LoggingConfig     `mapstructure:"logging"`
	Server    ServerConfig      `mapstructure:"server"`
	Namespace NamespaceConfig   `mapstructure:"namespace"`
	Store     chunkstore.Config `mapstructure:"store"`
	Client    ClientConfig      `mapstructure:"client"`
}

type LoggingConfig struct {
	// Level is TRACE, DEBUG, INFO, WARN or ERROR, in any case.
	Level  string `mapstructure:"level" validate:"required,oneof=TRACE DEBUG INFO WARN ERROR"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
	// File mirrors log records as JSON lines when set.
	File string `mapstructure:"file"`
}

type ServerConfig struct {
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`
	// SessionSecret signs session tokens. When empty the metaserver picks a
	// random one and sessions do not survive a restart.
	SessionSecret   string        `mapstructure:"session_secret" validate:"omitempty,min=16"`
	SessionTTL      time.Duration `mapstructure:"session_ttl" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

type NamespaceConfig struct {
	// DataDir holds the write-ahead log. Empty keeps the namespace in memory.
	DataDir   string `mapstructure:"data_dir"`
	ChunkSize int64  `mapstructure:"chunk_size" validate:"gt=0"`
	UID       uint32 `mapstructure:"uid"`
	GID       uint32 `mapstructure:"gid"`
}

type ClientConfig struct {
	Host        string        `mapstructure:"host" validate:"required"`
	Port        int           `mapstructure:"port" validate:"min=1,max=65535"`
	CallTimeout time.Duration `mapstructure:"call_timeout" validate:"gt=0"`
	PageSize    int           `mapstructure:"page_size" validate:"gt=0,lte=1000"`
}

// Load reads configPath, or config.yaml in the default directory when
// configPath is empty. A missing default file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)
	setDefaults(v)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(Dir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// setDefaults registers every key so environment overrides apply even when
// the file does not mention it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")

	v.SetDefault("server.port", 20000)
	v.SetDefault("server.session_secret", "")
	v.SetDefault("server.session_ttl", metaserver.DefaultSessionTTL)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("namespace.data_dir", "")
	v.SetDefault("namespace.chunk_size", metaserver.DefaultChunkSize)
	v.SetDefault("namespace.uid", 0)
	v.SetDefault("namespace.gid", 0)

	v.SetDefault("store.type", "memory")

	v.SetDefault("client.host", "localhost")
	v.SetDefault("client.port", 20000)
	v.SetDefault("client.call_timeout", 30*time.Second)
	v.SetDefault("client.page_size", 256)
}

func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Dir returns the directory searched for config.yaml.
func Dir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "qfs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "qfs")
}

// SlogLevel converts Level, already validated, to a slog level.
func (l LoggingConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "TRACE":
		return qfslog.LevelTrace
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Metaserver converts the namespace section for metaserver.NewNamespace.
func (n NamespaceConfig) Metaserver() metaserver.Config {
	cfg := metaserver.Config{ChunkSize: n.ChunkSize, UID: n.UID, GID: n.GID}
	if n.DataDir != "" {
		cfg.WALPath = filepath.Join(n.DataDir, "wal.log")
	}
	return cfg
}
