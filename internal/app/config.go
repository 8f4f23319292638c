package app

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"syncpair/internal/services/prekey"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	Home       string // state directory, e.g. $HOME/.syncpair
	DB         string // SQLite database path; defaults to Home/syncpair.db
	Storage    string // object store base URL
	Token      string // bearer token for the object store
	Passphrase string // protects sealed secrets at rest
	LogLevel   string
	LogFormat  string // console or json
	PoolSize   int

	HTTP    *http.Client // optional; defaults to a client with a timeout
	ScryptN int          // scrypt cost for a new database; zero uses the store default
}

// Configuration keys, shared by flags, environment and config file.
const (
	KeyHome       = "home"
	KeyDB         = "db"
	KeyStorage    = "storage"
	KeyToken      = "token"
	KeyPassphrase = "passphrase"
	KeyLogLevel   = "log-level"
	KeyLogFormat  = "log-format"
	KeyPoolSize   = "pool-size"
	KeyConfig     = "config"
)

// EnvPrefix prefixes environment overrides, e.g. SYNCPAIR_STORAGE.
const EnvPrefix = "SYNCPAIR"

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyStorage, "http://127.0.0.1:8080")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyPoolSize, prekey.DefaultPoolSize)
	return v
}

// BindFlags registers the global flags on fs and binds them to v.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	fs.String(KeyHome, "", "state directory (default ~/.syncpair)")
	fs.String(KeyDB, "", "database path (default <home>/syncpair.db)")
	fs.String(KeyStorage, "", "object store base URL")
	fs.String(KeyToken, "", "object store bearer token")
	fs.StringP(KeyPassphrase, "p", "", "passphrase protecting local secrets")
	fs.String(KeyLogLevel, "", "log level (debug, info, warn, error)")
	fs.String(KeyLogFormat, "", "log format (console, json)")
	fs.Int(KeyPoolSize, 0, "number of published pre-keys to keep")
	fs.String(KeyConfig, "", "config file (default <home>/config.yaml)")

	for _, key := range []string{KeyHome, KeyDB, KeyStorage, KeyToken, KeyPassphrase, KeyLogLevel, KeyLogFormat, KeyPoolSize, KeyConfig} {
		if err := v.BindPFlag(key, fs.Lookup(key)); err != nil {
			return fmt.Errorf("bind flag %s: %w", key, err)
		}
	}
	return nil
}

// LoadConfig resolves the home directory, reads the optional config file
// and returns the merged configuration. Flags beat environment, which beats
// the file, which beats defaults.
func LoadConfig(v *viper.Viper) (Config, error) {
	home := v.GetString(KeyHome)
	if home == "" {
		dir, err := os.UserHomeDir()
		if err != nil {
			return Config{}, err
		}
		home = filepath.Join(dir, ".syncpair")
	}
	if err := os.MkdirAll(home, 0o700); err != nil {
		return Config{}, err
	}

	if file := v.GetString(KeyConfig); file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(home)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		Home:       home,
		DB:         v.GetString(KeyDB),
		Storage:    strings.TrimRight(v.GetString(KeyStorage), "/"),
		Token:      v.GetString(KeyToken),
		Passphrase: v.GetString(KeyPassphrase),
		LogLevel:   v.GetString(KeyLogLevel),
		LogFormat:  v.GetString(KeyLogFormat),
		PoolSize:   v.GetInt(KeyPoolSize),
	}
	if cfg.DB == "" {
		cfg.DB = filepath.Join(home, "syncpair.db")
	}
	if cfg.Storage == "" {
		return Config{}, errors.New("object store URL is required (--storage or SYNCPAIR_STORAGE)")
	}
	return cfg, nil
}

func (c Config) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return &http.Client{Timeout: 30 * time.Second}
}
