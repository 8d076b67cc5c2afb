// Package config loads node and client settings from <home>/config/app.toml,
// ARENA_* environment variables and command flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "ARENA"
	ConfigDirName  = "config"
	ConfigFileName = "app.toml"
	NetworkKeyFile = "network_key.json"

	DefaultChainID = "cipherarena-devnet"
)

// Config mirrors app.toml.
type Config struct {
	Home    string `mapstructure:"home"`
	ChainID string `mapstructure:"chain_id"`

	ABCI   ABCIConfig   `mapstructure:"abci"`
	DB     DBConfig     `mapstructure:"db"`
	Log    LogConfig    `mapstructure:"log"`
	FHE    FHEConfig    `mapstructure:"fhe"`
	KMS    KMSConfig    `mapstructure:"kms"`
	Client ClientConfig `mapstructure:"client"`
}

type ABCIConfig struct {
	Address   string `mapstructure:"address"`
	Transport string `mapstructure:"transport"`
}

type DBConfig struct {
	Backend string `mapstructure:"backend"`
	Name    string `mapstructure:"name"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

type FHEConfig struct {
	MaxOpsPerTx int `mapstructure:"max_ops_per_tx"`
}

type KMSConfig struct {
	MaxDurationDays uint64        `mapstructure:"max_duration_days"`
	ClockSkew       time.Duration `mapstructure:"clock_skew"`
}

type ClientConfig struct {
	Node            string `mapstructure:"node"`
	KeyFile         string `mapstructure:"key_file"`
	DurationDays    uint64 `mapstructure:"duration_days"`
	DecryptAttempts int    `mapstructure:"decrypt_attempts"`
}

// DefaultHome is ~/.cipherarena, or ./.cipherarena when no home directory
// can be resolved.
func DefaultHome() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return ".cipherarena"
	}
	return filepath.Join(dir, ".cipherarena")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("home", DefaultHome())
	v.SetDefault("chain_id", DefaultChainID)
	v.SetDefault("abci.address", "tcp://127.0.0.1:26658")
	v.SetDefault("abci.transport", "socket")
	v.SetDefault("db.backend", "goleveldb")
	v.SetDefault("db.name", "arena")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("fhe.max_ops_per_tx", 64)
	v.SetDefault("kms.max_duration_days", 365)
	v.SetDefault("kms.clock_skew", "5m")
	v.SetDefault("client.node", "http://127.0.0.1:26657")
	v.SetDefault("client.key_file", "")
	v.SetDefault("client.duration_days", 10)
	v.SetDefault("client.decrypt_attempts", 3)
}

// New returns a viper instance with defaults and environment binding. Flags
// may be bound to it before Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds each flag in fs to the key of the same name, with dashes
// mapped to the config's dotted form (e.g. "chain-id" to "chain_id").
func BindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) error {
	for flag, key := range keys {
		f := fs.Lookup(flag)
		if f == nil {
			return fmt.Errorf("config: unknown flag %q", flag)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("config: bind %s: %w", flag, err)
		}
	}
	return nil
}

// Load reads <home>/config/app.toml if it exists and decodes the merged view.
func Load(v *viper.Viper) (*Config, error) {
	home := v.GetString("home")
	v.SetConfigFile(ConfigPath(home))
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Home = home
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.ChainID == "" {
		return fmt.Errorf("config: chain_id is empty")
	}
	switch c.ABCI.Transport {
	case "socket", "grpc":
	default:
		return fmt.Errorf("config: abci.transport must be socket or grpc, got %q", c.ABCI.Transport)
	}
	if c.FHE.MaxOpsPerTx <= 0 {
		return fmt.Errorf("config: fhe.max_ops_per_tx must be positive")
	}
	if c.KMS.ClockSkew < 0 {
		return fmt.Errorf("config: kms.clock_skew is negative")
	}
	if c.Client.DurationDays == 0 {
		return fmt.Errorf("config: client.duration_days must be positive")
	}
	if c.KMS.MaxDurationDays > 0 && c.Client.DurationDays > c.KMS.MaxDurationDays {
		return fmt.Errorf("config: client.duration_days %d exceeds kms.max_duration_days %d",
			c.Client.DurationDays, c.KMS.MaxDurationDays)
	}
	if c.Client.DecryptAttempts <= 0 {
		return fmt.Errorf("config: client.decrypt_attempts must be positive")
	}
	return nil
}

func ConfigPath(home string) string {
	return filepath.Join(home, ConfigDirName, ConfigFileName)
}

func NetworkKeyPath(home string) string {
	return filepath.Join(home, ConfigDirName, NetworkKeyFile)
}

// KeyFile resolves client.key_file, relative paths being taken from home.
func (c *Config) KeyFile() string {
	p := c.Client.KeyFile
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Home, p)
}

// WriteDefault writes app.toml with the defaults for chainID. It refuses to
// overwrite an existing file unless force is set.
func WriteDefault(home, chainID string, force bool) (string, error) {
	path := ConfigPath(home)
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("config: %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.Set("chain_id", chainID)
	settings := v.AllSettings()
	delete(settings, "home")

	out := viper.New()
	if err := out.MergeConfigMap(settings); err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	if err := out.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return path, nil
}
