package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// WriteConfig holds settings for the stake, withdraw and post commands.
type WriteConfig struct {
	Chain
	KeyFile   string        `validate:"required"`
	TxTimeout time.Duration `validate:"gt=0"`
	LogLevel  string        `validate:"oneof=debug info warn error"`
}

// LoadWrite merges config file, environment variables, and flags into WriteConfig.
func LoadWrite(cfgFile string, flags *pflag.FlagSet) (WriteConfig, error) {
	v := viper.New()
	setChainDefaults(v)
	v.SetDefault("tx-timeout", 2*time.Minute)
	v.SetDefault("log-level", "info")

	if err := readIn(v, cfgFile, flags); err != nil {
		return WriteConfig{}, err
	}

	cfg := WriteConfig{
		Chain:     chainFrom(v),
		KeyFile:   strings.TrimSpace(v.GetString("key-file")),
		TxTimeout: v.GetDuration("tx-timeout"),
		LogLevel:  strings.ToLower(v.GetString("log-level")),
	}
	if err := validate(cfg); err != nil {
		return WriteConfig{}, err
	}
	return cfg, nil
}

// QueryConfig holds settings for the read-only balance and check commands.
type QueryConfig struct {
	Chain
	LogLevel string `validate:"oneof=debug info warn error"`
}

// LoadQuery merges config file, environment variables, and flags into QueryConfig.
func LoadQuery(cfgFile string, flags *pflag.FlagSet) (QueryConfig, error) {
	v := viper.New()
	setChainDefaults(v)
	v.SetDefault("log-level", "info")

	if err := readIn(v, cfgFile, flags); err != nil {
		return QueryConfig{}, err
	}

	cfg := QueryConfig{
		Chain:    chainFrom(v),
		LogLevel: strings.ToLower(v.GetString("log-level")),
	}
	if err := validate(cfg); err != nil {
		return QueryConfig{}, err
	}
	return cfg, nil
}
