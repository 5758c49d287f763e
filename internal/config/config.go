package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"stakeScope/internal/model"
)

// EnvPrefix prefixes every environment variable, e.g. STAKESCOPE_RPC.
const EnvPrefix = "STAKESCOPE"

// Chain identifies the ledger endpoint and contract shared by every command.
type Chain struct {
	RPCURL    string  `validate:"required,url"`
	Contract  string  `validate:"required,eth_addr"`
	BatchSize uint64  `validate:"gt=0"`
	RPCRate   float64 `validate:"gte=0"`
	RPCBurst  int     `validate:"gte=0"`
}

// Config holds settings for the watch and serve commands.
type Config struct {
	Chain
	PollInterval     time.Duration `validate:"min=500ms"`
	MaxRecords       int           `validate:"gt=0"`
	FailureThreshold int           `validate:"gt=0"`
	BypassEvery      int           `validate:"gt=0"`
	MaxBackoff       time.Duration `validate:"min=500ms"`
	TickTimeout      time.Duration `validate:"gte=0"`
	Kinds            []model.EventKind
	CacheFile        string
	PGDSN            string
	Journal          string
	Listen           string `validate:"omitempty,hostname_port"`
	CorsOrigin       string
	LogLevel         string `validate:"oneof=debug info warn error"`
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setChainDefaults(v)
	v.SetDefault("poll-interval", 4*time.Second)
	v.SetDefault("max-records", 500)
	v.SetDefault("failure-threshold", 3)
	v.SetDefault("bypass-every", 5)
	v.SetDefault("max-backoff", 30*time.Second)
	v.SetDefault("tick-timeout", 20*time.Second)
	v.SetDefault("listen", "127.0.0.1:8080")
	v.SetDefault("cors-origin", "*")
	v.SetDefault("log-level", "info")

	if err := readIn(v, cfgFile, flags); err != nil {
		return Config{}, err
	}

	kinds, err := parseKinds(getStringSlice(v, "kinds"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Chain:            chainFrom(v),
		PollInterval:     v.GetDuration("poll-interval"),
		MaxRecords:       v.GetInt("max-records"),
		FailureThreshold: v.GetInt("failure-threshold"),
		BypassEvery:      v.GetInt("bypass-every"),
		MaxBackoff:       v.GetDuration("max-backoff"),
		TickTimeout:      v.GetDuration("tick-timeout"),
		Kinds:            kinds,
		CacheFile:        v.GetString("cache-file"),
		PGDSN:            v.GetString("pg-dsn"),
		Journal:          v.GetString("journal"),
		Listen:           v.GetString("listen"),
		CorsOrigin:       v.GetString("cors-origin"),
		LogLevel:         strings.ToLower(v.GetString("log-level")),
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setChainDefaults(v *viper.Viper) {
	v.SetDefault("batch-size", uint64(2000))
	v.SetDefault("rpc-rate", 10.0)
	v.SetDefault("rpc-burst", 20)
}

func chainFrom(v *viper.Viper) Chain {
	return Chain{
		RPCURL:    strings.TrimSpace(v.GetString("rpc")),
		Contract:  strings.TrimSpace(v.GetString("contract")),
		BatchSize: v.GetUint64("batch-size"),
		RPCRate:   v.GetFloat64("rpc-rate"),
		RPCBurst:  v.GetInt("rpc-burst"),
	}
}

// readIn wires env, flags and the optional config file into v.
func readIn(v *viper.Viper, cfgFile string, flags *pflag.FlagSet) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func parseKinds(names []string) ([]model.EventKind, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make([]model.EventKind, 0, len(names))
	seen := make(map[model.EventKind]struct{}, len(names))
	for _, name := range names {
		kind, err := model.ParseEventKind(name)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[kind]; ok {
			continue
		}
		seen[kind] = struct{}{}
		out = append(out, kind)
	}
	return out, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	return cleanStrings(strings.Split(input, ","))
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
