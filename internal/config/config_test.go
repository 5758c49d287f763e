package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"stakeScope/internal/model"
)

const testContract = "0x1111111111111111111111111111111111111111"

func watchFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	flags.String("rpc", "", "")
	flags.String("contract", "", "")
	flags.Duration("poll-interval", 4*time.Second, "")
	flags.String("kinds", "", "")
	if err := flags.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return flags
}

func TestLoadFromFlags(t *testing.T) {
	flags := watchFlags(t,
		"--rpc", "http://127.0.0.1:8545",
		"--contract", testContract,
		"--poll-interval", "2s",
		"--kinds", "stakedeposited, MessagePosted,StakeDeposited",
	)

	cfg, err := Load("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCURL != "http://127.0.0.1:8545" || cfg.Contract != testContract {
		t.Fatalf("unexpected chain config: %+v", cfg.Chain)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("expected 2s poll interval, got %s", cfg.PollInterval)
	}
	if len(cfg.Kinds) != 2 || cfg.Kinds[0] != model.StakeDeposited || cfg.Kinds[1] != model.MessagePosted {
		t.Fatalf("unexpected kinds: %v", cfg.Kinds)
	}
	if cfg.FailureThreshold != 3 || cfg.BypassEvery != 5 || cfg.MaxBackoff != 30*time.Second {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadFromEnvAndFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stakescope.yaml")
	body := "rpc: http://node:8545\ncontract: " + testContract + "\nmax-records: 50\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("STAKESCOPE_BYPASS_EVERY", "9")

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxRecords != 50 {
		t.Fatalf("expected max records from file, got %d", cfg.MaxRecords)
	}
	if cfg.BypassEvery != 9 {
		t.Fatalf("expected bypass from env, got %d", cfg.BypassEvery)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string][]string{
		"missing rpc":  {"--contract", testContract},
		"bad contract": {"--rpc", "http://x:1", "--contract", "0x1234"},
		"fast polling": {"--rpc", "http://x:1", "--contract", testContract, "--poll-interval", "100ms"},
		"unknown kind": {"--rpc", "http://x:1", "--contract", testContract, "--kinds", "Transfer"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load("", watchFlags(t, args...)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadWriteRequiresKeyFile(t *testing.T) {
	flags := pflag.NewFlagSet("stake", pflag.ContinueOnError)
	flags.String("rpc", "http://127.0.0.1:8545", "")
	flags.String("contract", testContract, "")
	flags.String("key-file", "", "")

	_, err := LoadWrite("", flags)
	if err == nil || !strings.Contains(err.Error(), "KeyFile is required") {
		t.Fatalf("expected key file error, got %v", err)
	}

	if err := flags.Set("key-file", "/tmp/key"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	cfg, err := LoadWrite("", flags)
	if err != nil {
		t.Fatalf("load write: %v", err)
	}
	if cfg.TxTimeout != 2*time.Minute {
		t.Fatalf("unexpected tx timeout: %s", cfg.TxTimeout)
	}
}

func TestLoadQuery(t *testing.T) {
	flags := pflag.NewFlagSet("balance", pflag.ContinueOnError)
	flags.String("rpc", "ws://127.0.0.1:8546", "")
	flags.String("contract", testContract, "")

	cfg, err := LoadQuery("", flags)
	if err != nil {
		t.Fatalf("load query: %v", err)
	}
	if cfg.BatchSize != 2000 || cfg.LogLevel != "info" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}
