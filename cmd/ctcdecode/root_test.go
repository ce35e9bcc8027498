package main

import (
	"testing"

	"github.com/example/go-ctcdecode/internal/config"
)

func TestNewRootCmd_HasExpectedSubcommands(t *testing.T) {
	cmd := NewRootCmd()

	want := []string{"decode", "bench", "dict", "serve", "health"}
	got := map[string]bool{}
	for _, c := range cmd.Commands() {
		got[c.Name()] = true
	}

	for _, name := range want {
		if !got[name] {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestNewRootCmd_HasConfigFlag(t *testing.T) {
	cmd := NewRootCmd()

	if cmd.PersistentFlags().Lookup("config") == nil {
		t.Error("expected --config persistent flag")
	}
}

func TestNewDictCmd_HasBuildAndInspect(t *testing.T) {
	cmd := newDictCmd()

	want := []string{"build", "inspect"}
	got := map[string]bool{}
	for _, c := range cmd.Commands() {
		got[c.Name()] = true
	}

	for _, name := range want {
		if !got[name] {
			t.Errorf("missing dict subcommand %q", name)
		}
	}
}

func TestRequireConfig_FailsBeforeLoad(t *testing.T) {
	saved := activeCfg
	defer func() { activeCfg = saved }()

	activeCfg = config.Config{}

	if _, err := requireConfig(); err == nil {
		t.Error("expected error when config has not been loaded")
	}
}
