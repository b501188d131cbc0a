package cmd

import (
	"testing"
)

func resetRootFlags() {
	rootConfigPath = ""
	rootHost = ""
	rootPort = 0
	rootUser = ""
	rootPassword = ""
	rootDatabase = ""
	rootLogFile = ""
	rootVerbose = false
}

func TestLoadConfigRequiresDatabase(t *testing.T) {
	resetRootFlags()
	t.Cleanup(resetRootFlags)

	if _, err := loadConfig(); err == nil {
		t.Error("loadConfig should fail with no database selected")
	}
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	resetRootFlags()
	t.Cleanup(resetRootFlags)

	rootHost = "flag-host"
	rootPort = 3307
	rootDatabase = "tenancy"
	rootLogFile = "/tmp/sweeper-test.log"

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.DB.Host != "flag-host" {
		t.Errorf("Host = %q, want flag-host", cfg.DB.Host)
	}
	if cfg.DB.Port != 3307 {
		t.Errorf("Port = %d, want 3307", cfg.DB.Port)
	}
	if cfg.DB.Database != "tenancy" {
		t.Errorf("Database = %q, want tenancy", cfg.DB.Database)
	}
	if cfg.Logging.File != "/tmp/sweeper-test.log" {
		t.Errorf("log file = %q", cfg.Logging.File)
	}
}

func TestLoadConfigFlagsBeatEnvironment(t *testing.T) {
	resetRootFlags()
	t.Cleanup(resetRootFlags)

	t.Setenv("SWEEPER_DB_HOST", "env-host")
	rootHost = "flag-host"
	rootDatabase = "tenancy"

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.DB.Host != "flag-host" {
		t.Errorf("Host = %q, flags must beat environment", cfg.DB.Host)
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	want := map[string]bool{
		"identify": false, "delete": false, "progress": false,
		"types": false, "sweep": false,
	}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %s not registered", name)
		}
	}
}
