package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/aparcar/buildboard/internal/table"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "log_level: debug\n"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.ServerPort != 8080 || cfg.DefaultBranch != "mozilla-central" || cfg.ReportCacheSeconds != 600 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
	if !filepath.IsAbs(cfg.DatabasePath) {
		t.Errorf("database path not absolute: %s", cfg.DatabasePath)
	}
	if !reflect.DeepEqual(cfg.Columns(), table.DefaultColumns()) {
		t.Errorf("columns = %+v, want defaults", cfg.Columns())
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("BUILDBOARD_SERVER_PORT", "9090")
	t.Setenv("BUILDBOARD_TABLE_SUM_COL", "7")

	cfg, err := LoadConfig(writeConfig(t, "default_branch: try\ntable:\n  label_cols: [4]\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ServerPort != 9090 {
		t.Errorf("port = %d, want 9090", cfg.ServerPort)
	}
	if cfg.DefaultBranch != "try" {
		t.Errorf("branch = %q", cfg.DefaultBranch)
	}
	cols := cfg.Columns()
	if cols.Sum != 7 || !reflect.DeepEqual(cols.Label, []int{4}) {
		t.Errorf("columns = %+v", cols)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := LoadConfig(writeConfig(t, "{}\n"))
		if err != nil {
			t.Fatal(err)
		}
		return cfg
	}

	tests := map[string]func(*Config){
		"port":          func(c *Config) { c.ServerPort = 0 },
		"branch":        func(c *Config) { c.DefaultBranch = "" },
		"cache":         func(c *Config) { c.ReportCacheSeconds = -1 },
		"retention":     func(c *Config) { c.RetentionDays = -1 },
		"prune":         func(c *Config) { c.PruneIntervalSeconds = 0 },
		"import":        func(c *Config) { c.ImportTimeoutSeconds = 0 },
		"negative col":  func(c *Config) { c.Table.PlatformCol = -1 },
		"same ptg, sum": func(c *Config) { c.Table.SumCol = c.Table.PercentageCol },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestDurations(t *testing.T) {
	cfg := &Config{ReportCacheSeconds: 600, RetentionDays: 2, PruneIntervalSeconds: 60, ServerHost: "h", ServerPort: 1}
	if cfg.ReportCacheTTL().Minutes() != 10 || cfg.RetentionPeriod().Hours() != 48 || cfg.PruneInterval().Seconds() != 60 {
		t.Error("unexpected durations")
	}
	if cfg.Addr() != "h:1" {
		t.Errorf("addr = %s", cfg.Addr())
	}
}
