package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/aparcar/buildboard/internal/filters"
	"github.com/aparcar/buildboard/internal/table"
)

// Config holds all configuration for the dashboard service
type Config struct {
	// Server configuration
	ServerHost string `mapstructure:"server_host"`
	ServerPort int    `mapstructure:"server_port"`

	// Database configuration
	DatabasePath string `mapstructure:"database_path"`

	// Report configuration
	DefaultBranch      string `mapstructure:"default_branch"`
	ReportCacheSeconds int    `mapstructure:"report_cache_seconds"`

	// Retention configuration
	RetentionDays        int `mapstructure:"retention_days"`
	PruneIntervalSeconds int `mapstructure:"prune_interval_seconds"`

	// Import configuration
	ImportURL            string `mapstructure:"import_url"`
	ImportTimeoutSeconds int    `mapstructure:"import_timeout_seconds"`

	// Builders table layout
	Table TableConfig `mapstructure:"table"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
}

// TableConfig maps the builders table columns
type TableConfig struct {
	DetailLevelCol int   `mapstructure:"detail_level_col"`
	PlatformCol    int   `mapstructure:"platform_col"`
	BuildTypeCol   int   `mapstructure:"build_type_col"`
	JobTypeCol     int   `mapstructure:"job_type_col"`
	PercentageCol  int   `mapstructure:"percentage_col"`
	SumCol         int   `mapstructure:"sum_col"`
	LabelCols      []int `mapstructure:"label_cols"`
}

// LoadConfig loads configuration from environment and config file. An
// empty path searches the default locations
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("BUILDBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return nil, fmt.Errorf("failed to expand config path: %w", err)
		}
		v.SetConfigFile(expanded)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/buildboard/")
		v.AddConfigPath("$HOME/.buildboard")
		v.AddConfigPath(".")

		// Config file is optional
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Expand paths
	if err := config.expandPaths(); err != nil {
		return nil, fmt.Errorf("failed to expand paths: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server_host", "0.0.0.0")
	v.SetDefault("server_port", 8080)

	// Database defaults
	v.SetDefault("database_path", "./data/buildboard.db")

	// Report defaults
	v.SetDefault("default_branch", "mozilla-central")
	v.SetDefault("report_cache_seconds", 600)

	// Retention defaults
	v.SetDefault("retention_days", 30)
	v.SetDefault("prune_interval_seconds", 3600)

	// Import defaults
	v.SetDefault("import_url", "")
	v.SetDefault("import_timeout_seconds", 60)

	// Table defaults
	cols := table.DefaultColumns()
	v.SetDefault("table.detail_level_col", cols.Filters[filters.DetailLevel])
	v.SetDefault("table.platform_col", cols.Filters[filters.Platform])
	v.SetDefault("table.build_type_col", cols.Filters[filters.BuildType])
	v.SetDefault("table.job_type_col", cols.Filters[filters.JobType])
	v.SetDefault("table.percentage_col", cols.Percentage)
	v.SetDefault("table.sum_col", cols.Sum)
	v.SetDefault("table.label_cols", cols.Label)

	// Logging
	v.SetDefault("log_level", "info")
}

func (c *Config) expandPaths() error {
	var err error

	c.DatabasePath, err = expandPath(c.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to expand database_path: %w", err)
	}

	return nil
}

func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	path, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}

	return filepath.Abs(path)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("invalid server port: %d", c.ServerPort)
	}

	if c.DefaultBranch == "" {
		return fmt.Errorf("default_branch is required")
	}

	if c.ReportCacheSeconds < 0 {
		return fmt.Errorf("report_cache_seconds must not be negative")
	}

	if c.RetentionDays < 0 {
		return fmt.Errorf("retention_days must not be negative")
	}

	if c.PruneIntervalSeconds < 1 {
		return fmt.Errorf("prune_interval_seconds must be at least 1")
	}

	if c.ImportTimeoutSeconds < 1 {
		return fmt.Errorf("import_timeout_seconds must be at least 1")
	}

	t := c.Table
	for name, col := range map[string]int{
		"detail_level_col": t.DetailLevelCol,
		"platform_col":     t.PlatformCol,
		"build_type_col":   t.BuildTypeCol,
		"job_type_col":     t.JobTypeCol,
		"percentage_col":   t.PercentageCol,
		"sum_col":          t.SumCol,
	} {
		if col < 0 {
			return fmt.Errorf("table.%s must not be negative", name)
		}
	}
	if t.PercentageCol == t.SumCol {
		return fmt.Errorf("table.percentage_col and table.sum_col must differ")
	}

	return nil
}

// Columns returns the table layout used by the filter adapter
func (c *Config) Columns() table.Columns {
	return table.Columns{
		Filters: map[string]int{
			filters.DetailLevel: c.Table.DetailLevelCol,
			filters.Platform:    c.Table.PlatformCol,
			filters.BuildType:   c.Table.BuildTypeCol,
			filters.JobType:     c.Table.JobTypeCol,
		},
		Label:      append([]int(nil), c.Table.LabelCols...),
		Percentage: c.Table.PercentageCol,
		Sum:        c.Table.SumCol,
	}
}

// ReportCacheTTL is the lifetime of cached reports
func (c *Config) ReportCacheTTL() time.Duration {
	return time.Duration(c.ReportCacheSeconds) * time.Second
}

// RetentionPeriod is how long build requests are kept
func (c *Config) RetentionPeriod() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// PruneInterval is the period of the retention worker
func (c *Config) PruneInterval() time.Duration {
	return time.Duration(c.PruneIntervalSeconds) * time.Second
}

// ImportTimeout bounds a single import download
func (c *Config) ImportTimeout() time.Duration {
	return time.Duration(c.ImportTimeoutSeconds) * time.Second
}

// Addr is the listen address of the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}
