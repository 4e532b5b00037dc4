package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultDatabasePath is the default base path of the timing database.
	DefaultDatabasePath = "./data/timings"

	// DefaultMergePolicy is the default tree merge policy.
	DefaultMergePolicy = MergePolicyGrow

	// DefaultLockTimeout bounds how long an append waits for the store lock.
	DefaultLockTimeout = 30 * time.Second

	// DefaultConcurrency is the number of logs parsed in parallel.
	DefaultConcurrency = 4

	// DefaultMinRows drops timer tables with this many rows or fewer.
	DefaultMinRows = 5

	// DefaultIndentWidth is the number of characters per nesting level.
	DefaultIndentWidth = 3

	// DefaultIndentMarker is the token printed in front of nested names.
	DefaultIndentMarker = "L"

	// DefaultListen is the default API listen address.
	DefaultListen = ":8080"

	// DefaultReloadInterval is how often the API reloads the database.
	DefaultReloadInterval = time.Minute

	// DefaultRequestsPerMinute is the default per-IP request budget.
	DefaultRequestsPerMinute = 120

	// DefaultSeriesColumn is the column used for series when none is given.
	DefaultSeriesColumn = "total max (s)"

	// EnvPrefix prefixes environment overrides, e.g.
	// TIMINGTREE_DATABASE_PATH.
	EnvPrefix = "TIMINGTREE"
)

// Merge policies for the region trees of a database.
const (
	MergePolicyGrow    = "grow"
	MergePolicyReplace = "replace"
)

// Index drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultHeaderLabels are the labels a timer table header must carry.
var DefaultHeaderLabels = []string{"name", "# calls"}

// Config is the root configuration for timingtree.
type Config struct {
	Global   GlobalConfig   `yaml:"global" mapstructure:"global"`
	Parser   ParserConfig   `yaml:"parser" mapstructure:"parser"`
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`
	Index    IndexConfig    `yaml:"index" mapstructure:"index"`
	Storage  StorageConfig  `yaml:"storage" mapstructure:"storage"`
	Upload   UploadConfig   `yaml:"upload" mapstructure:"upload"`
	API      APIConfig      `yaml:"api" mapstructure:"api"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// ParserConfig describes the timer report format.
type ParserConfig struct {
	MinRows      int      `yaml:"min_rows" mapstructure:"min_rows"`
	IndentWidth  int      `yaml:"indent_width" mapstructure:"indent_width"`
	IndentMarker string   `yaml:"indent_marker" mapstructure:"indent_marker"`
	HeaderLabels []string `yaml:"header_labels" mapstructure:"header_labels"`
}

// DatabaseConfig locates the persisted timing database and tunes appends.
type DatabaseConfig struct {
	// Path is the base path; artifacts are written as <path>_meta.json,
	// <path>_tree_<i>.json and <path>_data_<i>.json.
	Path        string        `yaml:"path" mapstructure:"path"`
	MergePolicy string        `yaml:"merge_policy" mapstructure:"merge_policy"`
	Owner       string        `yaml:"owner,omitempty" mapstructure:"owner"`
	LockTimeout time.Duration `yaml:"lock_timeout" mapstructure:"lock_timeout"`
	Concurrency int           `yaml:"concurrency" mapstructure:"concurrency"`
	// Backup snapshots tree artifacts before a structurally different
	// sample is merged.
	Backup bool `yaml:"backup" mapstructure:"backup"`
}

// IndexConfig configures the SQL index of merged samples.
type IndexConfig struct {
	Enabled  bool                 `yaml:"enabled" mapstructure:"enabled"`
	Store    string               `yaml:"store,omitempty" mapstructure:"store"`
	Driver   string               `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteDatabaseConfig `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig       `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// SQLiteDatabaseConfig contains SQLite-specific settings.
type SQLiteDatabaseConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}

// StorageConfig selects where a database is read from. When S3 is not
// enabled the database is read from the local filesystem.
type StorageConfig struct {
	S3 S3Config `yaml:"s3" mapstructure:"s3"`
}

// UploadConfig configures uploading persisted artifacts.
type UploadConfig struct {
	S3 S3Config `yaml:"s3" mapstructure:"s3"`
}

// S3Config contains S3 connection settings.
type S3Config struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
	Prefix          string `yaml:"prefix,omitempty" mapstructure:"prefix"`
	// StorageClass and ACL only apply to uploads.
	StorageClass string `yaml:"storage_class,omitempty" mapstructure:"storage_class"`
	ACL          string `yaml:"acl,omitempty" mapstructure:"acl"`
}

// APIConfig contains the query API settings.
type APIConfig struct {
	Listen         string          `yaml:"listen" mapstructure:"listen"`
	CORSOrigins    []string        `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	ReloadInterval time.Duration   `yaml:"reload_interval" mapstructure:"reload_interval"`
}

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// Load reads and merges configuration files in order, then applies
// TIMINGTREE_* environment overrides. With no files only defaults and the
// environment are used.
func Load(paths ...string) (*Config, error) {
	v := newViper()

	for i, path := range paths {
		v.SetConfigFile(path)

		var err error
		if i == 0 {
			err = v.ReadInConfig()
		} else {
			err = v.MergeInConfig()
		}

		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// newViper returns a viper instance with every key registered as a default,
// which is what makes environment overrides work for keys absent from the
// file.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("global.log_level", DefaultLogLevel)

	v.SetDefault("parser.min_rows", DefaultMinRows)
	v.SetDefault("parser.indent_width", DefaultIndentWidth)
	v.SetDefault("parser.indent_marker", DefaultIndentMarker)
	v.SetDefault("parser.header_labels", DefaultHeaderLabels)

	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("database.merge_policy", DefaultMergePolicy)
	v.SetDefault("database.owner", "")
	v.SetDefault("database.lock_timeout", DefaultLockTimeout)
	v.SetDefault("database.concurrency", DefaultConcurrency)
	v.SetDefault("database.backup", true)

	v.SetDefault("index.enabled", false)
	v.SetDefault("index.store", "")
	v.SetDefault("index.driver", DriverSQLite)
	v.SetDefault("index.sqlite.path", "")
	v.SetDefault("index.postgres.host", "")
	v.SetDefault("index.postgres.port", 5432)
	v.SetDefault("index.postgres.user", "")
	v.SetDefault("index.postgres.password", "")
	v.SetDefault("index.postgres.database", "")
	v.SetDefault("index.postgres.ssl_mode", "disable")

	for _, section := range []string{"storage.s3", "upload.s3"} {
		v.SetDefault(section+".enabled", false)
		v.SetDefault(section+".endpoint_url", "")
		v.SetDefault(section+".region", "")
		v.SetDefault(section+".bucket", "")
		v.SetDefault(section+".access_key_id", "")
		v.SetDefault(section+".secret_access_key", "")
		v.SetDefault(section+".force_path_style", false)
		v.SetDefault(section+".prefix", "")
		v.SetDefault(section+".storage_class", "")
		v.SetDefault(section+".acl", "")
	}

	v.SetDefault("api.listen", DefaultListen)
	v.SetDefault("api.cors_origins", []string{})
	v.SetDefault("api.rate_limit.enabled", false)
	v.SetDefault("api.rate_limit.requests_per_minute", DefaultRequestsPerMinute)
	v.SetDefault("api.reload_interval", DefaultReloadInterval)

	return v
}

// applyDefaults fills values that are invalid when left at zero.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Parser.IndentWidth <= 0 {
		c.Parser.IndentWidth = DefaultIndentWidth
	}

	if c.Parser.IndentMarker == "" {
		c.Parser.IndentMarker = DefaultIndentMarker
	}

	if len(c.Parser.HeaderLabels) == 0 {
		c.Parser.HeaderLabels = append([]string(nil), DefaultHeaderLabels...)
	}

	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}

	if c.Database.MergePolicy == "" {
		c.Database.MergePolicy = DefaultMergePolicy
	}

	if c.Database.Concurrency <= 0 {
		c.Database.Concurrency = DefaultConcurrency
	}

	if c.Index.Store == "" {
		c.Index.Store = filepath.Base(c.Database.Path)
	}

	if c.Index.Driver == "" {
		c.Index.Driver = DriverSQLite
	}

	if c.Index.Driver == DriverSQLite && c.Index.SQLite.Path == "" {
		c.Index.SQLite.Path = c.Database.Path + "_index.db"
	}

	if c.API.Listen == "" {
		c.API.Listen = DefaultListen
	}

	if c.API.RateLimit.RequestsPerMinute <= 0 {
		c.API.RateLimit.RequestsPerMinute = DefaultRequestsPerMinute
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Parser.MinRows < 0 {
		errs = append(errs, errors.New("parser.min_rows must not be negative"))
	}

	switch c.Database.MergePolicy {
	case MergePolicyGrow, MergePolicyReplace:
	default:
		errs = append(errs, fmt.Errorf(
			"database.merge_policy %q must be %q or %q",
			c.Database.MergePolicy, MergePolicyGrow, MergePolicyReplace,
		))
	}

	if c.Database.LockTimeout < 0 {
		errs = append(errs, errors.New("database.lock_timeout must not be negative"))
	}

	if c.Index.Enabled {
		switch c.Index.Driver {
		case DriverSQLite:
			if c.Index.SQLite.Path == "" {
				errs = append(errs, errors.New("index.sqlite.path is required"))
			}
		case DriverPostgres:
			if c.Index.Postgres.Host == "" || c.Index.Postgres.Database == "" {
				errs = append(errs, errors.New("index.postgres host and database are required"))
			}
		default:
			errs = append(errs, fmt.Errorf("index.driver %q is not supported", c.Index.Driver))
		}
	}

	if c.Storage.S3.Enabled && c.Storage.S3.Bucket == "" {
		errs = append(errs, errors.New("storage.s3.bucket is required when enabled"))
	}

	if c.Upload.S3.Enabled && c.Upload.S3.Bucket == "" {
		errs = append(errs, errors.New("upload.s3.bucket is required when enabled"))
	}

	if c.API.ReloadInterval < 0 {
		errs = append(errs, errors.New("api.reload_interval must not be negative"))
	}

	return errors.Join(errs...)
}
