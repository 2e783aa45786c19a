// Package config loads the target's settings from a JSON or YAML file with
// environment overrides, validates them, and derives the backend DSN.
//
// Example (trimmed):
//
//	{
//	  "dialect": "postgresql",
//	  "host": "localhost",
//	  "user": "loader",
//	  "database": "warehouse",
//	  "default_target_schema": "raw",
//	  "load_method": "upsert",
//	  "batch": { "initial_size": 5000, "target_seconds": 1 }
//	}
package config

import (
	"fmt"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Dialects accepted in the dialect setting.
const (
	DialectPostgres = "postgresql"
	DialectSQLite   = "sqlite"
	DialectMySQL    = "mysql"
	DialectMSSQL    = "mssql"
)

// Target is the complete target configuration.
type Target struct {
	Dialect    string `json:"dialect" yaml:"dialect" env:"PGTARGET_DIALECT" env-default:"postgresql" env-description:"database dialect: postgresql, sqlite, mysql or mssql"`
	DriverType string `json:"driver_type" yaml:"driver_type" env:"PGTARGET_DRIVER_TYPE" env-description:"driver name; must match the dialect when set"`

	Host     string            `json:"host" yaml:"host" env:"PGTARGET_HOST" env-description:"database host"`
	Port     int               `json:"port" yaml:"port" env:"PGTARGET_PORT" env-description:"database port; the dialect default when zero"`
	User     string            `json:"user" yaml:"user" env:"PGTARGET_USER" env-description:"database user"`
	Password string            `json:"password" yaml:"password" env:"PGTARGET_PASSWORD" env-description:"database password"`
	Database string            `json:"database" yaml:"database" env:"PGTARGET_DATABASE" env-description:"database name, or the file path for sqlite"`
	RawDSN   string            `json:"dsn" yaml:"dsn" env:"PGTARGET_DSN" env-description:"full connection string; overrides host, port, user, password and database"`
	URLQuery map[string]string `json:"url_query" yaml:"url_query" env:"PGTARGET_URL_QUERY" env-description:"extra connection parameters as key:value pairs"`

	DefaultTargetSchema string `json:"default_target_schema" yaml:"default_target_schema" env:"PGTARGET_DEFAULT_TARGET_SCHEMA" env-description:"schema tables are created in"`
	LoadMethod          string `json:"load_method" yaml:"load_method" env:"PGTARGET_LOAD_METHOD" env-default:"insert" env-description:"insert, upsert or overwrite"`
	OnConflict          string `json:"on_conflict" yaml:"on_conflict" env:"PGTARGET_ON_CONFLICT" env-default:"fail" env-description:"fail or skip rows that violate a key"`
	HDJSONSchemaTypes   bool   `json:"hd_jsonschema_types" yaml:"hd_jsonschema_types" env:"PGTARGET_HD_JSONSCHEMA_TYPES" env-default:"false" env-description:"map JSON schema types to the narrowest column types"`

	Batch       Batch       `json:"batch" yaml:"batch"`
	Pool        Pool        `json:"pool" yaml:"pool"`
	BatchConfig BatchConfig `json:"batch_config" yaml:"batch_config"`
	Metrics     Metrics     `json:"metrics" yaml:"metrics"`
}

// Batch controls the adaptive batch size of every stream.
type Batch struct {
	InitialSize   int     `json:"initial_size" yaml:"initial_size" env:"PGTARGET_BATCH_INITIAL_SIZE" env-default:"5000" env-description:"first batch size of a stream"`
	TargetSeconds float64 `json:"target_seconds" yaml:"target_seconds" env:"PGTARGET_BATCH_TARGET_SECONDS" env-default:"1" env-description:"flush duration the batch size is tuned toward"`
	MaxAgeSeconds float64 `json:"max_age_seconds" yaml:"max_age_seconds" env:"PGTARGET_BATCH_MAX_AGE_SECONDS" env-default:"0" env-description:"flush a partial batch this old; batch.target_seconds when zero"`
}

// Pool sizes the database connection pool.
type Pool struct {
	MaxConns int32 `json:"max_conns" yaml:"max_conns" env:"PGTARGET_POOL_MAX_CONNS" env-default:"4" env-description:"maximum open connections"`
	MinConns int32 `json:"min_conns" yaml:"min_conns" env:"PGTARGET_POOL_MIN_CONNS" env-default:"0" env-description:"connections kept open"`
}

// BatchConfig describes where BATCH message files live and how they are
// encoded when the message itself does not say.
type BatchConfig struct {
	Encoding BatchEncoding `json:"encoding" yaml:"encoding"`
	Storage  BatchStorage  `json:"storage" yaml:"storage"`
}

type BatchEncoding struct {
	Format      string `json:"format" yaml:"format" env:"PGTARGET_BATCH_FORMAT" env-default:"jsonl" env-description:"batch file format; only jsonl"`
	Compression string `json:"compression" yaml:"compression" env:"PGTARGET_BATCH_COMPRESSION" env-default:"gzip" env-description:"gzip, zstd or none"`
}

type BatchStorage struct {
	Root string  `json:"root" yaml:"root" env:"PGTARGET_BATCH_ROOT" env-description:"directory relative file URLs resolve against"`
	S3   BatchS3 `json:"s3" yaml:"s3"`
}

type BatchS3 struct {
	Region    string `json:"region" yaml:"region" env:"PGTARGET_S3_REGION" env-description:"S3 region"`
	Endpoint  string `json:"endpoint" yaml:"endpoint" env:"PGTARGET_S3_ENDPOINT" env-description:"S3 endpoint for S3-compatible stores"`
	PathStyle bool   `json:"path_style" yaml:"path_style" env:"PGTARGET_S3_PATH_STYLE" env-default:"false" env-description:"use path-style S3 addressing"`
}

// Metrics selects the metrics backend.
type Metrics struct {
	Backend        string `json:"backend" yaml:"backend" env:"METRICS_BACKEND" env-description:"none, pushgateway or datadog"`
	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url" env:"PUSHGATEWAY_URL" env-description:"Prometheus Pushgateway base URL"`
	DatadogAddr    string `json:"datadog_addr" yaml:"datadog_addr" env:"DD_DOGSTATSD_ADDR" env-description:"DogStatsD address"`
	Job            string `json:"job" yaml:"job" env:"PGTARGET_METRICS_JOB" env-default:"pgtarget" env-description:"job label of every metric"`
}

// Load reads path with environment overrides. Without a path only the
// environment and the defaults are used.
func Load(path string) (*Target, error) {
	t := &Target{}
	if path == "" {
		if err := cleanenv.ReadEnv(t); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
		return t, nil
	}
	if err := cleanenv.ReadConfig(path, t); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return t, nil
}

// StorageKind maps the dialect onto a registered storage kind.
func (t Target) StorageKind() string {
	d := strings.ToLower(strings.TrimSpace(t.Dialect))
	switch d {
	case DialectPostgres, "postgres":
		return "postgres"
	case DialectSQLite, "sqlite3":
		return "sqlite"
	default:
		return d
	}
}
