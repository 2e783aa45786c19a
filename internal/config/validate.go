package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "batch.initial_size").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var drivers = map[string][]string{
	"postgres": {"pgx", "psycopg", "psycopg2"},
	"mysql":    {"mysql", "pymysql"},
	"mssql":    {"sqlserver", "mssql", "pymssql"},
	"sqlite":   {"sqlite", "pysqlite"},
}

// ValidateTarget performs static validation of a Target. It does not mutate
// t; callers decide whether warnings are fatal.
func ValidateTarget(t Target) []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, a ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	kind := t.StorageKind()
	known, ok := drivers[kind]
	if !ok {
		add(SeverityError, "dialect", "unknown dialect %q; want postgresql, sqlite, mysql or mssql", t.Dialect)
	} else if d := strings.ToLower(t.DriverType); d != "" && !contains(known, d) {
		add(SeverityWarning, "driver_type", "driver_type %q is not a %s driver; it is ignored", t.DriverType, kind)
	}

	if t.RawDSN == "" && ok {
		if kind == "sqlite" {
			if strings.TrimSpace(t.Database) == "" {
				add(SeverityError, "database", "sqlite needs database set to the file path")
			}
		} else {
			if strings.TrimSpace(t.Host) == "" {
				add(SeverityWarning, "host", "host is empty; localhost is used")
			}
			if strings.TrimSpace(t.Database) == "" {
				add(SeverityError, "database", "database must not be empty")
			}
		}
	}
	if t.Port < 0 || t.Port > 65535 {
		add(SeverityError, "port", "port %d is out of range", t.Port)
	}
	if kind == "sqlite" && t.DefaultTargetSchema != "" {
		add(SeverityWarning, "default_target_schema", "sqlite has no schemas; default_target_schema is ignored")
	}

	switch t.LoadMethod {
	case "insert", "upsert", "overwrite":
	default:
		add(SeverityError, "load_method", "load_method %q; want insert, upsert or overwrite", t.LoadMethod)
	}
	switch t.OnConflict {
	case "fail", "skip":
	default:
		add(SeverityError, "on_conflict", "on_conflict %q; want fail or skip", t.OnConflict)
	}
	if kind == "mssql" {
		if t.LoadMethod == "upsert" {
			add(SeverityError, "load_method", "upsert is not supported by mssql")
		}
		if t.OnConflict == "skip" {
			add(SeverityError, "on_conflict", "skip is not supported by mssql")
		}
	}

	issues = append(issues, validateBatch(t.Batch)...)
	issues = append(issues, validatePool(t.Pool)...)
	issues = append(issues, validateBatchConfig(t.BatchConfig)...)
	issues = append(issues, validateMetrics(t.Metrics)...)
	return issues
}

func validateBatch(b Batch) []Issue {
	var issues []Issue
	if b.InitialSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "batch.initial_size",
			Message:  fmt.Sprintf("initial_size=%d; must be positive", b.InitialSize),
		})
	}
	if b.TargetSeconds <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "batch.target_seconds",
			Message:  fmt.Sprintf("target_seconds=%g; must be positive", b.TargetSeconds),
		})
	}
	if b.MaxAgeSeconds < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "batch.max_age_seconds",
			Message:  "max_age_seconds must not be negative",
		})
	}
	return issues
}

func validatePool(p Pool) []Issue {
	var issues []Issue
	if p.MaxConns < 0 || p.MinConns < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "pool",
			Message:  "max_conns and min_conns must not be negative",
		})
	}
	if p.MaxConns > 0 && p.MinConns > p.MaxConns {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "pool.min_conns",
			Message:  fmt.Sprintf("min_conns=%d exceeds max_conns=%d", p.MinConns, p.MaxConns),
		})
	}
	return issues
}

func validateBatchConfig(b BatchConfig) []Issue {
	var issues []Issue
	if f := strings.ToLower(b.Encoding.Format); f != "" && f != "jsonl" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "batch_config.encoding.format",
			Message:  fmt.Sprintf("unsupported batch format %q; only jsonl is read", b.Encoding.Format),
		})
	}
	switch strings.ToLower(b.Encoding.Compression) {
	case "", "none", "gzip", "zstd":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "batch_config.encoding.compression",
			Message:  fmt.Sprintf("unsupported compression %q; want gzip, zstd or none", b.Encoding.Compression),
		})
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	var issues []Issue
	switch m.Backend {
	case "", "none":
	case "pushgateway":
		if m.PushgatewayURL == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "metrics.pushgateway_url",
				Message:  "pushgateway backend without pushgateway_url; http://localhost:9091 is used",
			})
		}
	case "datadog":
		if m.DatadogAddr == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.datadog_addr",
				Message:  "datadog backend needs datadog_addr",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; metrics are disabled", m.Backend),
		})
	}
	return issues
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}
