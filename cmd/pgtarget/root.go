package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pgtarget/internal/batchfile"
	"pgtarget/internal/config"
	"pgtarget/internal/datasource"
	"pgtarget/internal/datasource/s3src"
	"pgtarget/internal/storage"

	// register all backends with the storage factory.
	_ "pgtarget/internal/storage/all"
)

var version = "dev"

type options struct {
	configPath     string
	input          string
	validate       bool
	about          bool
	logLevel       string
	logFormat      string
	metricsBackend string
	pushgatewayURL string
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	return execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

func execute(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdin, stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "pgtarget",
		Short:         "Singer target for SQL databases",
		Long:          "Reads Singer messages on stdin and loads the records into Postgres, SQLite, MySQL or SQL Server.",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.about {
				return writeAbout(stdout)
			}
			return run(cmd.Context(), opts, stdin, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "target config file (JSON or YAML); environment only when empty")
	f.StringVar(&opts.input, "input", "", "read messages from this file instead of stdin")
	f.BoolVar(&opts.validate, "validate", false, "validate the configuration and exit")
	f.BoolVar(&opts.about, "about", false, "print the supported settings as JSON and exit")
	f.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	f.StringVar(&opts.logFormat, "log-format", "json", "log format (json, console)")
	f.StringVar(&opts.metricsBackend, "metrics-backend", "", "metrics backend (none, pushgateway, datadog); overrides config")
	f.StringVar(&opts.pushgatewayURL, "pushgateway-url", "", "Pushgateway base URL; overrides config")
	return cmd
}

func run(ctx context.Context, opts options, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	issues := config.ValidateTarget(*cfg)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return errors.New("configuration is invalid")
	}
	if opts.validate {
		fmt.Fprintln(stderr, "configuration is valid")
		return nil
	}

	log, err := newLogger(opts.logLevel, opts.logFormat, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("run_id", uuid.NewString()))

	flush := setupMetrics(opts.metricsBackend, opts.pushgatewayURL, cfg.Metrics, log)
	defer flush()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	dsn, err := cfg.DSN()
	if err != nil {
		return err
	}
	kind := cfg.StorageKind()
	log.Info("connecting", zap.String("kind", kind), zap.String("dsn", config.Redact(dsn)))
	repo, err := storage.New(ctx, storage.Config{
		Kind:     kind,
		DSN:      dsn,
		MaxConns: cfg.Pool.MaxConns,
		MinConns: cfg.Pool.MinConns,
		Logger:   log,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", kind, err)
	}
	defer repo.Close()

	in := stdin
	if opts.input != "" {
		f, err := os.Open(opts.input)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	s3 := cfg.BatchConfig.Storage.S3
	opener := datasource.NewOpener(cfg.BatchConfig.Storage.Root, nil, s3src.Config{
		Region:       s3.Region,
		Endpoint:     s3.Endpoint,
		UsePathStyle: s3.PathStyle,
	})

	start := time.Now()
	r := newRunner(*cfg, repo, batchfile.NewReader(opener, log), stdout, log)
	if err := r.run(ctx, in); err != nil {
		log.Error("load failed", zap.Error(err))
		return err
	}
	log.Info("completed", zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)))
	return nil
}

type about struct {
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Version      string           `json:"version"`
	Capabilities []string         `json:"capabilities"`
	Dialects     []string         `json:"dialects"`
	Settings     []config.Setting `json:"settings"`
}

func writeAbout(w io.Writer) error {
	b, err := json.MarshalIndent(about{
		Name:         "pgtarget",
		Description:  "Singer target for Postgres, SQLite, MySQL and SQL Server",
		Version:      version,
		Capabilities: []string{"about", "batch", "target-schema", "validate"},
		Dialects:     storage.ListKinds(),
		Settings:     config.Settings(),
	}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
