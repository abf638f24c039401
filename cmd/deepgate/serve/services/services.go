// Package services assembles the long-lived components shared by the serve
// commands: logger, configuration store, upstream provider, usage storage,
// event publisher and the usage worker pool.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/viper"

	"github.com/papercomputeco/deepgate/pkg/config"
	"github.com/papercomputeco/deepgate/pkg/credentials"
	"github.com/papercomputeco/deepgate/pkg/eventstream"
	"github.com/papercomputeco/deepgate/pkg/eventstream/kafka"
	"github.com/papercomputeco/deepgate/pkg/eventstream/nop"
	"github.com/papercomputeco/deepgate/pkg/llm/provider"
	"github.com/papercomputeco/deepgate/pkg/llm/provider/deepseek"
	"github.com/papercomputeco/deepgate/pkg/logger"
	"github.com/papercomputeco/deepgate/pkg/storage"
	"github.com/papercomputeco/deepgate/pkg/storage/inmemory"
	"github.com/papercomputeco/deepgate/pkg/storage/postgres"
	"github.com/papercomputeco/deepgate/pkg/storage/sqlite"
	"github.com/papercomputeco/deepgate/proxy/worker"
)

// Options configures Build.
type Options struct {
	// ConfigDir overrides .deepgate/ resolution.
	ConfigDir string

	// Viper is the merged flag, environment and config.toml view. It is
	// re-read from disk whenever config.toml changes.
	Viper *viper.Viper

	Debug bool

	// Stdout receives human-readable logs. Defaults to os.Stdout.
	Stdout io.Writer
}

// Services are the shared components of a running deepgate.
type Services struct {
	Logger    *slog.Logger
	Store     *config.Store
	Provider  provider.Provider
	Driver    storage.Driver
	Publisher eventstream.Publisher
	Pool      *worker.Pool

	logFile     io.Closer
	cancelWatch context.CancelFunc
}

// Build creates every shared component. On error, anything already created
// is released.
func Build(ctx context.Context, opts Options) (_ *Services, err error) {
	if opts.Viper == nil {
		return nil, errors.New("viper is required")
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	s := &Services{}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	cfger, err := config.NewConfiger(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	creds, err := credentials.NewManager(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	initial := config.FromViper(opts.Viper)
	s.Logger, s.logFile = NewLogger(opts.Stdout, initial.Log, opts.Debug)

	s.Store, err = config.NewStore(config.StoreOptions{
		Load:       viperLoader(opts.Viper),
		Keys:       creds,
		ConfigPath: cfger.GetTarget(),
		Logger:     s.Logger,
	})
	if err != nil {
		return nil, err
	}

	cfg := s.Store.Snapshot()
	if cfg.Upstream.InsecureSkipVerify {
		s.Logger.Warn("TLS certificate verification toward the upstream API is disabled")
	}

	client := deepseek.New(DeepSeekOptions(cfg, s.Store))
	s.Provider = client
	s.Store.OnChange(func(_, updated config.Config) {
		client.Update(DeepSeekOptions(updated, s.Store))
		s.Logger.Info("upstream settings reloaded",
			"base_url", updated.Upstream.BaseURL,
			"default_model", updated.Upstream.DefaultModel,
		)
	})

	watchCtx, cancel := context.WithCancel(context.Background())
	s.cancelWatch = cancel
	if err := s.Store.Watch(watchCtx); err != nil {
		s.Logger.Warn("config hot reload disabled", "error", err)
	}

	s.Driver, err = NewStorageDriver(ctx, cfg.Usage, s.Logger)
	if err != nil {
		return nil, err
	}

	s.Publisher, err = NewPublisher(cfg.Events, s.Logger)
	if err != nil {
		return nil, err
	}

	s.Pool, err = worker.NewPool(&worker.Config{
		Driver:    s.Driver,
		Publisher: s.Publisher,
		Logger:    s.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}

	return s, nil
}

// Close drains the worker pool, then releases the publisher, the usage
// driver, the config watcher and the log file, in that order.
func (s *Services) Close() {
	if s.Pool != nil {
		s.Pool.Close()
	}
	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			s.Logger.Warn("closing event publisher", "error", err)
		}
	}
	if s.Driver != nil {
		if err := s.Driver.Close(); err != nil {
			s.Logger.Warn("closing usage storage", "error", err)
		}
	}
	if s.cancelWatch != nil {
		s.cancelWatch()
	}
	if s.logFile != nil {
		_ = s.logFile.Close()
	}
}

// NewLogger builds the service logger: pretty (or JSON) output on stdout,
// plus a rotating JSON file when a log file is configured. The returned
// closer is nil without a log file.
func NewLogger(stdout io.Writer, cfg config.LogConfig, debug bool) (*slog.Logger, io.Closer) {
	console := logger.New(
		logger.WithDebug(debug),
		logger.WithPretty(true),
		logger.WithJSON(cfg.JSON),
		logger.WithWriter(stdout),
	)

	if cfg.File == "" {
		return console, nil
	}

	file := logger.RotatingFile(cfg.File)
	return logger.Multi(console, logger.New(
		logger.WithDebug(debug),
		logger.WithJSON(true),
		logger.WithWriter(file),
	)), file
}

// DeepSeekOptions maps the configuration onto upstream client options.
func DeepSeekOptions(cfg config.Config, creds deepseek.CredentialSource) deepseek.Options {
	return deepseek.Options{
		BaseURL:            cfg.Upstream.BaseURL,
		DefaultModel:       cfg.Upstream.DefaultModel,
		DefaultTemperature: cfg.Defaults.Temperature,
		DefaultMaxTokens:   cfg.Defaults.MaxTokens,
		InsecureSkipVerify: cfg.Upstream.InsecureSkipVerify,
		Timeout:            cfg.Upstream.TimeoutDuration(),
		Credentials:        creds,
	}
}

// NewStorageDriver opens the configured usage storage backend.
func NewStorageDriver(ctx context.Context, cfg config.UsageConfig, log *slog.Logger) (storage.Driver, error) {
	switch cfg.Driver {
	case config.UsageDriverMemory, "":
		log.Info("using in-memory usage storage")
		return inmemory.NewDriver(), nil

	case config.UsageDriverSQLite:
		if cfg.SQLitePath == "" {
			return nil, errors.New("usage.sqlite_path is required for the sqlite usage driver")
		}
		driver, err := sqlite.NewSQLiteDriver(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite usage storage: %w", err)
		}
		log.Info("using SQLite usage storage", "path", cfg.SQLitePath)
		return driver, nil

	case config.UsageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("usage.postgres_dsn is required for the postgres usage driver")
		}
		driver, err := postgres.NewDriver(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL usage storage: %w", err)
		}
		log.Info("using PostgreSQL usage storage")
		return driver, nil

	default:
		return nil, fmt.Errorf("unknown usage driver: %q (supported: memory, sqlite, postgres)", cfg.Driver)
	}
}

// NewPublisher returns a Kafka publisher when brokers are configured, else
// a no-op publisher.
func NewPublisher(cfg config.EventsConfig, log *slog.Logger) (eventstream.Publisher, error) {
	brokers := kafka.ParseBrokers(cfg.KafkaBrokers)
	if len(brokers) == 0 {
		return nop.NewPublisher(), nil
	}

	pub, err := kafka.NewPublisher(kafka.Config{
		Brokers: brokers,
		Topic:   cfg.KafkaTopic,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}

	log.Info("publishing usage events to kafka",
		"brokers", brokers,
		"topic", cfg.KafkaTopic,
	)
	return pub, nil
}

// viperLoader re-reads config.toml into v and materializes the merged view.
// Bound flags and environment variables keep their precedence.
func viperLoader(v *viper.Viper) func() (*config.Config, error) {
	return func() (*config.Config, error) {
		if err := v.ReadInConfig(); err != nil {
			if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
		return config.FromViper(v), nil
	}
}
