// Package cli implements storectl, the operator CLI for the store engine.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/EladReuveny/electronics-store-api/internal/app"
	"github.com/EladReuveny/electronics-store-api/internal/config"
	"github.com/EladReuveny/electronics-store-api/internal/event"
	"github.com/EladReuveny/electronics-store-api/internal/service"
	pkgconfig "github.com/EladReuveny/electronics-store-api/pkg/config"
	apperrors "github.com/EladReuveny/electronics-store-api/pkg/errors"
	pkgkafka "github.com/EladReuveny/electronics-store-api/pkg/kafka"
	"github.com/EladReuveny/electronics-store-api/pkg/logger"
)

// Options configures a root command.
type Options struct {
	Out io.Writer
	Err io.Writer
	// Env replaces the process environment when non-nil.
	Env map[string]string
	// Store skips OpenStore when set. The caller owns it.
	Store *app.Store
	// Publisher overrides the Kafka-backed publisher.
	Publisher service.EventPublisher
}

// session is the state shared by subcommands for one invocation.
type session struct {
	opts     Options
	cfg      *config.Config
	logger   *slog.Logger
	store    *app.Store
	engine   *app.Engine
	producer *pkgkafka.Producer
	ownStore bool
}

// Execute runs storectl against the process environment.
func Execute() error {
	return NewRootCommand(Options{}).Execute()
}

// NewRootCommand builds the storectl command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	s := &session{opts: opts}

	var (
		storeFlag    string
		logLevelFlag string
	)

	root := &cobra.Command{
		Use:           "storectl",
		Short:         "Operate the electronics store engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return s.open(cmd.Context(), storeFlag, logLevelFlag)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			s.close()
			return nil
		},
	}
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)
	root.PersistentFlags().StringVar(&storeFlag, "store", "", "store backend (postgres or memory), overrides STORE")
	root.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level, overrides LOG_LEVEL")

	root.AddCommand(
		newMigrateCommand(s),
		newSeedCommand(s),
		newProductsCommand(s),
		newProvisionCommand(s),
		newOrdersCommand(s),
	)
	return root
}

func (s *session) open(ctx context.Context, storeFlag, logLevelFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var loadOpts []pkgconfig.Option
	if s.opts.Env != nil {
		loadOpts = append(loadOpts, pkgconfig.WithEnvironment(s.opts.Env))
	}
	cfg, err := config.Load(loadOpts...)
	if err != nil {
		return err
	}
	if storeFlag != "" {
		cfg.Store = storeFlag
	}
	if logLevelFlag != "" {
		cfg.LogLevel = logLevelFlag
	}
	// Schema changes only happen through the migrate command.
	cfg.RunMigrations = false
	s.cfg = cfg
	s.logger = logger.NewWithWriter("storectl", cfg.LogLevel, s.opts.Err)

	s.store = s.opts.Store
	if s.store == nil {
		if cfg.Store != config.StorePostgres && cfg.Store != config.StoreMemory {
			return fmt.Errorf("invalid store %q", cfg.Store)
		}
		store, err := app.OpenStore(ctx, cfg, s.logger)
		if err != nil {
			return err
		}
		s.store = store
		s.ownStore = true
	}

	publisher := s.opts.Publisher
	if publisher == nil {
		publisher = event.NoopPublisher{}
		if cfg.KafkaEnabled {
			s.producer = pkgkafka.NewProducer(pkgkafka.ProducerConfig{Brokers: cfg.KafkaBrokers}, s.logger)
			publisher = event.NewProducer(s.producer, s.logger)
		}
	}
	s.engine = app.NewEngine(s.store, publisher, cfg.CancellationWindow(), s.logger)
	return nil
}

func (s *session) close() {
	if s.producer != nil {
		if err := s.producer.Close(); err != nil {
			s.logger.Warn("close kafka producer", slog.String("error", err.Error()))
		}
		s.producer = nil
	}
	if s.ownStore && s.store != nil {
		s.store.Close()
		s.store = nil
	}
}

// print writes v as indented JSON.
func (s *session) print(v any) error {
	enc := json.NewEncoder(s.opts.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(kind, raw string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", apperrors.InvalidInput(fmt.Sprintf("invalid %s id %q", kind, raw))
	}
	return id.String(), nil
}
