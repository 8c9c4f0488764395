package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/roach88/idocore/internal/allocation"
	"github.com/roach88/idocore/internal/api"
	"github.com/roach88/idocore/internal/broker"
	"github.com/roach88/idocore/internal/config"
	"github.com/roach88/idocore/internal/engine"
	"github.com/roach88/idocore/internal/metrics"
	"github.com/roach88/idocore/internal/resolver"
	"github.com/roach88/idocore/internal/scheduler"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string // overrides http.addr

	// RequestIDs overrides the request id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RequestIDs engine.RequestIDGenerator
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the engine and its HTTP API",
		Long: `Start the idocore engine behind its HTTP API.

The store, scheduler, broker and tier table come from the configuration
file (--config) and IDOCORE_* environment variables. With the broker
disabled, staking queries wait in an outbox served at
GET /api/v1/staking/queries and transfers are kept in memory.

Example:
  idocore serve --config ./idocore.yaml
  IDOCORE_DATABASE_DRIVER=memory idocore serve --addr :9090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides http.addr)")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.Addr != "" {
		cfg.HTTP.Addr = opts.Addr
	}
	log, err := newLogger(opts.RootOptions, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	// Use command's context if available (for testing)
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithField("driver", cfg.Database.Driver).Info("opening database")
	st, err := openStore(ctx, cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			log.WithError(closeErr).Error("error closing database")
		}
	}()

	tiers, err := tierEngine(cfg)
	if err != nil {
		return err
	}
	m := metrics.New("idocore")

	requestIDs := opts.RequestIDs
	if requestIDs == nil {
		requestIDs = engine.UUIDv7Generator{}
	}
	engOpts := []engine.Option{
		engine.WithTiers(tiers),
		engine.WithRequestIDs(requestIDs),
		engine.WithLogger(log.WithField("component", "engine")),
		engine.WithMetrics(m),
	}

	var (
		apiOpts   []api.Option
		consumers []*broker.Consumer
	)
	if cfg.Broker.Enabled {
		conn, err := broker.Dial(ctx, broker.DialConfig{
			URL:        cfg.Broker.URL,
			MaxRetries: cfg.Broker.MaxRetries,
			RetryDelay: cfg.Broker.RetryDelay,
		}, log.WithField("component", "broker"))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to connect to broker", err)
		}
		defer conn.Close()

		pubCh, err := conn.Channel()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open broker channel", err)
		}
		pub := broker.NewPublisher(pubCh, log.WithField("component", "publisher"))
		defer pub.Close()

		engOpts = append(engOpts,
			engine.WithDispatcher(broker.NewQueryDispatcher(pub, cfg.Broker.QueryQueue)),
			engine.WithSettlement(broker.NewSettlementPublisher(pub, cfg.Broker.SettlementQueue)),
		)

		subCh, err := conn.Channel()
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open broker channel", err)
		}
		consumer, err := broker.NewConsumer(subCh, cfg.Broker.ResolutionQueue, log.WithField("component", "consumer"))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to declare resolution queue", err)
		}
		defer consumer.Close()
		consumers = append(consumers, consumer)
	} else {
		outbox := resolver.NewOutbox()
		engOpts = append(engOpts,
			engine.WithDispatcher(outbox),
			engine.WithSettlement(allocation.NewLedger()),
		)
		apiOpts = append(apiOpts, api.WithOutbox(outbox))
		log.Warn("broker disabled: staking queries are served from the outbox and transfers stay in memory")
	}

	eng, err := engine.New(ctx, st, engOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start engine", err)
	}

	// The engine outlives ctx so queued operations drain after a signal.
	engineDone := make(chan error, 1)
	go func() {
		engineDone <- eng.Run(context.Background())
	}()
	defer func() {
		eng.Stop()
		if err := <-engineDone; err != nil {
			log.WithError(err).Error("engine stopped with error")
		}
		log.Info("engine stopped gracefully")
	}()

	for _, c := range consumers {
		go func(c *broker.Consumer) {
			err := c.Consume(ctx, broker.ResolutionHandler(eng.ResolverSink()))
			if err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("resolution consumer stopped")
			}
		}(c)
	}

	if cfg.Scheduler.Enabled {
		sched := scheduler.New(st, eng,
			scheduler.WithLogger(log.WithField("component", "scheduler")),
			scheduler.WithMetrics(m),
		)
		if err := sched.Start(ctx, cfg.Scheduler.Spec); err != nil {
			return WrapExitError(ExitCommandError, "failed to start scheduler", err)
		}
		defer sched.Stop()
	}

	apiOpts = append(apiOpts,
		api.WithMetrics(m),
		api.WithLogger(log.WithField("component", "api")),
	)
	if cfg.HTTP.RateLimit.RPS > 0 {
		apiOpts = append(apiOpts, api.WithRateLimit(api.RateLimitConfig{
			RequestsPerSecond: cfg.HTTP.RateLimit.RPS,
			Burst:             cfg.HTTP.RateLimit.Burst,
		}))
	}

	logServeStart(log, cfg)
	fmt.Fprintf(cmd.OutOrStdout(), "idocore listening on %s. Press Ctrl-C to stop.\n", cfg.HTTP.Addr)

	if err := api.New(eng, apiOpts...).Serve(ctx, cfg.HTTP.Addr); err != nil {
		return WrapExitError(ExitFailure, "http server error", err)
	}
	return nil
}

func logServeStart(log logrus.FieldLogger, cfg *config.Config) {
	log.WithFields(logrus.Fields{
		"addr":      cfg.HTTP.Addr,
		"driver":    cfg.Database.Driver,
		"broker":    cfg.Broker.Enabled,
		"scheduler": cfg.Scheduler.Enabled,
	}).Info("idocore starting")
}
