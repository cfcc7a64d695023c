package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/buildtall-systems/gifticon/internal/auth"
	"github.com/buildtall-systems/gifticon/internal/config"
	"github.com/buildtall-systems/gifticon/internal/events"
	"github.com/buildtall-systems/gifticon/internal/fulfillment"
	"github.com/buildtall-systems/gifticon/internal/httpapi"
	"github.com/buildtall-systems/gifticon/internal/nostr"
	"github.com/buildtall-systems/gifticon/internal/share"
	"github.com/buildtall-systems/gifticon/internal/workflow"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gifticon service",
	Long:  `Start the gifticon HTTP service. Serves the catalog, takes payments and shares redemption codes.`,
	RunE:  runService,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runService(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithSecrets()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("gifticon starting",
		zap.String("version", version),
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("database", cfg.Database.Path),
	)

	store, database, err := openCatalog(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("opening catalog: %w", err)
	}
	var directory share.ContactDirectory = share.StaticDirectory(nil)
	if database != nil {
		defer func() { _ = database.Close() }()
		directory = database
	}

	tokens, closeTokens, err := newTokenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeTokens() }()
	manager := auth.NewManager(auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL), tokens, logger)

	var sender share.ContactSender
	if cfg.Nostr.SecretHex != "" {
		pool := nostr.NewRelayPool(cfg.Nostr.Relays, logger)
		if err := pool.Connect(ctx); err != nil {
			return fmt.Errorf("connecting to relays: %w", err)
		}
		defer pool.Close()

		s, err := nostr.NewSender(cfg.Nostr.SecretHex, pool)
		if err != nil {
			return fmt.Errorf("creating contact sender: %w", err)
		}
		logger.Info("contact delivery enabled", zap.String("pubkey", s.PublicKey()))
		sender = s
	}
	dispatcher := share.NewDispatcher(shareConfig(cfg), directory, sender, logger)
	defer dispatcher.Wait()

	gateway := newGateway(cfg, logger)
	minter := fulfillment.NewEncoder()

	g, gctx := errgroup.WithContext(ctx)

	var publisher *events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewPublisher(events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), logger)
		g.Go(func() error { return publisher.Run(gctx) })
		logger.Info("publishing order transitions", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	sessions := httpapi.NewSessions(func(subject string) *workflow.Workflow {
		opts := []workflow.Option{
			workflow.WithPaymentTimeout(cfg.Payment.Timeout),
			workflow.WithSession(manager.Session(subject)),
		}
		if publisher != nil {
			opts = append(opts, workflow.WithObserver(publisher.Observer(subject)))
		}
		return workflow.New(store, gateway, minter, dispatcher, logger.With(zap.String("subject", subject)), opts...)
	})

	server := httpapi.New(httpapi.Config{
		Addr:            cfg.HTTP.Addr,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		Brand:           cfg.Brand,
		Currency:        cfg.Currency,
	}, store, manager, sessions, logger)

	g.Go(server.Run)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		err := server.Shutdown()
		if publisher != nil {
			err = errors.Join(err, publisher.Close())
		}
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
