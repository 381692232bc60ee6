package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kode4food/swfcatalog/internal/catalog"
	"github.com/kode4food/swfcatalog/internal/config"
	"github.com/kode4food/swfcatalog/internal/events"
	"github.com/kode4food/swfcatalog/internal/runtime"
	"github.com/kode4food/swfcatalog/internal/scheduler"
	"github.com/kode4food/swfcatalog/internal/server"
	"github.com/kode4food/swfcatalog/pkg/log"
)

type service struct {
	cfg         *config.Config
	logger      *slog.Logger
	broker      *events.Broker
	scheduler   *scheduler.Scheduler
	stopSched   context.CancelFunc
	sinks       *sinks
	closeReader func() error
	provider    *catalog.Provider
	apiServer   *server.Server
	httpServer  *http.Server
	launcher    *runtime.Launcher
	quit        chan os.Signal
	stopping    atomic.Bool
}

var (
	ErrCreateProvider  = errors.New("failed to create provider")
	ErrConnectProvider = errors.New("failed to connect provider")
	ErrStartRuntime    = errors.New("failed to start workflow runtime")
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the catalog provider and backend router",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			s := &service{
				cfg:    cfg,
				logger: setupLogging(cfg, cmd.OutOrStdout()),
				quit:   make(chan os.Signal, 1),
			}
			return s.run(cmd.Context())
		},
	}
}

func (s *service) run(ctx context.Context) error {
	s.logger.Info("Serverless workflow catalog starting")

	if err := s.startRuntime(); err != nil {
		return err
	}
	if err := s.initialize(ctx); err != nil {
		s.shutdown()
		return err
	}
	s.startServer()

	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.quit)
	<-s.quit

	s.shutdown()
	return nil
}

func (s *service) startRuntime() error {
	if s.cfg.RuntimeCommand == "" {
		return nil
	}
	s.launcher = runtime.NewLauncher(s.cfg.RuntimeCommand, "", s.logger)
	if err := s.launcher.Start(); err != nil {
		return fmt.Errorf("%w: %w", ErrStartRuntime, err)
	}
	go s.watchRuntime()
	return nil
}

// watchRuntime shuts the service down if the runtime exits on its own
func (s *service) watchRuntime() {
	err := s.launcher.Wait()
	if s.stopping.Load() {
		return
	}
	s.logger.Error("Workflow runtime exited unexpectedly", log.Error(err))
	select {
	case s.quit <- syscall.SIGTERM:
	default:
	}
}

func (s *service) initialize(ctx context.Context) error {
	s.broker = events.NewBroker(s.logger)
	s.broker.Start()

	s.scheduler = scheduler.NewSystem(s.logger)
	var schedCtx context.Context
	schedCtx, s.stopSched = context.WithCancel(context.Background())
	go s.scheduler.Run(schedCtx)

	var err error
	s.sinks, err = openSinks(ctx, s.cfg)
	if err != nil {
		return err
	}

	rd, closeReader, err := newReader(ctx, s.cfg, s.logger)
	if err != nil {
		return err
	}
	s.closeReader = closeReader

	s.provider, err = newProvider(s.cfg, rd, s.scheduler, s.logger)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateProvider, err)
	}

	notifier, err := catalog.NewNotifier(s.broker)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCreateProvider, err)
	}

	name := s.provider.GetProviderName()
	conn := catalog.Connect(name, s.sinks.list(notifier)...)

	s.provider.Register(s.broker)
	if err := s.provider.Connect(ctx, conn); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectProvider, err)
	}

	opts := server.Options{
		RuntimeURL:    s.cfg.ServiceURL,
		ScaffolderURL: s.cfg.ScaffolderURL,
		Provider:      name,
		Broker:        s.broker,
		Templates:     s.sinks.store,
		Providers:     s.sinks.store,
		Logger:        s.logger,
	}
	if s.sinks.archive != nil {
		opts.Archive = s.sinks.archive
	}
	s.apiServer, err = server.NewServer(opts)
	return err
}

func (s *service) startServer() {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.APIHost, s.cfg.APIPort),
		Handler: s.apiServer.SetupRoutes(),
	}

	go func() {
		s.logger.Info("HTTP server starting",
			slog.String("addr", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", log.Error(err))
			s.quit <- syscall.SIGTERM
		}
	}()
}

func (s *service) shutdown() {
	s.logger.Info("Shutting down")
	s.stopping.Store(true)

	ctx, cancel := context.WithTimeout(
		context.Background(), s.cfg.ShutdownTimeout,
	)
	defer cancel()

	if s.scheduler != nil {
		s.scheduler.Cancel(ctx, catalog.RefreshTaskID)
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("Shutdown failed", log.Error(err))
		}
	}
	if s.apiServer != nil {
		s.apiServer.CloseWebSockets()
	}

	if s.stopSched != nil {
		s.stopSched()
		s.scheduler.Wait()
	}
	if s.broker != nil {
		s.broker.Stop()
	}

	if s.launcher != nil {
		if err := s.launcher.Stop(ctx); err != nil {
			s.logger.Error("Runtime shutdown failed", log.Error(err))
		}
	}

	if s.closeReader != nil {
		_ = s.closeReader()
	}
	if s.sinks != nil {
		if err := s.sinks.Close(); err != nil {
			s.logger.Error("Sink shutdown failed", log.Error(err))
		}
	}

	s.logger.Info("Server exited")
}
