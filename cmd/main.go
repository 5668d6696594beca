package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alert_console/internal/config"
	"alert_console/internal/control"
	"alert_console/internal/feed"
	"alert_console/internal/handlers"
	"alert_console/internal/logger"
	"alert_console/internal/repository"
	"alert_console/internal/repository/db"
	"alert_console/internal/server"
	"alert_console/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
)

const shutdownTimeout = 10 * time.Second

// @title        Alert Console API
// @version      1.0
// @description  Sensor alert classification, alert sessions and device control.
// @BasePath     /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:          "alert-console",
		Short:        "Alert classification and notification service for connected sensors",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default configs/config.yml)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cfgPath)
		},
	}
	root.AddCommand(serveCmd, newEvaluateCmd(&cfgPath))
	// bare invocation serves, like the binary always did
	root.RunE = serveCmd.RunE
	return root
}

// app holds everything serve starts so that it can be torn down in order.
type app struct {
	log      *logger.Logger
	db       *sql.DB
	redis    *redis.Client
	mqtt     *feed.MQTTIngest
	services *service.Service
	srv      *server.Server
}

func serve(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Get(logger.InfoLevel).Errorw("error reading config", "err", err)
		return err
	}
	log := logger.Init(cfg.Log.Level, cfg.Log.Format)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := wire(ctx, cfg, log)
	if err != nil {
		log.Errorw("startup failed", "err", err)
		return err
	}

	if cfg.Simulator.Enabled {
		go a.services.Simulator.Run(ctx, cfg.Simulator.Tick)
	}

	errCh := runHTTPServer(a.srv, cfg.Port, handlers.NewHandler(a.services, log), log)
	serveErr := waitForShutdown(errCh, log)

	cancel()
	return multierr.Append(serveErr, a.close())
}

// wire builds the dependency graph. On error everything opened so far is closed.
func wire(ctx context.Context, cfg *config.Config, log *logger.Logger) (_ *app, err error) {
	a := &app{log: log, srv: &server.Server{}}
	defer func() {
		if err != nil {
			err = multierr.Append(err, a.close())
		}
	}()

	a.db, err = openDB(cfg, log)
	if err != nil {
		return nil, err
	}
	repos := repository.NewRepository(a.db)
	broker := feed.NewBroker(cfg.Session.FeedBuffer, log)

	var emergencies feed.EmergencyPublisher
	if cfg.Redis.Enabled {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		relay := feed.NewRedisRelay(a.redis, cfg.Redis.ChannelPrefix, broker, log)
		go func() {
			if err := relay.Run(ctx); err != nil && ctx.Err() == nil {
				log.Errorw("redis relay stopped", "err", err)
			}
		}()
		emergencies = relay
	}

	if cfg.MQTT.Enabled {
		a.mqtt = feed.NewMQTTIngest(cfg.MQTT, broker, emergencies, log)
		if err = a.mqtt.Start(ctx); err != nil {
			a.mqtt = nil
			return nil, err
		}
	}

	a.services = service.NewService(service.Deps{
		Repos:       repos,
		Broker:      broker,
		Emergencies: emergencies,
		Backend:     control.NewClient(cfg.Backend, log),
		Config:      cfg,
		Log:         log,
	})
	return a, nil
}

// openDB initializes the SQLite database using configuration.
func openDB(cfg *config.Config, log *logger.Logger) (*sql.DB, error) {
	log.Infow("opening sqlite", "path", cfg.DB.Path)
	return db.InitDB(cfg.DB.Path)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Infow("http server starting", "port", port)
		errCh <- srv.Run(port, handler.InitRoutes())
	}()
	return errCh
}

// waitForShutdown blocks until a termination signal or a server failure.
func waitForShutdown(errCh <-chan error, log *logger.Logger) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Infow("shutting down server...", "signal", sig.String())
		return nil
	case err := <-errCh:
		if err != nil {
			log.Errorw("error starting server", "err", err)
		}
		return err
	}
}

// close stops the server first so no new sessions open, then ends the
// hijacked session streams before the stores they write to go away.
func (a *app) close() error {
	var errs error

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.srv.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
		errs = multierr.Append(errs, err)
	}
	if a.services != nil {
		errs = multierr.Append(errs, a.services.Close(ctx))
	}
	if a.mqtt != nil {
		a.mqtt.Stop()
	}
	if a.redis != nil {
		errs = multierr.Append(errs, a.redis.Close())
	}
	if a.db != nil {
		errs = multierr.Append(errs, a.db.Close())
	}
	if errs != nil {
		a.log.Errorw("shutdown finished with errors", "err", errs)
	} else {
		a.log.Infow("shutdown complete")
	}
	return errs
}
