package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-sso/attachments"
	"github.com/jrsteele09/go-sso/broker"
	"github.com/jrsteele09/go-sso/brokerapp"
	"github.com/jrsteele09/go-sso/brokers"
	"github.com/jrsteele09/go-sso/internal/config"
	"github.com/jrsteele09/go-sso/internal/database"
	"github.com/jrsteele09/go-sso/localsession"
	"github.com/jrsteele09/go-sso/server"
	"github.com/jrsteele09/go-sso/sessionid"
	"github.com/jrsteele09/go-sso/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	accountsTable    = "accounts"
	defaultSQLiteDSN = "file:sso.db?_busy_timeout=5000"
	brokerCacheSize  = 256
	brokerCacheTTL   = time.Minute
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running server")
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return err
	}
	configureLogging(c)
	if err := config.Validate(c); err != nil {
		return err
	}
	displayAppname(c.GetAppName())

	ctx := context.Background()
	db, err := openDatabase(ctx, c)
	if err != nil {
		return err
	}
	defer db.Close()

	var handler http.Handler
	var closers []func() error
	switch c.GetMode() {
	case config.ModeBroker:
		handler, err = newBroker(ctx, c, db)
	default:
		handler, closers, err = newServer(ctx, c, db)
	}
	if err != nil {
		return err
	}
	defer func() {
		for _, closeFn := range closers {
			_ = closeFn()
		}
	}()

	srv := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- listenAndServe(srv, c.GetMode()) }()

	select {
	case err := <-errCh:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(srv)
}

func configureLogging(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func openDatabase(ctx context.Context, c config.Config) (*sql.DB, error) {
	dsn := c.GetDatabaseURL()
	if dsn == "" && c.GetDatabaseDriver() == database.DriverSQLite {
		dsn = defaultSQLiteDSN
	}
	return database.Open(ctx, c.GetDatabaseDriver(), dsn)
}

func newServer(ctx context.Context, c config.Config, db *sql.DB) (http.Handler, []func() error, error) {
	driver := c.GetDatabaseDriver()

	brokerRepo, err := brokers.NewSQLRepo(db, driver, c.GetBrokersTable())
	if err != nil {
		return nil, nil, err
	}
	if err := brokerRepo.Migrate(ctx); err != nil {
		return nil, nil, err
	}
	userRepo, err := users.NewSQLRepo(db, driver, accountsTable)
	if err != nil {
		return nil, nil, err
	}
	if err := userRepo.Migrate(ctx); err != nil {
		return nil, nil, err
	}

	var (
		attachmentRepo attachments.Repo
		closers        []func() error
	)
	switch c.GetAttachmentStore() {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: c.GetRedisAddr()})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("[main newServer] redis at %s: %w", c.GetRedisAddr(), err)
		}
		closers = append(closers, client.Close)
		attachmentRepo = attachments.NewRedisRepo(client, c.GetAttachmentTTL())
	default:
		attachmentRepo = attachments.NewInMemoryRepo(c.GetAttachmentTTL())
	}

	s, err := server.New(c, server.Repos{
		Brokers:     brokers.NewCachedRepo(brokerRepo, brokerCacheSize, brokerCacheTTL),
		Users:       userRepo,
		Attachments: attachmentRepo,
	})
	if err != nil {
		return nil, nil, err
	}
	return s, closers, nil
}

func newBroker(ctx context.Context, c config.Config, db *sql.DB) (http.Handler, error) {
	localUsers, err := broker.NewSQLUserRepository(db, c.GetDatabaseDriver(), c.GetUsersTable(), c.GetUsernameField())
	if err != nil {
		return nil, err
	}
	if err := localUsers.Migrate(ctx); err != nil {
		return nil, err
	}
	identity, err := sessionid.New(sessionid.Format(c.GetSessionIDFormat()))
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	b, err := broker.New(broker.Config{
		ServerURL:      c.GetServerURL(),
		Name:           c.GetBrokerName(),
		Secret:         c.GetBrokerSecret(),
		TokenLifetime:  c.GetTokenLifetime(),
		CommandTimeout: c.GetCommandTimeout(),
		RemoteField:    c.GetRemoteUsernameField(),
	}, localUsers,
		broker.WithLogger(log.Logger),
		broker.WithIdentity(identity),
		broker.WithMetrics(broker.NewMetrics(registry)),
		broker.WithRetry(broker.RetryPolicy{MaxTries: 3, InitialInterval: 100 * time.Millisecond, MaxInterval: time.Second}),
		broker.WithRedirectBearerHeader(c.GetRedirectBearerHeader()),
	)
	if err != nil {
		return nil, err
	}

	sessions := localsession.NewManager(localsession.NewInMemoryRepo(), brokerapp.SessionCookieName, c.GetMaxSessionAge(), c.GetSecureCookies())
	return brokerapp.New(b, sessions, registry,
		brokerapp.WithLogger(log.Logger),
		brokerapp.WithSecureCookies(c.GetSecureCookies()),
	), nil
}

func listenAndServe(server *http.Server, mode config.Mode) error {
	log.Info().Str("mode", string(mode)).Msgf("Server listening on %s", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
