package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	xoauth2 "golang.org/x/oauth2"
	_ "modernc.org/sqlite"

	"github.com/jrsteele09/go-auth-client/authclient"
	"github.com/jrsteele09/go-auth-client/credential"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/providertest"
	"github.com/jrsteele09/go-auth-client/session"
)

// sessiondemo runs the full credential lifecycle against a real token
// endpoint, or against the built-in test provider when AUTH_TOKEN_URL is
// unset, and logs every state transition.
func main() {
	if err := run(); err != nil {
		log.Fatalf("Error running session demo: %s\n", err)
	}
	log.Printf("Session demo stopped\n")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	_ = godotenv.Load()
	displayAppname("Session Demo")

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	c := config.New()

	clientConfig, username, password, providerClose := providerSettings(c, logger)
	defer providerClose()

	store, storeClose, err := newStore(c)
	if err != nil {
		return fmt.Errorf("store setup: %w", err)
	}
	defer storeClose()

	client, err := authclient.NewHTTPClient(clientConfig, authclient.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("authclient.NewHTTPClient: %w", err)
	}

	manager, err := session.NewManager(store, client,
		session.WithLogger(logger),
		session.WithTickInterval(c.GetTickInterval()),
		session.WithRenewalLeadTime(c.GetRenewalLeadTime()),
		session.WithRetryBackoff(c.GetRetryBackoff()),
	)
	if err != nil {
		return fmt.Errorf("session.NewManager: %w", err)
	}
	defer manager.Close()

	unsubscribe := manager.Subscribe(func(state session.State) {
		event := logger.Info().Str("status", string(state.Status)).Bool("authenticated", state.Authenticated())
		if !state.ExpiresAt.IsZero() {
			event = event.Time("expires_at", state.ExpiresAt)
		}
		if state.ErrorKind != "" {
			event = event.Str("error_kind", string(state.ErrorKind))
		}
		event.Msg("session state changed")
	})
	defer unsubscribe()

	ctx := context.Background()
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("manager.Start: %w", err)
	}

	if !manager.CurrentState().Authenticated() {
		if err := manager.Login(ctx, username, password); err != nil {
			logger.Error().Err(err).Msg("login failed")
		}
	}

	waitForStopSignal()
	return manager.Logout(ctx)
}

// providerSettings builds the authclient config from the environment, or
// boots the in-process test provider when no token URL is configured.
func providerSettings(c config.Config, logger zerolog.Logger) (authclient.Config, string, string, func()) {
	username := config.GetEnv("DEMO_USERNAME", "demo")
	password := config.GetEnv("DEMO_PASSWORD", "demo-password")

	if c.GetTokenURL() != "" {
		clientConfig := authclient.Config{
			Endpoint:       xoauth2.Endpoint{TokenURL: c.GetTokenURL()},
			RevocationURL:  c.GetRevocationURL(),
			ClientID:       c.GetClientID(),
			Scope:          c.GetScope(),
			RequestTimeout: c.GetRequestTimeout(),
		}
		return clientConfig, username, password, func() {}
	}

	logger.Info().Msg("AUTH_TOKEN_URL unset, using built-in test provider")
	provider := providertest.New()
	if err := provider.AddUser(username, password); err != nil {
		log.Fatalf("providertest.AddUser: %s\n", err)
	}
	provider.SetAccessTokenTTL(90 * time.Second)

	clientConfig := authclient.Config{
		Endpoint:       provider.Endpoint(),
		RevocationURL:  provider.RevocationURL(),
		ClientID:       c.GetClientID(),
		Scope:          c.GetScope(),
		RequestTimeout: c.GetRequestTimeout(),
	}
	return clientConfig, username, password, provider.Close
}

// newStore selects the credential store backend from configuration.
func newStore(c config.Config) (credential.Store, func(), error) {
	switch c.GetStoreBackend() {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: c.GetRedisAddr()})
		store, err := credential.NewRedisStore(rdb, c.GetRedisKey())
		return store, func() { _ = rdb.Close() }, err
	case "sqlite":
		sqlDB, err := sql.Open("sqlite", c.GetSQLitePath())
		if err != nil {
			return nil, func() {}, fmt.Errorf("sql.Open: %w", err)
		}
		db := bun.NewDB(sqlDB, sqlitedialect.New())
		store, err := credential.NewBunStore(db)
		return store, func() { _ = db.Close() }, err
	default:
		store, err := credential.NewFileStore(c.GetSessionFilePath())
		return store, func() {}, err
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
