package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aussiebroadwan/supportchat/internal/auth/session"
	"github.com/aussiebroadwan/supportchat/internal/auth/store"
	"github.com/aussiebroadwan/supportchat/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/supportchat/internal/auth/vault"
	"github.com/aussiebroadwan/supportchat/pkg/authsdk"
	"github.com/aussiebroadwan/supportchat/pkg/cryptox"
	"github.com/aussiebroadwan/supportchat/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"

	// sealPurpose separates the store sealing key from other keys derived
	// from the same master key.
	sealPurpose = "secure-store"
)

// Application wires the auth core: secure store, API client, biometric vault
// and session controller.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db      *sqlite.Store
	client  *authsdk.SDKClient
	vault   *vault.Vault
	session *session.Controller
}

// New initialises every dependency. prompter is the platform biometric
// capability; nil means biometrics are unavailable on this host.
func New(cfg Config, prompter vault.Prompter) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "supportchat",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	master, err := cryptox.LoadOrCreateMasterKey(cfg.MasterKeyPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load master key: %w", err)
	}

	if err := app.initDatabase(master); err != nil {
		return nil, err
	}

	app.initClient()

	app.vault = vault.New(app.db, prompter, app.client)
	app.vault.DeviceName = cfg.DeviceName
	app.vault.DeviceModel = cfg.DeviceModel
	app.vault.KeySecret = master
	app.vault.Logger = app.logger.With("component", "vault")

	app.session = session.New(app.client, app.vault, app.db, session.Config{
		ValidationInterval: cfg.ValidationInterval,
		ResendInterval:     cfg.ResendInterval,
	}, app.logger.With("component", "session"))

	return app, nil
}

// initDatabase opens the sealed store and applies migrations
func (app *Application) initDatabase(master []byte) error {
	sealer, err := cryptox.NewSealer(master, sealPurpose)
	if err != nil {
		return fmt.Errorf("failed to create sealer: %w", err)
	}

	db, err := sqlite.NewStore(app.cfg.DatabasePath(), sealer, app.cfg.Namespace)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}
	if err := app.discardUnreadable(context.Background(), db); err != nil {
		_ = db.Close()
		return err
	}
	app.db = db

	app.logger.Debug("secure store ready", "path", app.cfg.DatabasePath())
	return nil
}

// discardUnreadable wipes a store sealed under another master key, which is
// what a lost or replaced key file leaves behind. Nothing in it can be opened,
// so the install starts signed out instead of failing every read.
func (app *Application) discardUnreadable(ctx context.Context, db *sqlite.Store) error {
	_, terr := db.Tokens().GetTokenPair(ctx)
	_, perr := db.Profiles().GetProfile(ctx)
	if !errors.Is(terr, store.ErrCorrupt) && !errors.Is(perr, store.ErrCorrupt) {
		return nil
	}

	n, err := db.Len(ctx)
	if err != nil {
		return fmt.Errorf("failed to inspect secure store: %w", err)
	}
	app.logger.Warn("secure store cannot be opened with the current master key, discarding", "records", n)

	if err := db.Wipe(ctx); err != nil {
		return fmt.Errorf("failed to discard unreadable secure store: %w", err)
	}
	return nil
}

func (app *Application) initClient() {
	app.client = authsdk.NewSDKClient(app.cfg.BaseURL, app.cfg.TenantID, authsdk.ClientInfo{
		AppName:      app.cfg.AppName,
		AppVersion:   app.cfg.AppVersion,
		AppType:      app.cfg.AppType,
		ClientSource: app.cfg.ClientSource,
		Platform:     app.cfg.Platform,
		DeviceName:   app.cfg.DeviceName,
		DeviceModel:  app.cfg.DeviceModel,
	})
	app.client.Timeout = app.cfg.RequestTimeout
	app.client.Logger = app.logger.With("component", "authsdk")
}

func (app *Application) Session() *session.Controller { return app.session }
func (app *Application) Client() *authsdk.SDKClient   { return app.client }
func (app *Application) Logger() *slog.Logger         { return app.logger }

// Close releases the controller and the store. Persisted state is kept.
func (app *Application) Close() error {
	var errs []error
	if app.session != nil {
		errs = append(errs, app.session.Close())
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
