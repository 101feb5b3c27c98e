// Package server wires configuration, storage, services and the gRPC
// endpoint together and runs them until the process is signalled.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/papervault/internal/common"
	"github.com/dmitrijs2005/papervault/internal/filestore"
	"github.com/dmitrijs2005/papervault/internal/logging"
	"github.com/dmitrijs2005/papervault/internal/server/config"
	"github.com/dmitrijs2005/papervault/internal/server/keys"
	"github.com/dmitrijs2005/papervault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/papervault/internal/server/services"

	gs "github.com/dmitrijs2005/papervault/internal/server/grpc"
)

// maxSessions bounds the number of unlocked private keys held in memory.
const maxSessions = 10_000

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	registry    *keys.Registry

	userService      *services.UserService
	vaultService     *services.VaultService
	accessService    *services.AccessService
	referenceService *services.ReferenceService
}

// seams for tests
var (
	openDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("pgx", dsn)
	}
	newRepositoryManager = repomanager.NewPostgresRepositoryManager
)

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := newRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	store, err := newStore(ctx, c)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	// an unlocked key lives as long as the refresh token that can renew the session
	registry, err := keys.NewRegistry(rm.Users(db), c.RefreshTokenValidityDuration, c.RSAKeyBits, maxSessions)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &App{
		config:           c,
		logger:           logger,
		db:               db,
		repomanager:      rm,
		registry:         registry,
		userService:      services.NewUserService(db, rm, registry, logger, c),
		vaultService:     services.NewVaultService(db, rm, services.NewEncryptionService(registry), store, logger, c),
		accessService:    services.NewAccessService(db, rm, logger),
		referenceService: services.NewReferenceService(db, rm),
	}, nil
}

func newStore(ctx context.Context, c *config.Config) (filestore.Store, error) {
	switch c.StorageBackend {
	case config.StorageLocal:
		ls, err := filestore.NewLocalStore(c.StorageRoot, c.MaxConcurrentIO)
		if err != nil {
			return nil, err
		}
		return ls, nil
	case config.StorageS3:
		ss, err := filestore.NewS3Store(ctx, filestore.S3Options{
			AccessKey: c.S3RootUser,
			SecretKey: c.S3RootPassword,
			Region:    c.S3Region,
			Endpoint:  c.S3BaseEndpoint,
			Bucket:    c.S3Bucket,
			Prefix:    c.S3Prefix,
		}, c.MaxConcurrentIO)
		if err != nil {
			return nil, err
		}
		return ss, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
}

// bootstrap seeds access control and the configured administrator. It runs
// before the endpoint accepts requests.
func (app *App) bootstrap(ctx context.Context) error {
	if app.config.SeedOnStart {
		if err := app.accessService.Seed(ctx, services.DefaultBootstrap()); err != nil {
			return fmt.Errorf("seed error: %w", err)
		}
	}

	name, password := app.config.AdminUserName, app.config.AdminPassword
	if name == "" || password == "" {
		return nil
	}

	admin, err := app.userService.GetByUserName(ctx, name)
	if errors.Is(err, common.ErrorNotFound) {
		admin, err = app.userService.Register(ctx, name, password)
	}
	if err != nil {
		return fmt.Errorf("admin account: %w", err)
	}

	if err := app.accessService.EnsureRole(ctx, admin.ID, services.RoleAdmin); err != nil {
		return fmt.Errorf("admin role: %w", err)
	}
	app.logger.Info(ctx, "admin account ready", "user_id", admin.ID)
	return nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, gs.Services{
		Users:     app.userService,
		Vault:     app.vaultService,
		Access:    app.accessService,
		Reference: app.referenceService,
	}, app.config.SecretKey, app.config.MaxPaperBytes)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// startReconciler removes orphaned files every ReconcileInterval.
func (app *App) startReconciler(ctx context.Context) {
	if app.config.ReconcileInterval <= 0 {
		return
	}

	ticker := time.NewTicker(app.config.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := app.vaultService.Reconcile(ctx); err != nil && ctx.Err() == nil {
				app.logger.Error(ctx, "reconcile failed", "error", err)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	defer app.db.Close()
	defer app.registry.Close()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if err := app.bootstrap(ctx); err != nil {
		app.logger.Error(ctx, "bootstrap failed", "error", err)
		return err
	}

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startReconciler(ctx)
	}()

	wg.Wait()

	app.logger.Info(ctx, "App stopped")
	return nil
}
