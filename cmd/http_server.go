package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/procurement-workflow/internal"
	"github.com/frahmantamala/procurement-workflow/internal/auth"
	"github.com/frahmantamala/procurement-workflow/internal/core/events"
	"github.com/frahmantamala/procurement-workflow/internal/identity"
	"github.com/frahmantamala/procurement-workflow/internal/notify"
	"github.com/frahmantamala/procurement-workflow/internal/request"
	"github.com/frahmantamala/procurement-workflow/internal/request/kv"
	"github.com/frahmantamala/procurement-workflow/internal/store"
	"github.com/frahmantamala/procurement-workflow/internal/store/postgres"
	"github.com/frahmantamala/procurement-workflow/internal/transport"
	"github.com/frahmantamala/procurement-workflow/internal/transport/rest"
	"github.com/frahmantamala/procurement-workflow/internal/upload"
	"github.com/frahmantamala/procurement-workflow/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config *internal.Config
	DB     *sqlx.DB
	KV     store.KV
	Bus    *events.EventBus
	NATS   *nats.Conn
	Blobs  *upload.Store
	Router *chi.Mux
	Logger *slog.Logger
}

func startHTTPServer() {
	ctx := context.Background()
	deps, err := initializeDependencies(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server",
		"address", addr,
		"environment", deps.Config.Environment,
		"store", deps.Config.Store.Driver)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		deps.Close(ctx)
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

// Close drains in-flight events, then releases connections in reverse order of opening.
func (d *Dependencies) Close(ctx context.Context) {
	if d.Bus != nil {
		if err := d.Bus.Wait(ctx); err != nil {
			d.Logger.Warn("event handlers still running at shutdown", "error", err)
		}
	}
	if d.NATS != nil {
		if err := d.NATS.Drain(); err != nil {
			d.Logger.Error("NATS drain error", "error", err)
		}
	}
	if d.Blobs != nil {
		if err := d.Blobs.Close(); err != nil {
			d.Logger.Error("Upload bucket close error", "error", err)
		}
	}
	if d.KV != nil {
		if err := d.KV.Close(); err != nil {
			d.Logger.Error("Store close error", "error", err)
		}
	}
	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			d.Logger.Error("Database close error", "error", err)
		}
	}
}

func initializeDependencies(ctx context.Context) (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	lg := logger.LoggerWrapper()
	deps := &Dependencies{Config: config, Logger: lg}

	deps.KV, deps.DB, err = openStore(config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	deps.Bus = events.NewEventBus(lg)
	audit := events.AuditLogger(lg)
	for _, t := range events.RequestEventTypes {
		deps.Bus.Subscribe(t, audit)
	}
	if config.Events.NATSURL != "" {
		deps.NATS, err = events.ConnectNATS(config.Events.NATSURL, "procurement-workflow", lg)
		if err != nil {
			deps.Close(ctx)
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		events.NewForwarder(deps.NATS, config.Events.SubjectPrefix, lg).Register(deps.Bus, events.RequestEventTypes...)
	}

	deps.Blobs, err = upload.OpenStore(ctx, config.Uploads.BucketURL, config.Server.BaseURL)
	if err != nil {
		deps.Close(ctx)
		return nil, fmt.Errorf("failed to open upload bucket: %w", err)
	}

	notifier, err := newNotifier(config, lg)
	if err != nil {
		deps.Close(ctx)
		return nil, err
	}

	base := transport.NewBaseHandler(lg)
	tokens := newTokenService(config)
	gateway := auth.NewGateway(tokens, lg)
	authService := newAuthService(config, tokens, notifier, lg)
	requestService := request.NewService(kv.NewRequestRepository(deps.KV, lg), deps.Bus, lg)

	checks := map[string]rest.Pinger{"store": deps.KV}
	if deps.NATS != nil {
		nc := deps.NATS
		checks["nats"] = rest.PingFunc(func(context.Context) error {
			if !nc.IsConnected() {
				return fmt.Errorf("nats status %s", nc.Status())
			}
			return nil
		})
	}

	deps.Router = chi.NewRouter()
	rest.RegisterAllRoutes(deps.Router, rest.Handlers{
		Auth: auth.NewHandler(base, authService, gateway, auth.HandlerConfig{
			SuccessRedirect: config.Security.SuccessRedirect,
			LoginPath:       config.Security.LoginPath,
		}),
		Gateway: gateway,
		Request: request.NewHandler(base, requestService, config.Roles.OrganizationDomain),
		Upload:  upload.NewHandler(base, deps.Blobs, config.Uploads.MaxSize),
		Health:  rest.NewHealthHandler(checks),
	}, rest.RouterConfig{
		AllowedOrigins: internal.SplitList(config.Server.AllowedOrigins),
		OpenAPIPath:    config.Server.OpenAPIPath,
		DevRoutes:      !config.IsProduction(),
	}, lg)

	return deps, nil
}

// openStore picks the KV backend. The returned *sqlx.DB is nil unless the driver is postgres.
func openStore(cfg *internal.Config) (store.KV, *sqlx.DB, error) {
	var kvStore store.KV
	var db *sqlx.DB

	switch cfg.Store.Driver {
	case internal.StoreDriverRedis:
		client, err := store.NewRedisClient(cfg.Redis.URL, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		kvStore = store.NewRedisKV(client)
	case internal.StoreDriverPostgres:
		var err error
		db, err = initDB(cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		gdb, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("failed to open gorm: %w", err)
		}
		kvStore = postgres.NewKV(gdb)
	default:
		kvStore = store.NewMemoryKV()
	}

	return store.WithTimeout(kvStore, cfg.Store.Timeout), db, nil
}

func newNotifier(cfg *internal.Config, lg *slog.Logger) (auth.Notifier, error) {
	if !cfg.Email.SMTPEnabled() {
		lg.Warn("SMTP not configured, magic links will only be logged")
		return notify.NewLogNotifier(lg), nil
	}
	n, err := notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:            cfg.Email.SMTPHost,
		Port:            cfg.Email.SMTPPort,
		Username:        cfg.Email.SMTPUser,
		Password:        cfg.Email.SMTPPassword,
		From:            cfg.Email.From,
		TestingOverride: cfg.Email.TestingOverride,
		LinkTTL:         cfg.Security.MagicLinkTTL,
	}, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure SMTP: %w", err)
	}
	return n, nil
}

func newTokenService(cfg *internal.Config) *auth.TokenService {
	return auth.NewTokenService(auth.TokenConfig{
		MagicLinkSecret: cfg.Security.MagicLinkSecret,
		SessionSecret:   cfg.Security.SessionSecret,
		MagicLinkTTL:    cfg.Security.MagicLinkTTL,
		SessionTTL:      cfg.Security.SessionTTL,
	})
}

func newAuthService(cfg *internal.Config, tokens *auth.TokenService, notifier auth.Notifier, lg *slog.Logger) *auth.Service {
	resolver := identity.NewResolver(identity.RoleConfig{
		CEOEmails:               cfg.Roles.CEOEmails,
		PurchaserEmails:         cfg.Roles.PurchaserEmails,
		ExternalRequesterEmails: cfg.Roles.ExternalRequesterEmails,
		OrganizationDomain:      cfg.Roles.OrganizationDomain,
	})
	return auth.NewService(resolver, tokens, notifier, auth.NewEmailLimiter(cfg.Security.MagicLinkPerHour), auth.ServiceConfig{
		BaseURL:     cfg.Server.BaseURL,
		ExposeLinks: !cfg.IsProduction(),
	}, lg)
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}
