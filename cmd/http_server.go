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
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/fleet-expense/internal"
	"github.com/frahmantamala/fleet-expense/internal/category"
	"github.com/frahmantamala/fleet-expense/internal/core/events"
	"github.com/frahmantamala/fleet-expense/internal/driver"
	driverPostgres "github.com/frahmantamala/fleet-expense/internal/driver/postgres"
	"github.com/frahmantamala/fleet-expense/internal/expense"
	expensePostgres "github.com/frahmantamala/fleet-expense/internal/expense/postgres"
	"github.com/frahmantamala/fleet-expense/internal/lookup"
	"github.com/frahmantamala/fleet-expense/internal/observability/metrics"
	"github.com/frahmantamala/fleet-expense/internal/ocrgateway"
	"github.com/frahmantamala/fleet-expense/internal/receipt"
	"github.com/frahmantamala/fleet-expense/internal/receipt/blob"
	receiptPostgres "github.com/frahmantamala/fleet-expense/internal/receipt/postgres"
	"github.com/frahmantamala/fleet-expense/internal/transport"
	"github.com/frahmantamala/fleet-expense/internal/transport/rest"
	"github.com/frahmantamala/fleet-expense/internal/vehicle"
	vehiclePostgres "github.com/frahmantamala/fleet-expense/internal/vehicle/postgres"
	"github.com/frahmantamala/fleet-expense/internal/workflow"
	"github.com/frahmantamala/fleet-expense/pkg/logger"
)

const receiptsPathPrefix = "/api/v1/receipts"

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config    *internal.Config
	DB        *sqlx.DB
	Gorm      *gorm.DB
	Mongo     *mongo.Client
	Router    *chi.Mux
	Handlers  rest.Handlers
	EventBus  *events.EventBus
	OCR       *ocrgateway.Client
	Workflow  *workflow.Service
	Logger    *slog.Logger
	closers []func()
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	log := deps.Logger

	if err := rest.RegisterAllRoutes(deps.Router, deps.Handlers, deps.Config, log); err != nil {
		log.Error("failed to register routes", "error", err)
		os.Exit(1)
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go deps.Workflow.Registry().Run(sweepCtx, time.Minute)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	log.Info("starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		log.Info("received signal, shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("server shutdown error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed to start", "error", err)
		}
	}

	stopSweep()
	deps.Close()
	log.Info("server stopped")
}

// Close releases everything opened by initializeDependencies, in reverse.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(config.Observability.Logging.Level, config.Observability.Logging.Format)
	log := logger.LoggerWrapper()

	deps := &Dependencies{
		Config: config,
		Logger: log,
		Router: chi.NewRouter(),
	}

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	deps.DB = db
	deps.closers = append(deps.closers, func() {
		if err := db.Close(); err != nil {
			log.Error("database close error", "error", err)
		}
	})

	gdb, err := initGorm(db)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}
	deps.Gorm = gdb

	mongoClient, err := blob.Connect(context.Background(), config.Receipts.MongoURI)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to connect receipt storage: %w", err)
	}
	deps.Mongo = mongoClient
	deps.closers = append(deps.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoClient.Disconnect(ctx); err != nil {
			log.Error("mongo disconnect error", "error", err)
		}
	})

	blobs, err := blob.NewGridFSStore(mongoClient.Database(config.Receipts.MongoDatabase), config.Receipts.Bucket)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to open receipt bucket: %w", err)
	}

	if config.Observability.Metrics.Enabled {
		metrics.Init(db.DB, log)
	}

	deps.EventBus = events.NewEventBus(log)
	deps.closers = append(deps.closers, deps.EventBus.Wait)

	var extractor receipt.Extractor
	if config.OCR.APIURL != "" {
		deps.OCR = ocrgateway.NewClient(ocrgateway.Config{
			APIURL:       config.OCR.APIURL,
			APIKey:       config.OCR.APIKey,
			Timeout:      config.OCR.Timeout,
			MaxWorkers:   config.OCR.Workers,
			JobQueueSize: config.OCR.QueueSize,
		}, log)
		extractor = deps.OCR
		deps.closers = append(deps.closers, deps.OCR.Shutdown)
	} else {
		log.Warn("ocr api_url is empty, receipts will not be prefilled")
	}

	driverService := driver.NewService(driverPostgres.NewDriverRepository(db), config.Workflow.SearchLimit, log)
	vehicleService := vehicle.NewService(vehiclePostgres.NewVehicleRepository(gdb), log)
	vehicleLookup := lookup.NewVehicleLookup(vehicleService, log)
	lookup.NewEventHandler(vehicleLookup, log).RegisterEventHandlers(deps.EventBus)

	expenseService := expense.NewService(
		expensePostgres.NewExpenseRepository(gdb),
		driverService,
		expense.NewListStore(),
		deps.EventBus,
		expense.ServiceConfig{
			DefaultPageSize: config.Listing.DefaultPageSize,
			MaxPageSize:     config.Listing.MaxPageSize,
			DefaultCurrency: config.Workflow.DefaultCurrency,
			DefaultType:     expense.Type(config.Workflow.DefaultType),
		},
		log,
	)
	expenseService.SetOdometerRecorder(vehicleService)

	receiptService := receipt.NewService(
		receiptPostgres.NewReceiptRepository(gdb),
		blobs,
		extractor,
		receipt.NewSigner(config.Receipts.SigningSecret, config.Receipts.URLTTL, receiptsPathPrefix),
		deps.EventBus,
		receipt.ServiceConfig{
			MaxUploadBytes:      config.Receipts.MaxUploadBytes,
			ConfidenceThreshold: config.Workflow.ConfidenceThreshold,
		},
		log,
	)

	deps.Workflow = workflow.NewService(driverService, vehicleLookup, receiptService, expenseService, workflow.Config{
		SearchDebounce:  config.Workflow.SearchDebounce,
		PrefillPolicy:   workflow.PrefillPolicy(config.Workflow.PrefillPolicy),
		DefaultCurrency: config.Workflow.DefaultCurrency,
		DefaultType:     expense.Type(config.Workflow.DefaultType),
		DraftTTL:        config.Workflow.DraftTTL,
	}, log)
	if config.Observability.Metrics.Enabled {
		metrics.RegisterDraftGauge(deps.Workflow.Registry().Len)
	}

	base := transport.NewBaseHandler(log)
	deps.Handlers = rest.Handlers{
		Health: rest.NewHealthHandler(map[string]rest.Checker{
			"postgres": db.PingContext,
			"receipts": func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
		}),
		Category: category.NewHandler(base),
		Expense:  expense.NewHandler(base, expenseService),
		Driver:   driver.NewHandler(base, driverService, vehicleLookup),
		Vehicle:  vehicle.NewHandler(base, vehicleService),
		Receipt:  receipt.NewHandler(base, receiptService, config.Receipts.MaxUploadBytes),
		Workflow: workflow.NewHandler(base, deps.Workflow, config.Receipts.MaxUploadBytes),
	}

	return deps, nil
}

// initDB opens the pgx-backed pool shared by sqlx and gorm.
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driverName = "pgx"

	dbConn, err := sqlx.Connect(driverName, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
	})
}
