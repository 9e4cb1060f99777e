package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"shekkle/config"
	"shekkle/database"
	"shekkle/events"
	"shekkle/models"
	"shekkle/repository"
	"shekkle/service"
	"shekkle/worker"

	log "github.com/sirupsen/logrus"
)

// Services groups the ledger services handed to the chat adapter
type Services struct {
	Users       service.UserService
	Bets        service.BetService
	Wagers      service.WagerService
	Settlement  service.SettlementService
	Maintenance service.MaintenanceService
	Stats       service.StatsService
}

// NewServices builds every ledger service on top of one unit of work factory
func NewServices(uowFactory service.UnitOfWorkFactory, cfg *config.Config) *Services {
	return &Services{
		Users: service.NewUserService(uowFactory, service.UserSettings{
			StartingBalance:    cfg.StartingBalance,
			DailyClaimInterval: cfg.DailyClaimInterval,
		}),
		Bets:        service.NewBetService(uowFactory),
		Wagers:      service.NewWagerService(uowFactory),
		Settlement:  service.NewSettlementService(uowFactory),
		Maintenance: service.NewMaintenanceService(uowFactory),
		Stats:       service.NewStatsService(uowFactory),
	}
}

// ConfigureLogging applies the configured level and formatter to logrus
func ConfigureLogging(cfg *config.Config) {
	log.SetOutput(os.Stdout)

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithField("log_level", cfg.LogLevel).Warn("Unknown log level, falling back to info")
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// Run initializes and starts the application
func Run(ctx context.Context) error {
	// Load configuration
	cfg := config.Get()
	ConfigureLogging(cfg)

	log.Info("Starting shekkle ledger...")

	// Initialize database connection
	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("Database connection established successfully")

	// Initialize event bus
	eventBus := events.NewBus()
	NewAdminNotifier(cfg.AdminIDs).Subscribe(eventBus)

	// Initialize unit of work factory and services
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)
	services := NewServices(uowFactory, cfg)
	log.Info("Services initialized successfully")

	// Start the deadline sweeper
	stopSweeper := worker.NewDeadlineSweeper(services.Bets, cfg.SweepInterval).Start(ctx)

	// Wait for context cancellation
	log.Infof("Ledger is running in %s mode...", cfg.Environment)
	<-ctx.Done()

	// Cleanup resources
	log.Info("Shutting down...")
	stopSweeper()

	// Give cleanup operations time to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close database connection
	log.Info("Closing database connection...")
	db.Close()

	select {
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout exceeded")
	case <-time.After(1 * time.Second):
		log.Info("Shutdown completed")
	}

	return nil
}

// RunRefundLateWagers credits every wager placed after its bet's recorded cutoff
// that was never refunded. Safe to run repeatedly.
func RunRefundLateWagers(ctx context.Context) (*models.RefundReport, error) {
	cfg := config.Get()
	ConfigureLogging(cfg)

	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	uowFactory := repository.NewUnitOfWorkFactory(db, events.NewBus())

	report, err := service.NewMaintenanceService(uowFactory).RefundLateWagers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to refund late wagers: %w", err)
	}

	return report, nil
}
