package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"shekkle/cmd"
	"shekkle/config"
	"shekkle/database"

	log "github.com/sirupsen/logrus"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "migrate":
			if err := handleMigrationCommand(); err != nil {
				log.Fatal("Migration error: ", err)
			}
			return
		case "maintenance":
			if err := handleMaintenanceCommand(); err != nil {
				log.Fatal("Maintenance error: ", err)
			}
			return
		}
	}

	// Normal operation
	ctx, cancel := signalContext()
	defer cancel()

	// Run the application
	if err := cmd.Run(ctx); err != nil {
		log.Fatal("Application error: ", err)
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	return ctx, cancel
}

func handleMigrationCommand() error {
	if len(os.Args) < 3 {
		return fmt.Errorf("usage: shekkle migrate [up|down|status] [args...]")
	}

	databaseURL := config.Get().GetDatabaseURL()

	command := os.Args[2]
	switch command {
	case "up":
		return database.MigrateUp(databaseURL)
	case "down":
		steps := "1"
		if len(os.Args) > 3 {
			steps = os.Args[3]
		}
		return database.MigrateDown(databaseURL, steps)
	case "status":
		return database.MigrateStatus(databaseURL)
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}
}

func handleMaintenanceCommand() error {
	if len(os.Args) < 3 || os.Args[2] != "refund-late" {
		return fmt.Errorf("usage: shekkle maintenance refund-late")
	}

	ctx, cancel := signalContext()
	defer cancel()

	report, err := cmd.RunRefundLateWagers(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Checked %d resolved bets, refunded %d wagers (%d total)\n",
		report.BetsChecked, report.WagersRefunded, report.TotalRefunded)
	return nil
}
