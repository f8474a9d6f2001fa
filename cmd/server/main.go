/*
main.go - Application entry point

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite store
  3. Wire coordinators, scanner, and query service
  4. Configure HTTP router and start the overdue scheduler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port           HTTP server port (default: 8080)
  -db             SQLite database path (default: register.db, ":memory:" works)
  -penalty-rate   Daily penalty per overdue barrel (default: 10)
  -sweep-interval How often the overdue sweep runs (default: 1h)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop the scheduler, drain active requests (30s
  timeout), close the database.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/barrel-register/api"
	"github.com/warp/barrel-register/register"
	"github.com/warp/barrel-register/store/sqlite"
)

func main() {
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "register.db", "SQLite database path")
	penaltyRate := flag.String("penalty-rate", "10", "daily penalty per overdue barrel")
	sweepInterval := flag.Duration("sweep-interval", time.Hour, "overdue sweep interval")
	flag.Parse()

	rate, err := decimal.NewFromString(*penaltyRate)
	if err != nil || rate.IsNegative() {
		log.Fatalf("Invalid penalty rate %q", *penaltyRate)
	}

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	notifier := register.LogNotifier{}
	assigner := register.NewAssignmentCoordinator(store, notifier)
	returner := register.NewReturnCoordinator(store, notifier, rate)
	scanner := register.NewOverdueScanner(store, rate)

	handler := api.NewHandler(store, assigner, returner, scanner)
	router := api.NewRouter(handler)

	scheduler := api.NewOverdueScheduler(scanner, *sweepInterval)
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Barrel register listening on http://localhost:%d/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
