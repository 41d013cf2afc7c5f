package main

import (
	"log"
	"os"
	"time"

	database "github.com/pjanicki/RecurringLedger/db"
	"github.com/pjanicki/RecurringLedger/internal/recurring/application"
	"github.com/pjanicki/RecurringLedger/internal/recurring/infrastructure"
)

// One-shot materialization runner. An external scheduler (cron, systemd
// timer) invokes it once a day with the user IDs to process; the engine
// itself stays lazy and idempotent, so running it twice is harmless.
func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <user-id> [<user-id> ...]", os.Args[0])
	}

	dbService, err := database.NewDBService()
	if err != nil {
		log.Fatalf("Error initializing database service: %v", err)
	}
	defer func() {
		if err := dbService.Close(); err != nil {
			log.Printf("Error closing database connection: %v", err)
		}
	}()

	if health := dbService.Health(); health["status"] != "up" {
		log.Fatalf("Database is not healthy: %s", health["error"])
	}

	if err := dbService.RunMigrations(); err != nil {
		log.Fatalf("Error running migrations: %v", err)
	}

	ruleRepo := infrastructure.NewRuleRepository(dbService.DB)
	entryRepo := infrastructure.NewEntryRepository(dbService.DB)
	overrideRepo := infrastructure.NewOverrideRepository(dbService.DB)
	accountService := infrastructure.NewAccountLookupService(dbService.DB)
	categoryService := infrastructure.NewCategoryLookupService(dbService.DB)

	service := application.NewRecurringService(ruleRepo, entryRepo, overrideRepo, accountService, categoryService)

	now := time.Now().UTC()
	for _, userID := range os.Args[1:] {
		created, err := service.MaterializeUserRules(userID, now)
		if err != nil {
			log.Fatalf("Error materializing rules for user %s: %v", userID, err)
		}
		log.Printf("Materialized %d entries for user %s", created, userID)
	}
}
