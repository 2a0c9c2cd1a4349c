package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/kungfukitty/project-angeL/internal/config"
	"github.com/kungfukitty/project-angeL/internal/domain/model"
	"github.com/kungfukitty/project-angeL/internal/domain/ports/repository"
	"github.com/kungfukitty/project-angeL/internal/infra/db/postgres"
)

// Sets up a clean, predictable database state for manual end-to-end testing
// against a Stripe test-mode account.
func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	schemaPath := flag.String("schema", "deploy/postgres/init.sql", "path to schema file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	pool, err := postgres.NewPgxPool(ctx, cfg.Database.URL, 5)
	if err != nil {
		log.Fatalf("postgres connection failed: %v", err)
	}
	defer pool.Close()

	log.Println("--- Starting E2E Environment Setup ---")

	log.Println("[1/3] Creating schema...")
	schema, err := os.ReadFile(*schemaPath)
	if err != nil {
		log.Fatalf("failed to read schema file %s: %v", *schemaPath, err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		log.Fatalf("failed to create schema: %v", err)
	}

	log.Println("[2/3] Wiping existing data...")
	_, err = pool.Exec(ctx, `TRUNCATE users, memberships RESTART IDENTITY CASCADE;`)
	if err != nil {
		log.Fatalf("failed to truncate tables: %v", err)
	}

	log.Println("[3/3] Seeding test user...")
	users := postgres.NewUserRepo(pool)
	u, err := model.NewUser("", "e2e@example.com", "E2E Tester")
	if err != nil {
		log.Fatalf("seed user: %v", err)
	}
	if err := users.Save(ctx, repository.NoTX, u); err != nil {
		log.Fatalf("failed to seed user: %v", err)
	}

	log.Printf("--- Setup complete. Test user id: %s ---", u.ID)
}
