//cmd/seeder/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/unclebandit/leadflow-backend/internal/config"
	"github.com/unclebandit/leadflow-backend/internal/db"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	backend, err := db.NewBackend(cfg)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	conn, err := db.Connect(ctx, backend)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	dir := seedDir(backend.Name(), os.Args[1:])
	if err := db.Seed(ctx, backend, conn, os.DirFS(dir)); err != nil {
		log.Fatalf("failed to seed from %s: %v", dir, err)
	}

	fmt.Println("Database seeding completed successfully!")
}

// seedDir returns the first arg when given, otherwise the default seed
// directory for driver.
func seedDir(driver string, args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return filepath.Join("seed", driver)
}
