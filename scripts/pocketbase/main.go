// Command pocketbase runs the PocketBase server that backs the attendance
// stores, with the collection migrations compiled in.
//
//	go run ./scripts/pocketbase serve
//	go run ./scripts/pocketbase migrate up
package main

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"

	_ "attendance-guard/migrations"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, using environment")
	}

	app := pocketbase.New()

	// generate migration files from admin UI changes only during development
	isGoRun := strings.HasPrefix(os.Args[0], os.TempDir())
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Dir:         "migrations",
		Automigrate: isGoRun,
	})

	if err := app.Start(); err != nil {
		log.Fatalf("❌ PocketBase failed: %v", err)
	}
}
