package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/sujit-maker/move-sub000/migrations"
)

// Usage: migrate [-dir path] [up|down|status|version]
// Without -dir the migrations compiled into the binary are used.
func main() {
	_ = godotenv.Load()

	dir := flag.String("dir", "", "migrations directory on disk")
	flag.Parse()

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	source := *dir
	if source == "" {
		goose.SetBaseFS(migrations.FS)
		source = "."
	}
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("goose dialect: %v", err)
	}

	if err := goose.RunContext(context.Background(), command, db, source, flag.Args()[min(1, flag.NArg()):]...); err != nil {
		log.Fatalf("goose %s: %v", command, err)
	}
}
