package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"librarium-backend/internal/platform/db"
)

// Runs goose against the database from config/config.yaml.
// Usage: migrate [up|down|status|version|create <name>]
func main() {
	_ = godotenv.Load()

	cfg, err := db.LoadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	sdb, err := db.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer sdb.Close()

	if err := goose.SetDialect("mysql"); err != nil {
		log.Fatalf("set dialect: %v", err)
	}

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	const dir = "./migrations"

	switch command {
	case "up":
		if err := goose.Up(sdb, dir); err != nil {
			log.Fatalf("migrate up: %v", err)
		}
	case "down":
		if err := goose.Down(sdb, dir); err != nil {
			log.Fatalf("migrate down: %v", err)
		}
	case "status":
		if err := goose.Status(sdb, dir); err != nil {
			log.Fatalf("migrate status: %v", err)
		}
	case "version":
		v, err := goose.GetDBVersion(sdb)
		if err != nil {
			log.Fatalf("migrate version: %v", err)
		}
		log.Printf("version: %d", v)
	case "create":
		if len(os.Args) < 3 {
			log.Fatal("usage: migrate create <name>")
		}
		if err := goose.Create(sdb, dir, os.Args[2], "sql"); err != nil {
			log.Fatalf("migrate create: %v", err)
		}
	default:
		log.Fatalf("unknown command %q (up, down, status, version, create)", command)
	}
}
