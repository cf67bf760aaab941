package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"potholewatch/internal/repository/sqlite"
)

func main() {
	dbPath := flag.String("db", "data/potholes.db", "Database path")
	force := flag.Int("force", -1, "Force the schema version (only with the force command)")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-db path] up|down|version|force\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	command := "up"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	// Ensure database directory exists
	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := sqlite.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	switch command {
	case "up":
		if err := db.MigrateUp(); err != nil {
			log.Fatalf("❌ %v", err)
		}
	case "down":
		if err := db.MigrateDown(); err != nil {
			log.Fatalf("❌ %v", err)
		}
	case "force":
		if *force < 0 {
			log.Fatalf("force requires -force=<version>")
		}
		if err := db.MigrateForce(*force); err != nil {
			log.Fatalf("❌ %v", err)
		}
	case "version":
	default:
		flag.Usage()
		os.Exit(2)
	}

	version, dirty, err := db.MigrateVersion()
	if err != nil {
		log.Fatalf("Failed to read schema version: %v", err)
	}
	fmt.Printf("✅ %s: schema version %d (dirty: %t)\n", *dbPath, version, dirty)
}
