package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	dbfs "github.com/garnizeh/evalassign/db"
	"github.com/garnizeh/evalassign/internal/config"
	"github.com/garnizeh/evalassign/internal/db"
	"github.com/garnizeh/evalassign/internal/importer"
	"github.com/garnizeh/evalassign/internal/repository/sqlite"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	file := flag.String("file", "", "JSON export to import")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: db_import -file export.json [-config config.yaml]")
		os.Exit(2)
	}

	ctx := context.Background()
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	database, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DB error: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(ctx, database, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		fmt.Fprintf(os.Stderr, "Migration runner error: %v\n", err)
		os.Exit(1)
	}

	f, err := os.Open(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import error: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	sum, err := importer.New(sqlite.New(database, logger), logger).Import(ctx, f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import error: %v\n", err)
		os.Exit(1)
	}
	for _, e := range sum.Errors {
		fmt.Fprintf(os.Stderr, "  %v\n", e)
	}

	fmt.Printf("Import completed: imported=%v skipped=%v errors=%d\n", sum.Imported, sum.Skipped, len(sum.Errors))
}
