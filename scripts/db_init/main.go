package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	dbfs "github.com/garnizeh/evalassign/db"
	"github.com/garnizeh/evalassign/internal/config"
	"github.com/garnizeh/evalassign/internal/db"
	"github.com/garnizeh/evalassign/internal/repository/sqlite"
	"github.com/garnizeh/evalassign/pkg/models"
	"github.com/garnizeh/evalassign/pkg/repository"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	adminEmail := flag.String("admin-email", os.Getenv("EVAL_ADMIN_EMAIL"), "Email of the admin account to create")
	adminPassword := flag.String("admin-password", os.Getenv("EVAL_ADMIN_PASSWORD"), "Password of the admin account to create")
	flag.Parse()

	ctx := context.Background()
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	database, err := db.New(ctx, cfg.DatabasePath, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DB init error: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	// run migrations and seed using internal/db.Migrate
	if err := db.Migrate(ctx, database, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		fmt.Fprintf(os.Stderr, "Migration runner error: %v\n", err)
		os.Exit(1)
	}

	if email := strings.TrimSpace(*adminEmail); email != "" {
		if *adminPassword == "" {
			fmt.Fprintln(os.Stderr, "admin password is required with an admin email")
			os.Exit(1)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*adminPassword), bcrypt.DefaultCost)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Hash error: %v\n", err)
			os.Exit(1)
		}
		repo := sqlite.New(database, nil)
		_, err = repo.CreateAdmin(ctx, &models.Admin{Email: email, PasswordHash: string(hash)})
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			fmt.Printf("Admin %s already exists.\n", email)
		case err != nil:
			fmt.Fprintf(os.Stderr, "Create admin error: %v\n", err)
			os.Exit(1)
		default:
			fmt.Printf("Admin %s created.\n", email)
		}
	}

	fmt.Println("Database initialized successfully.")
}
