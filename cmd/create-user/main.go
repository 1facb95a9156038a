package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/fieldworkbook/backend/internal/users"
	"github.com/fieldworkbook/backend/pkg/config"
	"github.com/fieldworkbook/backend/pkg/db"
	"github.com/fieldworkbook/backend/pkg/env"
	pkgerrors "github.com/fieldworkbook/backend/pkg/errors"
	"github.com/fieldworkbook/backend/pkg/logger"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "create-user"})

	_ = godotenv.Load()

	username := flag.String("username", "", "admin username")
	fullName := flag.String("full-name", "", "admin full name")
	email := flag.String("email", "", "admin email (optional)")
	password := flag.String("password", env.Get("FWB_BOOTSTRAP_PASSWORD", ""), "admin password; a temporary one is generated when empty")
	flag.Parse()

	if strings.TrimSpace(*username) == "" || strings.TrimSpace(*fullName) == "" {
		fmt.Fprintln(os.Stderr, "usage: create-user -username <name> -full-name <name> [-email <email>] [-password <password>]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "create-user",
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	svc, err := users.NewService(users.ServiceParams{
		Repo:           users.NewRepository(dbClient.DB()),
		Tx:             dbClient,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	requireResource(ctx, logg, "user service", err)

	input := users.CreateInput{
		Username: *username,
		Password: *password,
		FullName: *fullName,
	}
	if trimmed := strings.TrimSpace(*email); trimmed != "" {
		input.Email = &trimmed
	}

	result, err := svc.CreateAdmin(ctx, input)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			fmt.Fprintf(os.Stderr, "create admin failed: %s\n", typed.Message())
		} else {
			fmt.Fprintf(os.Stderr, "create admin failed: %v\n", err)
		}
		os.Exit(1)
	}

	fmt.Printf("created admin %s (%s)\n", result.User.Username, result.User.ID)
	if result.TemporaryPassword != "" {
		fmt.Printf("temporary password: %s\n", result.TemporaryPassword)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
