package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"clothdonate/internal/infra"
	"clothdonate/internal/migrations"
)

func main() {
	var (
		dbURLFlag string
		listFlag  bool
	)
	flag.StringVar(&dbURLFlag, "database-url", "", "PostgreSQL URL (defaults to DATABASE_URL)")
	flag.BoolVar(&listFlag, "list", false, "print the embedded migrations and exit")
	flag.Parse()

	infra.LoadDotEnv()
	logger := infra.NewLogger("cli", "").With().Str("cmd", "migrate").Logger()

	if listFlag {
		names, err := migrations.Names(migrations.FS())
		if err != nil {
			exitWithError(err)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return
	}

	dbURL := strings.TrimSpace(dbURLFlag)
	if dbURL == "" {
		dbURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dbURL == "" {
		exitWithError(fmt.Errorf("DATABASE_URL is required"))
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("open database: %w", err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		exitWithError(fmt.Errorf("ping database: %w", err))
	}
	if err := migrations.Apply(ctx, db, migrations.FS(), logger); err != nil {
		exitWithError(err)
	}
	logger.Info().Msg("migrations applied")
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
