package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"
	"timetrack/internal/platform/config"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var DB *sql.DB

func Connect() {
	var err error
	DB, err = sql.Open("pgx", config.AppConfig.DBConnStr)
	if err != nil {
		log.Fatal().Err(err).Msg("error opening database")
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Verify connection
	if err = DB.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("error connecting to database")
	}
	if err = RunMigrations(ctx, DB); err != nil {
		log.Fatal().Err(err).Msg("error applying migrations")
	}

	log.Info().Str("host", config.AppConfig.DBHost).Msg("connected to PostgreSQL")
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

func Close() {
	if DB != nil {
		DB.Close()
		log.Info().Msg("database connection closed")
	}
}
