package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jstittsworth/bracket-optimizer/internal/models"
	"github.com/jstittsworth/bracket-optimizer/internal/services"
	"github.com/jstittsworth/bracket-optimizer/pkg/config"
	"github.com/jstittsworth/bracket-optimizer/pkg/database"
	"github.com/jstittsworth/bracket-optimizer/pkg/logger"
	"github.com/sirupsen/logrus"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate [up|down|seed <forecasts.json>]")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())

	db, err := database.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	switch command := os.Args[1]; command {
	case "up":
		if err := db.AutoMigrate(models.All()...); err != nil {
			logrus.Fatalf("Failed to run migrations: %v", err)
		}
		logrus.Info("Migrations completed successfully")

	case "down":
		if err := db.Migrator().DropTable(models.All()...); err != nil {
			logrus.Fatalf("Failed to drop tables: %v", err)
		}
		logrus.Info("Tables dropped successfully")

	case "seed":
		if len(os.Args) < 3 {
			log.Fatal("Usage: migrate seed <forecasts.json>")
		}
		if err := seed(db, os.Args[2]); err != nil {
			logrus.Fatalf("Failed to seed data: %v", err)
		}

	default:
		log.Fatalf("Unknown command: %s", command)
	}
}

func seed(db *database.DB, path string) error {
	rows, err := models.ReadForecastFile(path)
	if err != nil {
		return err
	}

	dates, err := services.NewForecastStore(db).Upsert(context.Background(), rows)
	if err != nil {
		return fmt.Errorf("failed to store forecasts: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"rows":  len(rows),
		"dates": dates,
	}).Info("Forecasts seeded successfully")
	return nil
}
