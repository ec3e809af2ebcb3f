package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/foodgram/pkg/foodgram/auth"
	"github.com/mikepea/foodgram/pkg/foodgram/config"
	"github.com/mikepea/foodgram/pkg/foodgram/database"
	"github.com/mikepea/foodgram/pkg/foodgram/importexport"
	"github.com/mikepea/foodgram/pkg/foodgram/logging"
	"github.com/mikepea/foodgram/pkg/foodgram/media"
	"github.com/mikepea/foodgram/pkg/foodgram/models"
	"github.com/mikepea/foodgram/pkg/foodgram/pagination"
	"github.com/mikepea/foodgram/pkg/foodgram/server"
	"github.com/mikepea/foodgram/pkg/foodgram/validation"
	"gorm.io/gorm"
)

// @title Foodgram API
// @version 1.0
// @description Recipe sharing: publish recipes, follow authors, keep favorites and build a shopping list.

// @contact.name Foodgram Support
// @contact.url https://github.com/mikepea/foodgram

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token. Format: "Token {token}" or "Bearer {token}"

func main() {
	loadIngredients := flag.String("load-ingredients", "", "import an ingredient catalog (.json or .csv) and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Caller: cfg.Log.Caller,
	})
	gin.SetMode(cfg.Server.Mode)
	auth.Configure(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	pagination.Configure(cfg.Pagination.DefaultLimit, cfg.Pagination.MaxLimit)
	if err := validation.RegisterGin(); err != nil {
		logging.Fatal().Err(err).Msg("Failed to register validators")
	}

	db, err := database.Connect(cfg.Database.Driver, cfg.Database.DSN, cfg.Log.Level)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to database")
	}

	if err := models.AutoMigrate(db); err != nil {
		logging.Fatal().Err(err).Msg("Failed to run migrations")
	}
	logging.Info().Msg("Database migrations completed")

	if *loadIngredients != "" {
		if err := importIngredients(db, *loadIngredients); err != nil {
			logging.Fatal().Err(err).Str("path", *loadIngredients).Msg("Failed to load ingredients")
		}
		return
	}

	// Create default admin user if no admin exists
	if err := ensureAdminExists(db, cfg.Auth); err != nil {
		logging.Fatal().Err(err).Msg("Failed to ensure admin user exists")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := media.New(ctx, cfg.Media)
	if err != nil {
		logging.Fatal().Err(err).Str("backend", cfg.Media.Backend).Msg("Failed to initialise media storage")
	}

	srv := server.New(server.Deps{Config: cfg, DB: db, Storage: storage})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logging.Fatal().Err(err).Msg("Server failed")
		}
	case <-ctx.Done():
		logging.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}
}

// importIngredients loads a catalog file into the ingredients table.
func importIngredients(db *gorm.DB, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var records []importexport.Record
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		records, err = importexport.ParseCSV(f)
	} else {
		records, err = importexport.ParseJSON(f)
	}
	if err != nil {
		return err
	}

	result, err := importexport.NewImporter(db).Import(context.Background(), records)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		logging.Warn().Str("path", path).Msg(msg)
	}
	logging.Info().
		Int("imported", result.Imported).
		Int("skipped", result.Skipped).
		Msg("Ingredient catalog loaded")
	return nil
}

// ensureAdminExists creates a default admin user if no admin exists in the database.
func ensureAdminExists(db *gorm.DB, cfg config.AuthConfig) error {
	var count int64
	if err := db.Model(&models.User{}).Where("system_role = ?", models.SystemRoleAdmin).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		return nil // Admin already exists
	}

	hashedPassword, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	adminUser := models.User{
		Email:        cfg.AdminEmail,
		Username:     cfg.AdminUsername,
		FirstName:    "Admin",
		LastName:     "Admin",
		PasswordHash: hashedPassword,
		SystemRole:   models.SystemRoleAdmin,
	}

	if err := db.Create(&adminUser).Error; err != nil {
		return err
	}

	logging.Warn().
		Str("email", adminUser.Email).
		Msg("Created default admin user; change its password")
	return nil
}
