package database

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/uaifestas/festas-go/internal/apperr"
	"github.com/uaifestas/festas-go/internal/auth"
	"github.com/uaifestas/festas-go/internal/config"
	"github.com/uaifestas/festas-go/internal/models"
	"github.com/uaifestas/festas-go/internal/store"
)

// SeedPassword is the password of every seeded account.
const SeedPassword = "festas123"

func DSN(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
}

func Connect(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	level := gormlogger.Warn
	if cfg.AppEnv == "production" {
		level = gormlogger.Error
	}

	db, err := gorm.Open(postgres.Open(DSN(cfg)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Run migrations
	if err := models.Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("database connected and migrated",
		zap.String("host", cfg.DBHost),
		zap.String("database", cfg.DBName),
	)
	return db, nil
}

// SeedData creates a demo admin, a commissioner and one event with its
// products. It does nothing when the admin account already exists.
func SeedData(ctx context.Context, st store.Store, logger *zap.Logger) error {
	hashed, err := auth.HashPassword(SeedPassword)
	if err != nil {
		return err
	}

	seeded := false
	err = st.Tx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetUserByEmail("admin@uaifestas.com.br"); err == nil {
			return nil
		} else if !apperr.IsNotFound(err) {
			return err
		}

		admin := models.User{Email: "admin@uaifestas.com.br", Username: "admin", PasswordHash: hashed, Role: models.RoleAdmin}
		if err := tx.CreateUser(&admin); err != nil {
			return fmt.Errorf("failed to create admin: %w", err)
		}
		seller := models.User{Email: "vendedor@uaifestas.com.br", Username: "vendedor", PasswordHash: hashed, Role: models.RoleCommissioner}
		if err := tx.CreateUser(&seller); err != nil {
			return fmt.Errorf("failed to create commissioner: %w", err)
		}

		event := models.Event{
			Name:         "Arraiá Uai",
			Description:  "Festa junina com quadrilha, comidas típicas e forró ao vivo",
			Street:       "Av. João Naves de Ávila",
			Cep:          "38408-100",
			Neighborhood: "Santa Mônica",
			Number:       "2121",
			City:         "Uberlândia",
			EventDate:    parseDate("2026-06-20T20:00:00-03:00"),
			Status:       models.EventActive,
		}
		if err := tx.CreateEvent(&event); err != nil {
			return fmt.Errorf("failed to create event: %w", err)
		}
		if err := tx.AddMember(event.ID, admin.ID, models.MemberAdministrator); err != nil {
			return err
		}
		if err := tx.AddMember(event.ID, seller.ID, models.MemberCommissioner); err != nil {
			return err
		}

		pista, camarote := 500, 50
		products := []models.Product{
			{Name: "Pista", Description: "Acesso à área geral", Price: decimal.RequireFromString("40.00"), Stock: &pista, Status: models.ProductActive},
			{Name: "Camarote", Description: "Open bar e vista para o palco", Price: decimal.RequireFromString("150.00"), Stock: &camarote, Status: models.ProductActive},
			{Name: "Meia-entrada", Description: "Estudantes com carteirinha", Price: decimal.RequireFromString("20.00"), Status: models.ProductUnlimited},
		}
		for i := range products {
			products[i].EventID = event.ID
			if err := tx.CreateProduct(&products[i]); err != nil {
				return fmt.Errorf("failed to create product: %w", err)
			}
		}

		seeded = true
		return nil
	})
	if err != nil {
		return err
	}

	if seeded {
		logger.Info("sample data seeded")
	} else {
		logger.Info("data already seeded, skipping")
	}
	return nil
}

func parseDate(dateStr string) time.Time {
	t, _ := time.Parse(time.RFC3339, dateStr)
	return t
}
