package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/zatekoja/clinicflow/internal/adapters/database"
	"github.com/zatekoja/clinicflow/internal/api/middleware"
	"github.com/zatekoja/clinicflow/internal/domain/entities"
	"github.com/zatekoja/clinicflow/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/clinicflow/internal/infrastructure/observability"
	"github.com/zatekoja/clinicflow/pkg/config"
)

// Seeds a development database with a few patients and doctors and prints
// bearer tokens for one user of each role.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger("clinicflow-seed", "development")

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to DB")
	}
	defer pgClient.Close()

	ctx := context.Background()
	if err := database.Migrate(ctx, pgClient); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}

	directory := database.NewDirectoryAdapter(pgClient)

	patients := []*entities.Patient{
		{NationalID: "40112233", FullName: "Ana Quispe", Phone: "+51 987 654 321"},
		{NationalID: "40112234", FullName: "Luis Torres"},
		{NationalID: "40112235", FullName: "María Huamán", Phone: "+51 912 345 678"},
	}
	for _, p := range patients {
		if err := directory.UpsertPatient(ctx, p); err != nil {
			log.Fatal().Err(err).Str("national_id", p.NationalID).Msg("Failed to seed patient")
		}
		log.Info().Int64("id", p.ID).Str("name", p.FullName).Msg("Seeded patient")
	}

	doctors := []*entities.Doctor{
		{UserID: 110, FullName: "Dr. Rojas", Specialty: "Cardiology", IsActive: true},
		{UserID: 111, FullName: "Dra. Vega", Specialty: "Pediatrics", IsActive: true},
	}
	for _, d := range doctors {
		if err := directory.UpsertDoctor(ctx, d); err != nil {
			log.Fatal().Err(err).Int64("user_id", d.UserID).Msg("Failed to seed doctor")
		}
		log.Info().Int64("id", d.ID).Str("name", d.FullName).Msg("Seeded doctor")
	}

	if cfg.Auth.JWTSecret == "" {
		log.Warn().Msg("AUTH_JWT_SECRET not set, skipping development tokens")
		return
	}

	users := []struct {
		id   int64
		role entities.Role
	}{
		{1, entities.RoleAdmin},
		{2, entities.RoleReception},
		{doctors[0].UserID, entities.RoleDoctor},
		{doctors[1].UserID, entities.RoleDoctor},
	}
	for _, u := range users {
		token, err := middleware.IssueToken(cfg.Auth.JWTSecret, cfg.Auth.Issuer, u.id, u.role, jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(7 * 24 * time.Hour)),
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to sign token")
		}
		fmt.Printf("%-9s user=%d\n  %s\n", u.role, u.id, token)
	}
}
