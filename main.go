package main

import (
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/naywayne90/sygfp-artis-g-re-sub010/config"
	"github.com/naywayne90/sygfp-artis-g-re-sub010/internal/engine"
	"github.com/naywayne90/sygfp-artis-g-re-sub010/internal/handlers"
	"github.com/naywayne90/sygfp-artis-g-re-sub010/internal/routes"
	"github.com/naywayne90/sygfp-artis-g-re-sub010/models"
)

func main() {
	config.LoadSecrets()
	config.ConnectDB()
	config.ConnectRedis()

	if err := migrate(); err != nil {
		slog.Error("Database migration failed", "error", err)
		os.Exit(1)
	}
	if err := seed(); err != nil {
		slog.Error("Database seeding failed", "error", err)
		os.Exit(1)
	}

	handlers.Init(engine.New(config.DB, &engine.DBCapabilities{DB: config.DB}, engine.GormAuditSink{}))
	go handlers.GlobalHub.Run()

	r := gin.Default()
	routes.SetupRoutes(r)

	addr := config.ServerAddr()
	slog.Info("Server starting", "addr", addr)
	if err := r.Run(addr); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func migrate() error {
	return config.DB.AutoMigrate(
		&models.User{}, &models.Role{}, &models.Permission{},
		&models.LigneBudgetaire{}, &models.AjustementDotation{},
		&models.Dossier{},
		&models.Engagement{}, &models.Liquidation{},
		&models.Ordonnancement{}, &models.Reglement{},
		&models.Marche{}, &models.Soumissionnaire{},
		&models.JournalAudit{}, &models.CompteurReference{},
	)
}

// seed installs the base permissions, the admin role and, on an empty user
// table, the bootstrap admin account. Idempotent.
func seed() error {
	type perm struct{ name, category string }
	var perms []perm

	chainActions := []string{"creer", "modifier", "soumettre", "verifier", "valider", "rejeter", "differer", "reprendre"}
	for _, typeDoc := range []string{models.TypeEngagement, models.TypeLiquidation} {
		for _, action := range chainActions {
			perms = append(perms, perm{typeDoc + "_" + action, typeDoc})
		}
	}
	for _, action := range []string{"creer", "modifier", "soumettre", "viser", "valider", "rejeter", "differer", "reprendre"} {
		perms = append(perms, perm{models.TypeOrdonnancement + "_" + action, models.TypeOrdonnancement})
	}
	for _, action := range []string{"enregistrer", "annuler", "rejeter"} {
		perms = append(perms, perm{models.TypeReglement + "_" + action, models.TypeReglement})
	}
	for _, action := range []string{"creer", "modifier", "publier", "cloturer", "evaluer", "attribuer", "approuver", "signer", "rejeter", "differer", "reprendre"} {
		perms = append(perms, perm{models.TypeMarche + "_" + action, models.TypeMarche})
	}
	perms = append(perms,
		perm{"engagement_degager", models.TypeEngagement},
		perm{"ligne_budgetaire_creer", "budget"},
		perm{"ligne_budgetaire_ajuster", "budget"},
		perm{"dossier_bloquer", "dossier"},
		perm{"dossier_debloquer", "dossier"},
		perm{"administration", "systeme"},
	)

	for _, p := range perms {
		row := models.Permission{Name: p.name, Category: p.category}
		if err := config.DB.Where("name = ?", p.name).FirstOrCreate(&row).Error; err != nil {
			return err
		}
	}

	adminRole := models.Role{Name: "admin", Description: "Acces complet"}
	if err := config.DB.Where("name = ?", "admin").FirstOrCreate(&adminRole).Error; err != nil {
		return err
	}

	var userCount int64
	config.DB.Model(&models.User{}).Count(&userCount)
	if userCount == 0 {
		password := os.Getenv("ADMIN_PASSWORD")
		if password == "" {
			slog.Warn("ADMIN_PASSWORD not set, bootstrap admin account skipped")
			return nil
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		admin := models.User{
			Login:        "admin",
			FullName:     "Administrateur",
			PasswordHash: string(hash),
			Roles:        []models.Role{adminRole},
		}
		if err := config.DB.Create(&admin).Error; err != nil {
			return err
		}
		slog.Info("Bootstrap admin account created", "login", admin.Login)
	}
	return nil
}
