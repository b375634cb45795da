// Package routes wires repositories, services and handlers onto the fiber
// app.
package routes

import (
	"github.com/mutalechilando/DigitalWalletBackend/internal/config"
	"github.com/mutalechilando/DigitalWalletBackend/internal/handlers"
	"github.com/mutalechilando/DigitalWalletBackend/internal/middleware"
	"github.com/mutalechilando/DigitalWalletBackend/internal/repositories"
	"github.com/mutalechilando/DigitalWalletBackend/internal/services/auth"
	"github.com/mutalechilando/DigitalWalletBackend/internal/services/history"
	"github.com/mutalechilando/DigitalWalletBackend/internal/services/identity"
	"github.com/mutalechilando/DigitalWalletBackend/internal/services/ledger"
	"github.com/mutalechilando/DigitalWalletBackend/internal/services/user"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// SetupRoutes configures all application routes.
func SetupRoutes(app *fiber.App, db *gorm.DB) {
	ledgerRepo := repositories.NewLedgerRepository(db)
	userRepo := repositories.NewUserRepository(db)

	identityService := identity.NewService(ledgerRepo, userRepo)
	ledgerService := ledger.NewService(ledgerRepo, identityService, repositories.CacheService, ledger.Config{})
	historyService := history.NewService(ledgerRepo, userRepo)
	userService := user.NewService(userRepo)
	authService := auth.NewService(
		userRepo,
		repositories.CacheService,
		config.GetEnv("JWT_SECRET", "dev-secret-change-me"),
		config.GetDurationEnv("JWT_TTL", auth.DefaultTokenTTL),
	)

	authHandler := handlers.NewAuthHandler(authService, userService)
	walletHandler := handlers.NewWalletHandler(ledgerService, historyService)
	authMiddleware := middleware.NewAuthMiddleware(authService)

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/logout", authMiddleware.Handler, authHandler.Logout)

	wallet := api.Group("/wallet", authMiddleware.Handler)
	wallet.Get("/balance", walletHandler.GetBalance)
	wallet.Get("/history", walletHandler.GetHistory)
	wallet.Post("/deposit", walletHandler.Deposit)
	wallet.Post("/withdraw", walletHandler.Withdraw)
	wallet.Post("/transfer", walletHandler.Transfer)
}
