package router

import (
	"log"

	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"github.com/wavelane/backend/internal/handlers"
	"github.com/wavelane/backend/internal/middleware"
	"github.com/wavelane/backend/internal/models"
	"github.com/wavelane/backend/internal/repositories"
)

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	log.Println("Global middleware configured.")
}

// Migrate runs the PostgreSQL auto-migrations for every persisted model.
func Migrate(pgdb *gorm.DB) error {
	return pgdb.AutoMigrate(
		&models.User{},
		&models.Notification{},
		&models.NotificationAction{},
		&models.Subscription{},
		&models.UserNotificationSettings{},
		&models.NotificationDeviceToken{},
		&models.NotificationBrowserSubscription{},
		&models.NotificationEmail{},
	)
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, pgdb *gorm.DB, mgClient *mongo.Client, jwtSecret string) {
	if err := Migrate(pgdb); err != nil {
		log.Fatalf("Failed to auto migrate models: %v", err)
	}
	log.Println("PostgreSQL auto-migrations completed for all models.")

	e.GET("/health", handlers.HealthCheck)

	notificationRepo := repositories.NewPostgresNotificationRepository(pgdb)
	settingsRepo := repositories.NewPostgresSettingsRepository(pgdb)
	subscriptionRepo := repositories.NewPostgresSubscriptionRepository(pgdb)
	deviceRepo := repositories.NewPostgresDeviceRepository(pgdb)
	announcementRepo := repositories.NewAnnouncementRepository(mgClient.Database("wavelane"))

	api := e.Group("")
	api.Use(middleware.JWTAuthMiddleware(jwtSecret))

	notificationHandler := handlers.NewNotificationHandler(notificationRepo, announcementRepo)
	notificationHandler.RegisterNotificationRoutes(api)

	settingsHandler := handlers.NewSettingsHandler(settingsRepo)
	settingsHandler.RegisterSettingsRoutes(api)

	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionRepo)
	subscriptionHandler.RegisterSubscriptionRoutes(api)

	deviceHandler := handlers.NewDeviceHandler(deviceRepo)
	deviceHandler.RegisterDeviceRoutes(api)

	log.Println("Notification routes configured.")
}
