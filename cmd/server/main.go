package main

import (
	"context"
	"log"

	"github.com/labstack/echo/v4"

	"github.com/wavelane/backend/internal/email"
	"github.com/wavelane/backend/internal/notifications"
	"github.com/wavelane/backend/internal/push"
	"github.com/wavelane/backend/internal/repositories"
	"github.com/wavelane/backend/internal/router"
	"github.com/wavelane/backend/internal/worker"
	"github.com/wavelane/backend/pkg/config"
	"github.com/wavelane/backend/pkg/firebase"
	"github.com/wavelane/backend/validators"
)

func main() {
	// InitDB loads .env first, so Load sees the file's values.
	db, err := config.InitDB()
	if err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}
	defer db.CloseDB()

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	// Pipeline wiring.
	notificationRepo := repositories.NewPostgresNotificationRepository(db.Postgres)
	settingsRepo := repositories.NewPostgresSettingsRepository(db.Postgres)
	subscriptionRepo := repositories.NewPostgresSubscriptionRepository(db.Postgres)
	deviceRepo := repositories.NewPostgresDeviceRepository(db.Postgres)
	userRepo := repositories.NewPostgresUserRepository(db.Postgres)
	emailRepo := repositories.NewPostgresEmailRepository(db.Postgres)
	announcementRepo := repositories.NewAnnouncementRepository(db.Mongo.Database("wavelane"))

	meta := notifications.NewHTTPMetadataClient(cfg.MetadataURL)
	feed := notifications.NewFeedClient(cfg.FeedURL)
	resolver := notifications.NewSettingsResolver(settingsRepo)
	queue := notifications.NewPublishQueue(
		push.NewFCMSender(firebaseApp.MessagingClient),
		push.NewWebPushSender(),
		deviceRepo,
	)
	debounce := notifications.NewDebounceBuffer(notifications.PendingCreateDedupeWindow)
	indexer := notifications.NewIndexer(feed, notificationRepo, subscriptionRepo, resolver, meta, queue, debounce)
	digest := notifications.NewDigestScheduler(
		userRepo, settingsRepo, emailRepo, notificationRepo, announcementRepo,
		meta, email.NewSender(cfg),
	)

	w := worker.NewWorker(cfg.RedisAddr, indexer, digest)
	go func() {
		if err := w.Start(ctx); err != nil {
			log.Fatalf("Worker failed: %v", err)
		}
	}()

	e := echo.New()
	router.SetupMiddleware(e)
	router.SetupRoutes(e, db.Postgres, db.Mongo, cfg.JWTSecret)
	e.Validator = validators.NewValidator()

	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
