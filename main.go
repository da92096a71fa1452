package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"brewedAtAPI/handlers"
	"brewedAtAPI/internal/cache"
	"brewedAtAPI/internal/config"
	"brewedAtAPI/internal/database"
	"brewedAtAPI/internal/logger"
	"brewedAtAPI/internal/metrics"
	"brewedAtAPI/internal/notification"
	"brewedAtAPI/internal/qrtoken"
	"brewedAtAPI/internal/workers"
	"brewedAtAPI/middleware"
	"brewedAtAPI/services"

	_ "net/http/pprof"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger is not up yet
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.Options{Level: cfg.LogLevel, Path: cfg.LogPath}); err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Sugar.Fatalf("Server exited: %v", err)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clerk.SetKey(cfg.ClerkSecretKey)

	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		return err
	}

	dbPool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		logger.Sugar.Info("Closing database connection pool...")
		dbPool.Close()
	}()

	redisCache, err := cache.New(ctx, cfg.RedisURL, "brewedat:")
	if err != nil {
		// leaderboards work uncached
		logger.Sugar.Warnf("Redis unavailable, caching disabled: %v", err)
		redisCache = nil
	}
	defer redisCache.Close()

	metrics.Register(prometheus.DefaultRegisterer)
	middleware.InitPrometheus(prometheus.DefaultRegisterer)

	var pushProvider services.PushNotificationProvider = &services.MockPushProvider{}
	if fcm, err := notification.NewFCMService(cfg.FCMServiceAccountJSON, cfg.FCMCredentialsFile); err != nil {
		logger.Sugar.Warnf("Could not initialize FCM, push notifications are logged only: %v", err)
	} else {
		pushProvider = fcm
		logger.Sugar.Info("FCM push provider initialized")
	}

	dispatcher := services.NewNotificationDispatcher(dbPool, pushProvider)
	defer dispatcher.Stop()

	feedHub := services.NewFeedHub()
	go feedHub.Run(ctx)

	signer := qrtoken.NewSigner(cfg.QRSigningSecret, cfg.QRTokenTTL)

	notificationService := services.NewNotificationService(dbPool, dispatcher)
	userService := services.NewUserService(dbPool, cfg.PointsPerLevel)
	breweryService := services.NewBreweryService(dbPool, signer)
	eventService := services.NewEventService(dbPool)
	achievementService := services.NewAchievementService(dbPool, cfg.PointsPerLevel)
	leaderboardService := services.NewLeaderboardService(dbPool, redisCache, cfg.LeaderboardCacheTTL)
	checkInService := services.NewCheckInService(dbPool, signer, achievementService, redisCache, notificationService, feedHub,
		services.CheckInConfig{
			Cooldown:            cfg.CheckInCooldown,
			DefaultRadiusMeters: cfg.CheckInRadiusMeters,
			DefaultPoints:       cfg.DefaultCheckInPoints,
			PointsPerLevel:      cfg.PointsPerLevel,
		})
	raffleService := services.NewRaffleService(dbPool, achievementService, redisCache, notificationService, feedHub, cfg.PointsPerLevel)
	adminService := services.NewAdminService(dbPool)

	scheduler, err := workers.Start(workers.Deps{
		Raffles:       raffleService,
		Notifications: notificationService,
		Leaderboards:  leaderboardService,
		DrawSchedule:  cfg.RaffleDrawSchedule,
	})
	if err != nil {
		return err
	}
	defer func() { <-scheduler.Stop().Done() }()

	userHandler := handlers.NewUserHandler(userService, achievementService, raffleService)
	breweryHandler := handlers.NewBreweryHandler(breweryService, eventService)
	eventHandler := handlers.NewEventHandler(eventService)
	checkInHandler := handlers.NewCheckInHandler(checkInService)
	raffleHandler := handlers.NewRaffleHandler(raffleService)
	leaderboardHandler := handlers.NewLeaderboardHandler(leaderboardService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	webhookHandler := handlers.NewWebhookHandler(userService, cfg.ClerkWebhookSecret)
	adminHandler := handlers.NewAdminHandler(adminService, breweryService, eventService, raffleService, achievementService)
	feedHandler := handlers.NewFeedHandler(feedHub)

	r := mux.NewRouter()
	r.Use(middleware.MonitorMiddleware)

	// websocket upgrades skip the rate limiter
	r.HandleFunc("/api/v1/feed/ws", feedHandler.Subscribe).Methods("GET")

	limiter := middleware.NewRateLimiter(5, 30, 3*time.Minute).TrustForwardedFor(cfg.TrustProxy)
	go limiter.CleanupVisitors(ctx)

	standardRouter := r.PathPrefix("/").Subrouter()
	standardRouter.Use(limiter.Middleware)

	standardRouter.Handle("/metrics", middleware.BasicAuthMiddleware(cfg.MetricsUser, cfg.MetricsPass)(promhttp.Handler()))
	standardRouter.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(cfg.PprofSecret)(http.DefaultServeMux))

	standardRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := dbPool.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "brewedat-api"}`))
	}).Methods("GET")

	standardRouter.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")

	api := standardRouter.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/breweries", breweryHandler.ListBreweries).Methods("GET")
	api.HandleFunc("/breweries/nearby", breweryHandler.NearbyBreweries).Methods("GET")
	api.HandleFunc("/breweries/{id}", breweryHandler.GetBrewery).Methods("GET")
	api.HandleFunc("/events", eventHandler.ListEvents).Methods("GET")
	api.HandleFunc("/events/{id}", eventHandler.GetEvent).Methods("GET")
	api.HandleFunc("/raffles", raffleHandler.ListRaffles).Methods("GET")
	api.Handle("/raffles/{id}", middleware.OptionalAuthMiddleware(http.HandlerFunc(raffleHandler.GetRaffle))).Methods("GET")
	api.HandleFunc("/leaderboard", leaderboardHandler.GetLeaderboard).Methods("GET")

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware)

	protected.HandleFunc("/user", userHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/user", userHandler.UpdateProfile).Methods("PUT")
	protected.HandleFunc("/user", userHandler.DeleteAccount).Methods("DELETE")
	protected.HandleFunc("/user/checkins", userHandler.GetCheckInHistory).Methods("GET")
	protected.HandleFunc("/user/achievements", userHandler.GetAchievements).Methods("GET")
	protected.HandleFunc("/user/raffle-entries", userHandler.GetRaffleEntries).Methods("GET")

	protected.HandleFunc("/checkins", checkInHandler.CheckIn).Methods("POST")

	protected.HandleFunc("/raffles/{id}/enter", raffleHandler.EnterRaffle).Methods("POST")

	protected.HandleFunc("/leaderboard/me", leaderboardHandler.GetMyLeaderboard).Methods("GET")

	protected.HandleFunc("/notifications", notificationHandler.GetNotifications).Methods("GET")
	protected.HandleFunc("/notifications/unread-count", notificationHandler.GetUnreadCount).Methods("GET")
	protected.HandleFunc("/notifications/read-all", notificationHandler.MarkAllAsRead).Methods("PUT")
	protected.HandleFunc("/notifications/{id}/read", notificationHandler.MarkAsRead).Methods("PUT")
	protected.HandleFunc("/notifications/register-device", notificationHandler.RegisterDevice).Methods("POST")

	// -------------------------------------------------------------------------
	// ADMIN ROUTES
	// -------------------------------------------------------------------------
	admin := protected.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.AdminOnly(cfg.IsAdmin))

	admin.HandleFunc("/overview", adminHandler.Overview).Methods("GET")
	admin.HandleFunc("/breweries", adminHandler.CreateBrewery).Methods("POST")
	admin.HandleFunc("/breweries/{id}", adminHandler.UpdateBrewery).Methods("PUT")
	admin.HandleFunc("/breweries/{id}", adminHandler.DeleteBrewery).Methods("DELETE")
	admin.HandleFunc("/breweries/{id}/qr", adminHandler.GenerateCheckInQR).Methods("GET")
	admin.HandleFunc("/events", adminHandler.CreateEvent).Methods("POST")
	admin.HandleFunc("/events/{id}", adminHandler.UpdateEvent).Methods("PUT")
	admin.HandleFunc("/events/{id}", adminHandler.DeleteEvent).Methods("DELETE")
	admin.HandleFunc("/raffles", adminHandler.ListRaffles).Methods("GET")
	admin.HandleFunc("/raffles", adminHandler.CreateRaffle).Methods("POST")
	admin.HandleFunc("/raffles/{id}", adminHandler.UpdateRaffle).Methods("PUT")
	admin.HandleFunc("/raffles/{id}/draw", adminHandler.DrawRaffle).Methods("POST")
	admin.HandleFunc("/raffles/{id}/cancel", adminHandler.CancelRaffle).Methods("POST")
	admin.HandleFunc("/achievements", adminHandler.ListAchievements).Methods("GET")
	admin.HandleFunc("/achievements", adminHandler.CreateAchievement).Methods("POST")
	admin.HandleFunc("/achievements/{id}", adminHandler.UpdateAchievement).Methods("PUT")
	admin.HandleFunc("/achievements/{id}", adminHandler.DeleteAchievement).Methods("DELETE")

	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins([]string{"*"}),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length"}),
	)

	server := http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Sugar.Infof("Starting server on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		logger.Sugar.Info("Shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Sugar.Errorf("Server shutdown error: %v", err)
	}

	logger.Sugar.Info("Server shutdown complete")
	return nil
}
