package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"resumebuilder/api/internal/accounts"
	"resumebuilder/api/internal/ai"
	"resumebuilder/api/internal/app"
	"resumebuilder/api/internal/auth"
	"resumebuilder/api/internal/broadcast"
	"resumebuilder/api/internal/config"
	"resumebuilder/api/internal/email"
	"resumebuilder/api/internal/portfolio"
	"resumebuilder/api/internal/presence"
	"resumebuilder/api/internal/realtime"
	"resumebuilder/api/internal/search"
	"resumebuilder/api/internal/store"
	"resumebuilder/api/internal/upload"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.PortfolioDir, 0o755); err != nil {
		log.Fatalf("failed to create portfolio dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)

	members, err := presence.NewRedisStore(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer members.Close()

	rooms := broadcast.NewEngine(members.Client(), cfg.RealtimeChannelPrefix)
	if err := rooms.Start(ctx); err != nil {
		log.Fatalf("realtime subscription failed: %v", err)
	}
	defer rooms.Close()

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, search.NewPgSearch(db))
	go searchService.ReindexAll(ctx)

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if !mailer.IsConfigured() {
		log.Printf("SMTP not configured, notification mail disabled")
	}

	deps := app.Deps{
		Store:  dataStore,
		Rooms:  rooms,
		Search: searchService,
		Mailer: mailer,
		Redis:  members,
	}

	if strings.TrimSpace(cfg.GoogleClientID) != "" {
		deps.Google = accounts.NewGoogleVerifier(cfg.GoogleClientID)
	} else {
		log.Printf("GOOGLE_CLIENT_ID not set, Google sign-in disabled")
	}

	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		images, err := upload.NewService(upload.Config{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		})
		if err != nil {
			log.Fatalf("object storage setup failed: %v", err)
		}
		if err := images.EnsureBucket(ctx); err != nil {
			log.Printf("WARNING: bucket check failed: %v", err)
		}
		deps.Images = images
	} else {
		log.Printf("MINIO_ENDPOINT not set, image upload disabled")
	}

	if strings.TrimSpace(cfg.GoogleAPIKey) != "" {
		gemini, err := ai.NewGemini(ctx, cfg.GoogleAPIKey, cfg.GeminiModel)
		if err != nil {
			log.Fatalf("gemini client setup failed: %v", err)
		}
		deps.AI = ai.NewService(gemini)
	} else {
		log.Printf("GOOGLE_API_KEY not set, AI suggestions disabled")
	}

	hosting := portfolio.NewHosting(cfg.GitHubUsername, cfg.GitHubToken, cfg.VercelToken)
	deps.Portfolio = portfolio.NewService(portfolio.NewRepos(cfg.PortfolioDir), hosting, dataStore, mailer)

	service := app.New(cfg, deps)

	coordinator := realtime.NewCoordinator(dataStore, members, rooms)
	socket := realtime.NewSocketServer(coordinator, auth.NewVerifier(cfg.JWTSecret), cfg.CORSOrigin)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	httpServer.MountSocket(socket)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Resume API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	// Sessions still need Redis to leave their rooms, so this runs before
	// the deferred closes.
	if err := socket.Shutdown(shutdownCtx); err != nil {
		log.Printf("socket shutdown error: %v", err)
	}
}
