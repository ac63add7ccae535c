package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"kb-research-report/internal/api"
	"kb-research-report/internal/config"
	"kb-research-report/internal/database"
	"kb-research-report/internal/events"
	"kb-research-report/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize MongoDB client
	mongoClient, err := database.NewMongoDBClient(cfg.MongoDB)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongoClient.Close()

	// Initialize the LLM client
	aiService := services.NewAIService(cfg.OpenAI)

	// Initialize the search provider
	retriever, err := services.NewRetriever(cfg.Retriever)
	if err != nil {
		log.Fatalf("Failed to initialize retriever: %v", err)
	}

	// Initialize artifact storage
	storage, err := services.NewFileStorage(ctx, cfg.Storage, cfg.Output.Dir)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	// Initialize optional collaborators
	metricsService := services.NewMetricsService(cfg.InfluxDB)
	if metricsService != nil {
		defer metricsService.Close()
		log.Printf("InfluxDB metrics enabled (%s)", cfg.InfluxDB.URL)
	}

	emailService := services.NewEmailService(cfg.Email)
	if emailService == nil {
		log.Printf("SendGrid not configured, report-ready emails disabled")
	}

	var quotaService *services.QuotaService
	if cfg.Quota.Enabled {
		quotaService = services.NewQuotaService(mongoClient, cfg.Quota)
	} else {
		log.Printf("Quota accounting disabled")
	}

	// Initialize the pipeline
	hub := events.NewHub()
	reportService := services.NewReportService(cfg.Pipeline, services.ReportServiceDeps{
		Store:            mongoClient,
		Sink:             hub,
		Retriever:        retriever,
		Documents:        services.NewDocumentRetriever(mongoClient, aiService, cfg.Vector),
		Scraper:          services.NewScraper(cfg.Scraper),
		ContextBuilder:   services.NewContextBuilder(cfg.Output.ContextMaxChars),
		Planner:          services.NewPlanner(aiService, cfg.Pipeline),
		Synthesizer:      services.NewSynthesizer(aiService, cfg.OpenAI.SmartModel, cfg.Pipeline),
		Output:           services.NewOutputService(storage, aiService, cfg.Output),
		Quota:            quotaService,
		Metrics:          metricsService,
		Email:            emailService,
		MaxSearchResults: cfg.Retriever.MaxResults,
	})
	reportService.Start(ctx)
	defer reportService.Stop()

	// Start the orphan sweep
	sweepService := services.NewSweepService(mongoClient, cfg.Pipeline)
	if err := sweepService.Start(); err != nil {
		log.Fatalf("Failed to start orphan sweep: %v", err)
	}
	defer sweepService.Stop()

	// Initialize handlers and routes
	handlers := api.NewHandlers(reportService, quotaService, mongoClient, hub)
	router := api.SetupRoutes(handlers, cfg.Auth.JWTSecret)

	// Stop accepting new work on SIGINT/SIGTERM
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Printf("Shutdown signal received")
		cancel()
	}()

	// Start server
	addr := cfg.Server.Host + ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
