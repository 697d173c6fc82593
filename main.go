package main

import (
	"context"
	"log"
	"os"
	"time"

	"aijudge-backend/cache"
	"aijudge-backend/extraction"
	"aijudge-backend/handlers"
	"aijudge-backend/llm"
	"aijudge-backend/repository"
	"aijudge-backend/service"
	"aijudge-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/generative-ai-go/genai"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: No .env file found, using environment variables: %v", err)
	}

	ctx := context.Background()

	geminiClient, err := initGemini(ctx)
	if err != nil {
		log.Fatal("Failed to initialize Gemini:", err)
	}
	defer geminiClient.Close()

	blobStorage, err := storage.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to initialize blob storage:", err)
	}

	verdictCache, err := initVerdictCache()
	if err != nil {
		log.Fatal("Failed to initialize verdict cache:", err)
	}
	defer verdictCache.Close()

	opts := []service.CaseServiceOption{
		service.WithGenerator(llm.NewGeminiGenerator(geminiClient)),
		service.WithExtractor(initExtractor()),
		service.WithBlobStorage(blobStorage),
		service.WithVerdictCache(verdictCache),
	}

	// Postgres is optional: without DATABASE_URL the server runs on the
	// in-memory store and the similarity index stays offline.
	var similarity *service.SimilarityIndexer
	if connString := os.Getenv("DATABASE_URL"); connString != "" {
		db, err := initPostgres(ctx, connString)
		if err != nil {
			log.Fatal("Failed to initialize Postgres:", err)
		}
		defer db.Close()

		opts = append(opts, service.WithCaseStore(repository.NewPostgresCaseStore(db)))

		similarity = service.NewSimilarityIndexer(
			repository.NewCaseIndexRepository(db),
			llm.NewGeminiEmbedder(),
		)
		opts = append(opts, service.WithObserver(similarity))
	} else {
		log.Println("Warning: DATABASE_URL not set, using in-memory case store")
		opts = append(opts, service.WithCaseStore(repository.NewMemoryCaseStore()))
	}

	caseService := service.NewCaseService(opts...)
	caseHandler := handlers.NewCaseHandler(caseService, similarity)

	// Setup Gin router
	r := gin.Default()

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	api := r.Group("/api")
	{
		api.POST("/cases", caseHandler.CreateCase)
		api.GET("/cases", caseHandler.ListCases)
		api.GET("/cases/:id", caseHandler.GetCase)
		api.POST("/cases/:id/sides/:side/material", caseHandler.SubmitMaterial)
		api.POST("/cases/:id/sides/:side/documents", caseHandler.SubmitDocuments)
		api.POST("/cases/:id/verdict", caseHandler.RequestVerdict)
		api.POST("/cases/:id/follow-ups", caseHandler.SubmitFollowUp)
		api.POST("/cases/:id/close", caseHandler.CloseCase)
		api.GET("/cases/:id/similar", caseHandler.SimilarCases)
	}

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

func initPostgres(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	// Enable pgvector extension
	_, err = pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		log.Printf("Warning: Failed to create pgvector extension: %v", err)
		log.Println("This may be normal if extension is already installed or requires superuser privileges")
	} else {
		log.Println("pgvector extension enabled")
	}

	log.Println("Postgres connection established with pgvector support")
	return pool, nil
}

func initGemini(ctx context.Context) (*genai.Client, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Println("Warning: GEMINI_API_KEY not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	log.Println("Gemini client initialized")
	return client, nil
}

func initExtractor() extraction.Extractor {
	endpoint := os.Getenv("EXTRACTOR_URL")
	if endpoint == "" {
		log.Println("Warning: EXTRACTOR_URL not set, binary document extraction disabled")
		return extraction.NewLocalExtractor()
	}
	return extraction.NewHTTPExtractor(endpoint, 30*time.Second)
}

func initVerdictCache() (cache.VerdictCache, error) {
	backend := os.Getenv("CACHE_BACKEND")
	if backend != "badger" {
		return cache.NewMemoryCache(), nil
	}

	path := os.Getenv("BADGER_PATH")
	if path == "" {
		path = "./storage/verdict-cache"
	}

	c, err := cache.NewBadgerCache(path)
	if err != nil {
		return nil, err
	}
	log.Printf("Badger verdict cache opened at %s", path)
	return c, nil
}
