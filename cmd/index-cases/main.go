package main

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"aijudge-backend/llm"
	"aijudge-backend/models"
	"aijudge-backend/repository"
	"aijudge-backend/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

// Backfills the case similarity index from already-closed cases. Safe to
// re-run: indexing upserts, so existing entries are refreshed in place.
func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: No .env file found, using environment variables: %v", err)
	}

	if os.Getenv("GEMINI_API_KEY") == "" {
		log.Fatal("GEMINI_API_KEY environment variable is required")
	}

	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pool, err := pgxpool.New(context.Background(), connString)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	store := repository.NewPostgresCaseStore(pool)
	indexer := service.NewSimilarityIndexer(
		repository.NewCaseIndexRepository(pool),
		llm.NewGeminiEmbedder(),
	)

	ctx := context.Background()

	ids, err := store.ListIDs(ctx)
	if err != nil {
		log.Fatalf("Failed to list cases: %v", err)
	}
	log.Printf("Found %d cases", len(ids))

	indexed := 0
	skipped := 0
	failed := 0
	for _, id := range ids {
		c, err := store.Get(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrCaseNotFound) {
				continue
			}
			log.Printf("Failed to load case %s: %v", id, err)
			failed++
			continue
		}

		if c.Status != models.StatusClosed {
			skipped++
			continue
		}

		if err := indexer.IndexCase(ctx, c); err != nil {
			log.Printf("Failed to index case %s: %v", id, err)
			failed++
			continue
		}

		indexed++
		log.Printf("✓ Indexed case %s", id)

		// Stay under the embedding API rate limit
		time.Sleep(500 * time.Millisecond)
	}

	log.Printf("Done: %d indexed, %d skipped (not closed), %d failed", indexed, skipped, failed)
}
