package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"

	"talent-matcher/internal/config"
	"talent-matcher/internal/repositories"
	"talent-matcher/internal/services"
)

// Batch-ingests a directory of resume PDFs into the talent pool. The
// candidate name is taken from the file name (underscores become spaces).
//
// Usage: go run scripts/ingest_resumes.go <directory>
func main() {
	log.Println("🚀 Starting resume ingestion...")

	if len(os.Args) < 2 {
		log.Fatal("❌ Usage: ingest_resumes <directory>")
	}
	dir := os.Args[1]

	// Load configuration
	cfg := config.Load()

	db, err := config.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}
	resumeRepo := repositories.NewResumeRepository(db)

	// Initialize services
	geminiService, err := services.NewGeminiService(cfg.Gemini.APIKey)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Gemini: %v", err)
	}

	embeddingService := services.NewEmbeddingService(
		geminiService,
		cfg.Embedding.SparseURL,
		cfg.Embedding.Timeout,
	)

	vectorStore, err := services.NewQdrantStore(
		cfg.Qdrant.URL,
		cfg.Qdrant.APIKey,
		cfg.Qdrant.Collection,
	)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Qdrant: %v", err)
	}

	ctx := context.Background()

	if err := vectorStore.EnsureCollection(ctx); err != nil {
		log.Fatalf("❌ Failed to initialize collection: %v", err)
	}

	pdfParser := services.NewPDFParserService()
	ingestService := services.NewIngestService(resumeRepo, pdfParser, embeddingService, vectorStore)

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Fatalf("❌ Failed to read directory %s: %v", dir, err)
	}

	successCount := 0
	failCount := 0

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		name = strings.ReplaceAll(name, "_", " ")

		log.Printf("\n📄 Processing: %s", entry.Name())

		resume, err := ingestService.IngestResume(ctx, name, entry.Name(), path)
		if err != nil {
			log.Printf("❌ Failed to ingest %s: %v", entry.Name(), err)
			failCount++
			continue
		}

		log.Printf("✅ Ingested %s as resume %s", name, resume.ID)
		successCount++
	}

	log.Printf("\n🏁 Ingestion finished: %d succeeded, %d failed", successCount, failCount)
}
