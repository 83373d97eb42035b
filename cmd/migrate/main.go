package main

import (
	"fmt"
	"log"

	"essay-coach-be/internal/config"
	"essay-coach-be/internal/model"
	"essay-coach-be/pkg/database"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	dsn := cfg.Database.Connection
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	ivfflatLists := cfg.Database.IvfflatLists
	if ivfflatLists <= 0 {
		ivfflatLists = 100
	}

	// 2. Connect to Database using existing GORM helpers
	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Starting GORM Migration...")

	// 3. Pre-Migration: extensions GORM AutoMigrate can't create
	log.Println("Step 1: Setting up Extensions...")

	setupSQL := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
		`CREATE EXTENSION IF NOT EXISTS vector;`,
	}
	for _, sql := range setupSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute setup SQL: %v. Continuing...", err)
		}
	}

	// 4. AutoMigrate Models
	log.Println("Step 2: Running AutoMigrate...")

	if err := db.AutoMigrate(&model.Document{}); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	// 5. Post-Migration: ANN index and the scored-search SQL function
	log.Println("Step 3: Creating Indexes and Functions...")

	postMigrationSQL := []string{
		// ivfflat ANN index over cosine distance. Approximate by design:
		// recall depends on the lists/probes trade-off.
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_documents_embedding
		 ON documents USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d);`, ivfflatLists),

		`CREATE INDEX IF NOT EXISTS idx_documents_tags ON documents USING gin (tags);`,

		// match_documents mirrors the repository query for SQL-side callers
		// (dashboards, psql debugging). Threshold is exclusive.
		`CREATE OR REPLACE FUNCTION match_documents(
		   query_embedding vector(384),
		   match_threshold float,
		   match_count int,
		   filter_category text DEFAULT NULL
		 ) RETURNS TABLE (id uuid, title text, category text, similarity float)
		 LANGUAGE sql STABLE AS $$
		   SELECT d.id, d.title, d.category, 1 - (d.embedding <=> query_embedding) AS similarity
		   FROM documents d
		   WHERE d.embedding IS NOT NULL
		     AND 1 - (d.embedding <=> query_embedding) > match_threshold
		     AND (filter_category IS NULL OR d.category = filter_category)
		   ORDER BY similarity DESC
		   LIMIT match_count;
		 $$;`,
	}

	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute post-migration SQL: %v", err)
		}
	}

	log.Println("Success: Database migration completed via GORM.")
}
