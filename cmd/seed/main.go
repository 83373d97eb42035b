package main

import (
	"context"
	"log"
	"os"

	"essay-coach-be/internal/constant"
	"essay-coach-be/internal/entity"
	"essay-coach-be/internal/repository/implementation"
	"essay-coach-be/pkg/analyzer"
	"essay-coach-be/pkg/database"
	"essay-coach-be/pkg/embedding"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
)

type seedDocument struct {
	Title    string
	Category string
	Source   string
	Content  string
}

var seedDocuments = []seedDocument{
	{
		Title:    "The Kitchen Table",
		Category: constant.DocumentCategoryNarrative,
		Source:   "seed",
		Content: "I grew up at my grandmother's kitchen table, flour dusting every surface while she folded dumplings and told stories about the village she left behind. When I burned my first batch she laughed and said failure is just a fold you redo. Years later, when I failed my first physics exam, I heard her voice and kept going despite the sting. The kitchen taught me that mastery is repetition with attention, and that who I am was shaped one imperfect dumpling at a time.",
	},
	{
		Title:    "Why Our Town Needs a Library",
		Category: constant.DocumentCategoryPersuasive,
		Source:   "seed",
		Content: "A town without a library asks its children to grow on borrowed light. Our community deserves a place where curiosity is free, where a student can explore any question without a subscription. Opponents cite cost, but the price of an unread generation is higher. We fund roads because people must move; we should fund libraries because minds must move too. Together we can build it, and belonging will follow.",
	},
	{
		Title:    "How a Violin Is Made",
		Category: constant.DocumentCategoryExpository,
		Source:   "seed",
		Content: "A violin begins as two woods with opposite temperaments. Spruce, light and stiff, becomes the top plate; maple, dense and bright, becomes the back. The luthier carves each plate to a thickness measured in tenths of a millimeter, tapping and listening, because the wood answers questions before the strings ever do. Varnish follows, then the setup: bridge, soundpost, strings. The instrument's voice is the sum of a hundred small decisions no listener will ever see.",
	},
	{
		Title:    "Monsoon Morning",
		Category: constant.DocumentCategoryDescriptive,
		Source:   "seed",
		Content: "The rain arrived like an audience taking its seats, a low rustle swelling into applause on the tin roof. Steam lifted off the road in ribbons. My street, ordinarily the color of old cardboard, turned to polished slate, and the gulmohar dropped red petals into the gutters until the water ran like a wound. I stood at the window with my tea going cold, wondering how a city I knew by heart could become a stranger in ten minutes.",
	},
	{
		Title:    "What the Marathon Taught Me",
		Category: constant.DocumentCategoryReflective,
		Source:   "seed",
		Content: "Mile nineteen is where my plans stopped working and I began to learn. My goal had been a finish time; my dream, proof that discipline could overrule a body's complaints. The obstacle was simpler than both: one more step. I realized that ambition is loud at the start line and silent where it matters. I kept going, not because I believed I could finish, but because stopping required a decision I refused to make. That distinction changed how I face every difficult thing since.",
	},
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		color.Red("Error: DB_CONNECTION_STRING is not set")
		os.Exit(1)
	}

	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		color.Red("Error: failed to connect to database: %v", err)
		os.Exit(1)
	}

	ollamaURL := os.Getenv("OLLAMA_BASE_URL")
	if ollamaURL == "" {
		ollamaURL = "http://localhost:11434"
	}
	embedModel := os.Getenv("OLLAMA_EMBEDDING_MODEL")
	if embedModel == "" {
		embedModel = "all-minilm"
	}

	encoder := embedding.NewEncoder(embedding.NewOllamaProvider(ollamaURL, embedModel))
	heuristic := analyzer.NewHeuristicAnalyzer()
	repo := implementation.NewDocumentRepository(db)

	ctx := context.Background()

	color.Cyan("Seeding %d example essays...", len(seedDocuments))

	// Embed everything up front; seeding is the one place embedding is
	// synchronous, so a cold model fails fast here.
	texts := make([]string, len(seedDocuments))
	for i, sd := range seedDocuments {
		texts[i] = sd.Title + "\n\n" + sd.Content
	}
	vectors, err := encoder.EncodeBatch(ctx, texts)
	if err != nil {
		color.Red("Error: failed to embed seed documents: %v", err)
		os.Exit(1)
	}

	for i, sd := range seedDocuments {
		analysis, err := heuristic.Analyze(sd.Content, analyzer.ModeFull)
		if err != nil {
			color.Red("Error: failed to analyze %q: %v", sd.Title, err)
			os.Exit(1)
		}

		doc := &entity.Document{
			Title:     sd.Title,
			Content:   sd.Content,
			Category:  sd.Category,
			Source:    sd.Source,
			Tags:      analysis.Topics,
			Analysis:  analysis,
			Embedding: vectors[i],
		}
		if err := repo.Create(ctx, doc); err != nil {
			color.Red("Error: failed to insert %q: %v", sd.Title, err)
			os.Exit(1)
		}
		color.Green("  ✔ %s (%s) tags=%v", sd.Title, sd.Category, doc.Tags)
	}

	color.Cyan("Done.")
}
