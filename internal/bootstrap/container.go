package bootstrap

import (
	"context"
	"log"

	"essay-coach-be/internal/config"
	"essay-coach-be/internal/controller"
	"essay-coach-be/internal/pkg/logger"
	"essay-coach-be/internal/repository/implementation"
	"essay-coach-be/internal/repository/memory"
	"essay-coach-be/internal/service"
	"essay-coach-be/internal/websocket"
	"essay-coach-be/pkg/agent"
	"essay-coach-be/pkg/analyzer"
	"essay-coach-be/pkg/embedding"
	"essay-coach-be/pkg/llm/factory"

	pktNats "essay-coach-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	DocumentController controller.IDocumentController
	ChatController     controller.IChatController

	// Background services (exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets
	WebSocketHub *websocket.Hub

	// Exposed so main.go can warm the model at startup
	Encoder *embedding.Encoder
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	documentRepo := implementation.NewDocumentRepository(db)
	sessionRepo := memory.NewSessionRepository()

	// 2. Event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. AI components
	var embeddingProvider embedding.EmbeddingProvider
	if cfg.Ai.EmbeddingProvider == "gemini" {
		embeddingProvider = embedding.NewGeminiProvider(cfg.Keys.GoogleGemini)
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
	} else {
		embeddingProvider = embedding.NewOllamaProvider(
			cfg.Ai.OllamaBaseURL,
			cfg.Ai.OllamaEmbedModel,
		)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaEmbedModel)
	}
	encoder := embedding.NewEncoder(embeddingProvider)

	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Keys.Anthropic,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	heuristicAnalyzer := analyzer.NewHeuristicAnalyzer()

	// 3.5 Infrastructure
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// WebSocket hub, with its own log file so chat transport noise stays out
	// of the main log
	wsLogger := logger.NewIsolatedLogger("logs/chat.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 4. Services
	publisherService := service.NewPublisherService(cfg.Keys.EmbedTopic, pubSub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Keys.EmbedTopic,
		documentRepo,
		encoder,
	)

	corpusService := service.NewCorpusService(
		documentRepo,
		heuristicAnalyzer,
		encoder,
		publisherService,
		natsPub,
		cfg.Ai.SimilarityLimit,
		cfg.Ai.SimilarityMinScore,
		sysLogger,
	)

	// Agent pipeline
	registry := agent.NewRegistry()
	executor := agent.NewExecutor(heuristicAnalyzer, encoder, documentRepo, cfg.Ai.SimilarityMinScore, sysLogger)
	orchestrator := agent.NewOrchestrator(llmProvider, registry, executor, sysLogger)

	chatService := service.NewChatService(orchestrator, sessionRepo, wsHub, natsPub, sysLogger)

	// 5. Controllers
	return &Container{
		DocumentController: controller.NewDocumentController(corpusService),
		ChatController:     controller.NewChatController(chatService, wsHub),
		ConsumerService:    consumerService,
		WebSocketHub:       wsHub,
		Encoder:            encoder,
	}
}
