package bootstrap

import (
	"context"
	"log"

	"law-of-the-land-be/internal/config"
	"law-of-the-land-be/internal/controller"
	"law-of-the-land-be/internal/handler"
	"law-of-the-land-be/internal/pkg/logger"
	"law-of-the-land-be/internal/repository/memory"
	"law-of-the-land-be/internal/repository/unitofwork"
	"law-of-the-land-be/internal/service"
	"law-of-the-land-be/internal/websocket"
	"law-of-the-land-be/pkg/llm/factory"
	"law-of-the-land-be/pkg/rag"
	"law-of-the-land-be/pkg/retrieval"
	"law-of-the-land-be/pkg/websearch"

	pktNats "law-of-the-land-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	ChatController controller.IChatController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets
	ChatWsHandler *handler.ChatWsHandler
	WebSocketHub  *websocket.Hub

	// System logger (Exposed for server middleware)
	Logger logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Pipeline Providers
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Keys.GoogleGemini,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	retriever := retrieval.NewGroundXClient(cfg.Keys.GroundX, cfg.Ai.GroundXBucketID)

	var searcher websearch.Searcher
	if cfg.Keys.Tavily != "" {
		searcher = websearch.NewTavilyClient(cfg.Keys.Tavily)
		log.Printf("[INFO] Web search augmentation enabled")
	} else {
		log.Printf("[WARN] TAVILY_API_KEY not set, web search augmentation disabled")
	}

	pipeline := rag.NewPipeline(retriever, searcher, llmProvider, sysLogger)

	// In-flight turn tracking
	turnRepo := memory.NewTurnRepository()

	// 3.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis
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

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/chat_ws.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 4. Services
	publisherService := service.NewPublisherService(pubSub, cfg.Ai.TurnCompletedTopic)
	consumerService := service.NewConsumerService(pubSub, cfg.Ai.TurnCompletedTopic, natsPub)

	chatService := service.NewChatService(
		uowFactory,
		pipeline,
		turnRepo,
		publisherService,
		sysLogger,
	)

	chatWsHandler := handler.NewChatWsHandler(chatService, wsHub, wsLogger)

	// 5. Controllers
	return &Container{
		ChatController:  controller.NewChatController(chatService),
		ConsumerService: consumerService,
		ChatWsHandler:   chatWsHandler,
		WebSocketHub:    wsHub,
		Logger:          sysLogger,
	}
}
