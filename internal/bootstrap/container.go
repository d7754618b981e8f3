package bootstrap

import (
	"log"

	"docqa-be/internal/config"
	"docqa-be/internal/controller"
	"docqa-be/internal/pkg/logger"
	"docqa-be/internal/repository"
	"docqa-be/internal/service"
	"docqa-be/pkg/bm25"
	"docqa-be/pkg/embedding"
	"docqa-be/pkg/llm"
	"docqa-be/pkg/queue"
	"docqa-be/pkg/rag"
	"docqa-be/pkg/vectorstore"
	"docqa-be/pkg/worker"

	pktNats "docqa-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"gorm.io/gorm"
)

// AnsweredTopic is the in-process topic carrying finished-job notifications.
const AnsweredTopic = "rag.answered"

type Container struct {
	// Controllers
	RagController controller.IRagController

	// Shared infrastructure exposed for main.go lifecycles
	Queue         *queue.Client
	Pipeline      *rag.Pipeline
	Embedder      *embedding.Client
	VectorBackend string
	Publisher     service.IPublisherService
	Notifier      service.INotifierService
	NatsPub       *pktNats.Publisher
	Logger        logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// NATS (optional: the API degrades to local-only notifications)
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		natsPub = nil
	}

	// 3. External Services
	embedder := embedding.NewClient(cfg.Services.EmbeddingURL)
	llmProvider := llm.NewClient(cfg.Services.LLMURL)

	var vectors vectorstore.Store
	if cfg.Vector.Backend == "pgvector" {
		vectors = vectorstore.NewPgVector(db)
		log.Printf("[INFO] Using Vector Backend: PGVECTOR")
	} else {
		vectors = vectorstore.NewQdrant(vectorstore.QdrantConfig{
			URL:        cfg.Vector.QdrantURL,
			APIKey:     cfg.Vector.QdrantKey,
			Collection: cfg.Vector.Collection,
		})
		log.Printf("[INFO] Using Vector Backend: QDRANT (%s)", cfg.Vector.Collection)
	}

	// 4. Queue
	queueClient := queue.NewClient(queue.Config{
		Host: cfg.Redis.Host,
		Port: cfg.Redis.Port,
	}, log.Default())

	// 5. Repositories & Pipeline
	fileRepo := repository.NewCachedFileRepository(repository.NewFileRepository(db))
	pipeline := rag.NewPipeline(embedder, vectors, bm25.NewIndex(), llmProvider, fileRepo)

	// 6. Services
	publisherService := service.NewPublisherService(AnsweredTopic, pubSub)
	notifierService := service.NewNotifierService(pubSub, AnsweredTopic, natsPub)

	ragService := service.NewRagService(queueClient, pipeline, fileRepo, vectors, sysLogger)

	return &Container{
		RagController: controller.NewRagController(ragService),

		Queue:         queueClient,
		Pipeline:      pipeline,
		Embedder:      embedder,
		VectorBackend: cfg.Vector.Backend,
		Publisher:     publisherService,
		Notifier:      notifierService,
		NatsPub:       natsPub,
		Logger:        sysLogger,
	}
}

// NewWorkerContainer wires only what the worker process needs.
type WorkerContainer struct {
	Queue     *queue.Client
	Worker    *worker.Worker
	Publisher service.IPublisherService
	Notifier  service.INotifierService
	NatsPub   *pktNats.Publisher
	Logger    logger.ILogger
}

func NewWorkerContainer(db *gorm.DB, cfg *config.Config) *WorkerContainer {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermillLogger)

	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		natsPub = nil
	}

	embedder := embedding.NewClient(cfg.Services.EmbeddingURL)
	llmProvider := llm.NewClient(cfg.Services.LLMURL)

	var vectors vectorstore.Store
	if cfg.Vector.Backend == "pgvector" {
		vectors = vectorstore.NewPgVector(db)
	} else {
		vectors = vectorstore.NewQdrant(vectorstore.QdrantConfig{
			URL:        cfg.Vector.QdrantURL,
			APIKey:     cfg.Vector.QdrantKey,
			Collection: cfg.Vector.Collection,
		})
	}

	queueClient := queue.NewClient(queue.Config{
		Host: cfg.Redis.Host,
		Port: cfg.Redis.Port,
	}, log.Default())

	fileRepo := repository.NewCachedFileRepository(repository.NewFileRepository(db))
	pipeline := rag.NewPipeline(embedder, vectors, bm25.NewIndex(), llmProvider, fileRepo)

	publisherService := service.NewPublisherService(AnsweredTopic, pubSub)
	notifierService := service.NewNotifierService(pubSub, AnsweredTopic, natsPub)

	notifyingQueue := service.NewNotifyingQueue(queueClient, publisherService)
	ragWorker := worker.New(worker.Config{
		WorkerId:          cfg.Worker.WorkerId,
		WorkerType:        cfg.Worker.WorkerType,
		PollInterval:      cfg.Worker.PollInterval(),
		HeartbeatInterval: cfg.Worker.HeartbeatInterval(),
	}, notifyingQueue, pipeline)

	return &WorkerContainer{
		Queue:     queueClient,
		Worker:    ragWorker,
		Publisher: publisherService,
		Notifier:  notifierService,
		NatsPub:   natsPub,
		Logger:    sysLogger,
	}
}
