package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Services ServiceConfig
	Vector   VectorConfig
	Worker   WorkerConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
}

type DatabaseConfig struct {
	Connection string
}

type RedisConfig struct {
	Host string
	Port string
}

type ServiceConfig struct {
	EmbeddingURL string
	LLMURL       string
}

type VectorConfig struct {
	Backend    string // "qdrant" or "pgvector"
	QdrantURL  string
	QdrantKey  string
	Collection string
}

type WorkerConfig struct {
	WorkerId            string
	WorkerType          string
	PollIntervalMs      int
	HeartbeatIntervalMs int
}

func (w WorkerConfig) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalMs) * time.Millisecond
}

func (w WorkerConfig) HeartbeatInterval() time.Duration {
	return time.Duration(w.HeartbeatIntervalMs) * time.Millisecond
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Redis: RedisConfig{
			Host: getEnv("REDIS_HOST", "localhost"),
			Port: getEnv("REDIS_PORT", "6379"),
		},
		Services: ServiceConfig{
			EmbeddingURL: getEnv("EMBEDDING_API_URL", "http://localhost:8001"),
			LLMURL:       getEnv("LLM_API_URL", "http://localhost:8002"),
		},
		Vector: VectorConfig{
			Backend:    getEnv("VECTOR_BACKEND", "qdrant"),
			QdrantURL:  getEnv("QDRANT_URL", "http://localhost:6333"),
			QdrantKey:  getEnv("QDRANT_API_KEY", ""),
			Collection: getEnv("QDRANT_COLLECTION", "document_chunks"),
		},
		Worker: WorkerConfig{
			WorkerId:            getEnv("WORKER_ID", "worker-1"),
			WorkerType:          getEnv("WORKER_TYPE", "rag"),
			PollIntervalMs:      getEnvAsInt("POLL_INTERVAL_MS", 1000),
			HeartbeatIntervalMs: getEnvAsInt("HEARTBEAT_INTERVAL_MS", 5000),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}
