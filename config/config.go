package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config carries every runtime setting. It is built once in main and passed
// by injection into the packages that need it; nothing reads the environment
// after Load returns.
type Config struct {
	HTTPPort string

	PostgresDSN string

	OpenAIAPIKey  string
	OpenAIBaseURL string

	EmbeddingProvider  string
	EmbeddingModel     string
	EmbeddingDimension int

	LLMProvider    string
	LLMModel       string
	LLMTemperature float32

	OllamaHost string

	WalrusPublisherURL  string
	WalrusAggregatorURL string
	WalrusEpochs        int

	SuiRPCURL     string
	SuiPackageID  string
	SuiModuleName string

	ChunkSize      int
	ChunkOverlap   int
	SimilarityTopK int
}

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	return Config{
		HTTPPort: getEnv("HTTP_PORT", "8000"),

		PostgresDSN: getEnv("POSTGRES_DSN", "postgres://localhost:5432/ragchain?sslmode=disable"),

		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),

		EmbeddingProvider:  getEnv("EMBEDDING_PROVIDER", ProviderOpenAI),
		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDimension: getEnvInt("EMBEDDING_DIMENSION", 1536),

		LLMProvider:    getEnv("LLM_PROVIDER", ProviderOpenAI),
		LLMModel:       getEnv("LLM_MODEL", "gpt-3.5-turbo"),
		LLMTemperature: float32(getEnvFloat("LLM_TEMPERATURE", 0.1)),

		OllamaHost: getEnv("OLLAMA_HOST", "http://localhost:11434"),

		WalrusPublisherURL:  getEnv("WALRUS_PUBLISHER_URL", "https://publisher-devnet.walrus.space"),
		WalrusAggregatorURL: getEnv("WALRUS_AGGREGATOR_URL", "https://aggregator-devnet.walrus.space"),
		WalrusEpochs:        getEnvInt("WALRUS_EPOCHS", 5),

		SuiRPCURL:     getEnv("SUI_RPC_URL", "https://fullnode.testnet.sui.io:443"),
		SuiPackageID:  getEnv("SUI_PACKAGE_ID", ""),
		SuiModuleName: getEnv("SUI_MODULE_NAME", "registry"),

		ChunkSize:      getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:   getEnvInt("CHUNK_OVERLAP", 200),
		SimilarityTopK: getEnvInt("SIMILARITY_TOP_K", 5),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return fallback
}
