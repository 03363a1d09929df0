package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Port     string
	MongoURI string

	// Qdrant vector index (gRPC)
	QdrantAddr       string
	QdrantCollection string

	// OpenAI-compatible model provider
	OpenAIBaseURL string
	OpenAIAPIKey  string

	// JWT signing secret for the auth middleware
	JWTSecret string

	// Minimum cosine similarity for a retrieved passage to count as evidence
	SimilarityThreshold float64

	Models ModelConfig
}

// ModelConfig assigns a model to each role the service plays. Loaded from
// env with defaults, optionally overridden by a models.yaml file
// (MODELS_CONFIG).
type ModelConfig struct {
	Chat       string `yaml:"chat"`
	Classifier string `yaml:"classifier"`
	Embedding  string `yaml:"embedding"`
	Memory     string `yaml:"memory"`
}

// Load loads configuration from environment variables with defaults.
func Load() *Config {
	cfg := &Config{
		Port:     getEnv("PORT", "5001"),
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/healthcare"),

		QdrantAddr:       getEnv("QDRANT_ADDR", "localhost:6334"),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "documents"),

		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),

		SimilarityThreshold: getFloatEnv("SIMILARITY_THRESHOLD", 0.35),

		Models: ModelConfig{
			Chat:       getEnv("CHAT_MODEL", "gpt-4o-mini"),
			Classifier: getEnv("CLASSIFIER_MODEL", "gpt-4o-mini"),
			Embedding:  getEnv("EMBEDDING_MODEL", "text-embedding-3-large"),
			Memory:     getEnv("MEMORY_MODEL", "gpt-4o-mini"),
		},
	}

	// Optional YAML override for model assignments
	if path := os.Getenv("MODELS_CONFIG"); path != "" {
		if overrides, err := LoadModels(path); err == nil {
			cfg.Models.apply(overrides)
		}
	}

	return cfg
}

// LoadModels loads model assignments from a YAML file.
func LoadModels(filePath string) (*ModelConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read models file: %w", err)
	}

	var mc ModelConfig
	if err := yaml.Unmarshal(data, &mc); err != nil {
		return nil, fmt.Errorf("failed to parse models YAML: %w", err)
	}

	return &mc, nil
}

func (m *ModelConfig) apply(overrides *ModelConfig) {
	if overrides.Chat != "" {
		m.Chat = overrides.Chat
	}
	if overrides.Classifier != "" {
		m.Classifier = overrides.Classifier
	}
	if overrides.Embedding != "" {
		m.Embedding = overrides.Embedding
	}
	if overrides.Memory != "" {
		m.Memory = overrides.Memory
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
