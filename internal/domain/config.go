package domain

// KeyPrefix namespaces every key exifdex writes to the shared key-value store.
const KeyPrefix = "exifdex:"

// VectorConfig holds the embedding defaults used when configuration omits them.
type VectorConfig struct {
	Model      string
	Dimensions int
}

// DefaultVectorConfig returns the defaults. Metadata descriptions are short, so the small
// OpenAI model is plenty.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{Model: "text-embedding-3-small", Dimensions: 1536}
}
