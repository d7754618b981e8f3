package llm

import "context"

// Canned replies used when there is nothing to ground an answer on.
const (
	NoDocumentsAnswer = "You haven't uploaded any documents yet. Upload a document and I can answer questions about it."
	NoContextAnswer   = "I couldn't find relevant information in your documents to answer that question."
)

// Option allows for optional parameters like Temperature and MaxTokens.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	FileNames   []string // passed through as prompt metadata
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithFileNames(names []string) Option {
	return func(o *Options) {
		o.FileNames = names
	}
}

// Provider defines the contract for the answer-synthesis backend.
type Provider interface {
	// GenerateAnswer produces an answer grounded strictly in the supplied
	// retrieval context. An empty context yields the canned no-context
	// reply without a model call.
	GenerateAnswer(ctx context.Context, question, retrievalContext string, options ...Option) (string, error)
}
