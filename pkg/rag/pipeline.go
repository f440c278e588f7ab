package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"law-of-the-land-be/internal/pkg/logger"
	"law-of-the-land-be/pkg/llm"
	"law-of-the-land-be/pkg/rag/prompt"
	"law-of-the-land-be/pkg/retrieval"
	"law-of-the-land-be/pkg/websearch"
)

// ErrGeneration marks a model failure during answer generation. Retrieval
// and augmentation failures degrade silently; generation failures do not.
var ErrGeneration = errors.New("answer generation failed")

// MaxContextChars caps the retrieved context before it reaches the decision
// or the answer prompt. Truncation keeps the leading characters.
const MaxContextChars = 16000

const webSearchHeader = "\n\n=== Web Search Results ===\n"

// Modes recorded on each turn for audit.
const (
	ModeRAG    = "rag"
	ModeRAGWeb = "rag+web"
)

// Meta describes how the context for a turn was assembled.
type Meta struct {
	Mode        string
	SearchQuery string
}

// TruncateContext keeps the first MaxContextChars characters. The cap is
// counted in runes so multibyte text is never split mid-character.
func TruncateContext(text string) string {
	if len(text) <= MaxContextChars {
		return text
	}
	runes := []rune(text)
	if len(runes) <= MaxContextChars {
		return text
	}
	return string(runes[:MaxContextChars])
}

// Pipeline runs retrieve, decide, augment and generate for one turn.
// Retriever and Searcher failures degrade; generator failures propagate.
type Pipeline struct {
	retriever retrieval.Retriever
	searcher  websearch.Searcher
	provider  llm.LLMProvider
	log       logger.ILogger
}

func NewPipeline(
	retriever retrieval.Retriever,
	searcher websearch.Searcher,
	provider llm.LLMProvider,
	log logger.ILogger,
) *Pipeline {
	return &Pipeline{
		retriever: retriever,
		searcher:  searcher,
		provider:  provider,
		log:       log,
	}
}

// BuildContext retrieves corpus context for the query, caps it, asks the
// model whether a web search is needed and, if so, appends the search answer
// under the web-results header. It never fails: every provider error here
// degrades to the best context assembled so far.
func (p *Pipeline) BuildContext(ctx context.Context, query string) (string, Meta) {
	meta := Meta{Mode: ModeRAG}

	contextText := ""
	result, err := p.retriever.Search(ctx, query)
	if err != nil {
		p.log.Warn("rag.pipeline", "retrieval failed, continuing without corpus context", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		contextText = result.Text
	}
	contextText = TruncateContext(contextText)

	decision := p.decide(ctx, contextText, query)
	if !decision.NeedsSearch || p.searcher == nil {
		return contextText, meta
	}

	answer, err := p.searcher.Search(ctx, decision.Query)
	if err != nil {
		p.log.Warn("rag.pipeline", "web search failed, continuing without augmentation", map[string]interface{}{
			"error": err.Error(),
			"query": decision.Query,
		})
		return contextText, meta
	}
	if answer == "" {
		return contextText, meta
	}

	meta.Mode = ModeRAGWeb
	meta.SearchQuery = decision.Query
	return contextText + webSearchHeader + answer, meta
}

func (p *Pipeline) decide(ctx context.Context, contextText, query string) Decision {
	raw, err := p.provider.Chat(
		ctx,
		[]llm.Message{{Role: "user", Content: query}},
		llm.WithSystemInstruction(prompt.DecisionInstruction(contextText)),
		llm.WithTemperature(0.2),
	)
	if err != nil {
		p.log.Warn("rag.pipeline", "augmentation decision failed, treating context as sufficient", map[string]interface{}{
			"error": err.Error(),
		})
		return Decision{NeedsSearch: false}
	}
	return Classify(raw)
}

// Answer generates the complete reply for the query using the assembled
// context and the prior conversation history.
func (p *Pipeline) Answer(ctx context.Context, query, contextText string, history []llm.Message) (string, error) {
	reply, err := p.provider.Chat(
		ctx,
		append(history, llm.Message{Role: "user", Content: query}),
		llm.WithSystemInstruction(prompt.AnswerInstruction(contextText, query, time.Now())),
		llm.WithTemperature(0.2),
		llm.WithMaxTokens(8192),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return reply, nil
}

// AnswerStream is the streaming variant of Answer. Fragments arrive in
// emission order; the channel ends with a terminal Done or Err chunk.
func (p *Pipeline) AnswerStream(ctx context.Context, query, contextText string, history []llm.Message) (<-chan llm.StreamChunk, error) {
	stream, err := p.provider.ChatStream(
		ctx,
		append(history, llm.Message{Role: "user", Content: query}),
		llm.WithSystemInstruction(prompt.AnswerInstruction(contextText, query, time.Now())),
		llm.WithTemperature(0.2),
		llm.WithMaxTokens(8192),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return stream, nil
}
