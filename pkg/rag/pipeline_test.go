package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"law-of-the-land-be/pkg/llm"
	"law-of-the-land-be/pkg/retrieval"

	"github.com/stretchr/testify/assert"
)

// --- Test doubles ---

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

type fakeRetriever struct {
	text string
	err  error
}

func (f *fakeRetriever) Search(ctx context.Context, query string) (retrieval.Result, error) {
	if f.err != nil {
		return retrieval.Result{}, f.err
	}
	return retrieval.Result{Text: f.text}, nil
}

type fakeSearcher struct {
	answer   string
	err      error
	gotQuery string
	calls    int
}

func (f *fakeSearcher) Search(ctx context.Context, query string) (string, error) {
	f.calls++
	f.gotQuery = query
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

// fakeProvider routes on the system instruction: the augmentation check and
// the answer call carry distinct prompts.
type fakeProvider struct {
	decideReply string
	decideErr   error

	answerReply  string
	answerErr    error
	streamDeltas []string
	streamErr    error

	answerHistory []llm.Message
	answerOptions llm.Options
}

const decisionPromptPrefix = "You are an AI assistant tasked with determining"

func (f *fakeProvider) applied(opts []llm.Option) llm.Options {
	options := llm.Options{}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

func (f *fakeProvider) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	options := f.applied(opts)
	if strings.HasPrefix(options.SystemInstruction, decisionPromptPrefix) {
		return f.decideReply, f.decideErr
	}
	f.answerHistory = history
	f.answerOptions = options
	return f.answerReply, f.answerErr
}

func (f *fakeProvider) ChatStream(ctx context.Context, history []llm.Message, opts ...llm.Option) (<-chan llm.StreamChunk, error) {
	options := f.applied(opts)
	f.answerHistory = history
	f.answerOptions = options
	if f.answerErr != nil {
		return nil, f.answerErr
	}

	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)
		for _, delta := range f.streamDeltas {
			out <- llm.StreamChunk{Delta: delta}
		}
		if f.streamErr != nil {
			out <- llm.StreamChunk{Err: f.streamErr}
			return
		}
		out <- llm.StreamChunk{Done: true}
	}()
	return out, nil
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	return f.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, opts...)
}

// --- Tests ---

func TestTruncateContext(t *testing.T) {
	short := "short context"
	assert.Equal(t, short, TruncateContext(short))

	long := strings.Repeat("a", MaxContextChars+5000)
	got := TruncateContext(long)
	assert.Len(t, got, MaxContextChars)
	assert.Equal(t, long[:MaxContextChars], got)
}

func TestTruncateContextCountsRunes(t *testing.T) {
	// Legal text is full of multibyte characters (§, typographic quotes)
	long := "a" + strings.Repeat("§", MaxContextChars)
	got := TruncateContext(long)

	assert.Equal(t, MaxContextChars, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "a§", got[:3])

	exact := strings.Repeat("§", MaxContextChars)
	assert.Equal(t, exact, TruncateContext(exact))
}

func TestBuildContextSufficient(t *testing.T) {
	provider := &fakeProvider{decideReply: "No"}
	searcher := &fakeSearcher{answer: "should not be used"}
	p := NewPipeline(&fakeRetriever{text: "Article 1: corpus text"}, searcher, provider, nopLogger{})

	contextText, meta := p.BuildContext(context.Background(), "what does article 1 say")

	assert.Equal(t, "Article 1: corpus text", contextText)
	assert.Equal(t, ModeRAG, meta.Mode)
	assert.Empty(t, meta.SearchQuery)
	assert.Zero(t, searcher.calls)
}

func TestBuildContextAppendsWebResults(t *testing.T) {
	provider := &fakeProvider{decideReply: "zoning variance appeal deadline"}
	searcher := &fakeSearcher{answer: "Appeals must be filed within 30 days."}
	p := NewPipeline(&fakeRetriever{text: "Article 4: zoning."}, searcher, provider, nopLogger{})

	contextText, meta := p.BuildContext(context.Background(), "how do I appeal a variance")

	assert.Equal(t, "zoning variance appeal deadline", searcher.gotQuery)
	assert.Equal(t, ModeRAGWeb, meta.Mode)
	assert.Equal(t, "zoning variance appeal deadline", meta.SearchQuery)
	assert.True(t, strings.HasPrefix(contextText, "Article 4: zoning."))
	assert.Contains(t, contextText, "=== Web Search Results ===")
	assert.True(t, strings.HasSuffix(contextText, "Appeals must be filed within 30 days."))
}

func TestBuildContextRetrievalFailureDegrades(t *testing.T) {
	provider := &fakeProvider{decideReply: "No"}
	p := NewPipeline(&fakeRetriever{err: errors.New("bucket unavailable")}, nil, provider, nopLogger{})

	contextText, meta := p.BuildContext(context.Background(), "anything")

	assert.Empty(t, contextText)
	assert.Equal(t, ModeRAG, meta.Mode)
}

func TestBuildContextSearchFailureDegrades(t *testing.T) {
	provider := &fakeProvider{decideReply: "some query"}
	searcher := &fakeSearcher{err: errors.New("tavily down")}
	p := NewPipeline(&fakeRetriever{text: "corpus"}, searcher, provider, nopLogger{})

	contextText, meta := p.BuildContext(context.Background(), "q")

	assert.Equal(t, "corpus", contextText)
	assert.Equal(t, ModeRAG, meta.Mode)
	assert.Empty(t, meta.SearchQuery)
}

func TestBuildContextEmptySearchAnswerKeepsRAGMode(t *testing.T) {
	provider := &fakeProvider{decideReply: "some query"}
	searcher := &fakeSearcher{answer: ""}
	p := NewPipeline(&fakeRetriever{text: "corpus"}, searcher, provider, nopLogger{})

	contextText, meta := p.BuildContext(context.Background(), "q")

	assert.Equal(t, "corpus", contextText)
	assert.Equal(t, ModeRAG, meta.Mode)
}

func TestBuildContextDecisionFailureSkipsSearch(t *testing.T) {
	provider := &fakeProvider{decideErr: errors.New("model unavailable")}
	searcher := &fakeSearcher{answer: "unused"}
	p := NewPipeline(&fakeRetriever{text: "corpus"}, searcher, provider, nopLogger{})

	contextText, meta := p.BuildContext(context.Background(), "q")

	assert.Equal(t, "corpus", contextText)
	assert.Equal(t, ModeRAG, meta.Mode)
	assert.Zero(t, searcher.calls)
}

func TestBuildContextNilSearcherSkipsSearch(t *testing.T) {
	provider := &fakeProvider{decideReply: "some query"}
	p := NewPipeline(&fakeRetriever{text: "corpus"}, nil, provider, nopLogger{})

	contextText, meta := p.BuildContext(context.Background(), "q")

	assert.Equal(t, "corpus", contextText)
	assert.Equal(t, ModeRAG, meta.Mode)
}

func TestBuildContextTruncatesBeforeDecision(t *testing.T) {
	provider := &fakeProvider{decideReply: "No"}
	long := strings.Repeat("x", MaxContextChars*2)
	p := NewPipeline(&fakeRetriever{text: long}, nil, provider, nopLogger{})

	contextText, _ := p.BuildContext(context.Background(), "q")

	assert.Len(t, contextText, MaxContextChars)
}

func TestAnswerAppendsQueryToHistory(t *testing.T) {
	provider := &fakeProvider{decideReply: "No", answerReply: "Per Article 2, yes."}
	p := NewPipeline(&fakeRetriever{}, nil, provider, nopLogger{})

	history := []llm.Message{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}
	reply, err := p.Answer(context.Background(), "current question", "ctx", history)

	assert.NoError(t, err)
	assert.Equal(t, "Per Article 2, yes.", reply)
	assert.Len(t, provider.answerHistory, 3)
	assert.Equal(t, llm.Message{Role: "user", Content: "current question"}, provider.answerHistory[2])
	assert.Contains(t, provider.answerOptions.SystemInstruction, "Current query: current question")
	assert.Equal(t, 0.2, provider.answerOptions.Temperature)
	assert.Equal(t, 8192, provider.answerOptions.MaxTokens)
}

func TestAnswerWrapsGenerationError(t *testing.T) {
	provider := &fakeProvider{decideReply: "No", answerErr: errors.New("quota exceeded")}
	p := NewPipeline(&fakeRetriever{}, nil, provider, nopLogger{})

	_, err := p.Answer(context.Background(), "q", "ctx", nil)

	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrGeneration))
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestAnswerStream(t *testing.T) {
	provider := &fakeProvider{streamDeltas: []string{"Per ", "Article ", "2."}}
	p := NewPipeline(&fakeRetriever{}, nil, provider, nopLogger{})

	stream, err := p.AnswerStream(context.Background(), "q", "ctx", nil)
	assert.NoError(t, err)

	var b strings.Builder
	var done bool
	for chunk := range stream {
		assert.NoError(t, chunk.Err)
		b.WriteString(chunk.Delta)
		done = chunk.Done
	}

	assert.True(t, done)
	assert.Equal(t, "Per Article 2.", b.String())
}

func TestAnswerStreamWrapsGenerationError(t *testing.T) {
	provider := &fakeProvider{answerErr: errors.New("connection refused")}
	p := NewPipeline(&fakeRetriever{}, nil, provider, nopLogger{})

	_, err := p.AnswerStream(context.Background(), "q", "ctx", nil)

	assert.True(t, errors.Is(err, ErrGeneration))
}
