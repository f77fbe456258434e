// Package orchestrator runs the answer pipeline: validate, resolve settings,
// embed the question, retrieve profile matches, assemble context, build the
// prompt, and generate the answer.
package orchestrator

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/Yates-Labs/twin/internal/config"
	"github.com/Yates-Labs/twin/internal/narrative"
	"github.com/Yates-Labs/twin/internal/rag"
)

// PipelineConfig holds the dependencies of a Pipeline. Zero values select
// the defaults.
type PipelineConfig struct {
	// Settings resolves provider settings for each run
	Settings func() config.Settings

	// Providers builds the per-run clients
	Providers Providers

	// Persona is the system instruction for the twin
	Persona string

	// Logger receives stage progress and degraded-retrieval warnings
	Logger *zap.Logger
}

// DefaultPipelineConfig reads settings from the environment on every run.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Settings:  config.FromEnv,
		Providers: DefaultProviders(),
		Persona:   narrative.DefaultPersona,
		Logger:    zap.NewNop(),
	}
}

// Pipeline answers questions about the profile. It holds no per-request
// state and is safe for concurrent use.
type Pipeline struct {
	settings  func() config.Settings
	providers Providers
	persona   string
	logger    *zap.Logger
}

// NewPipeline creates a pipeline with the given configuration.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	defaults := DefaultPipelineConfig()
	if cfg.Settings == nil {
		cfg.Settings = defaults.Settings
	}
	if cfg.Providers == nil {
		cfg.Providers = defaults.Providers
	}
	if cfg.Persona == "" {
		cfg.Persona = defaults.Persona
	}
	if cfg.Logger == nil {
		cfg.Logger = defaults.Logger
	}

	return &Pipeline{
		settings:  cfg.Settings,
		providers: cfg.Providers,
		persona:   cfg.Persona,
		logger:    cfg.Logger,
	}
}

// Result is a buffered answer together with the retrieval that produced it.
type Result struct {
	Answer  string
	Context string
	Matches []rag.Match
}

// Answer runs the buffered pipeline. Every failure, including validation
// and missing configuration, is returned as a *PipelineError and no
// provider is contacted until the query and settings have been checked.
func (p *Pipeline) Answer(ctx context.Context, query string, k int) (string, error) {
	result, err := p.AnswerWithContext(ctx, query, k)
	if err != nil {
		return "", err
	}
	return result.Answer, nil
}

// AnswerWithContext is Answer, also returning the context block and matches
// the answer was generated from.
func (p *Pipeline) AnswerWithContext(ctx context.Context, query string, k int) (Result, error) {
	if strings.TrimSpace(query) == "" {
		return Result{}, wrapStage(StageValidate, ErrEmptyQuery)
	}

	settings := p.settings()
	if err := settings.RequireAll(); err != nil {
		return Result{}, wrapStage(StageConfig, err)
	}

	model, err := p.providers.ChatModel(settings.Chat)
	if err != nil {
		return Result{}, wrapStage(StageGenerate, err)
	}

	contextBlock, matches, err := p.retrieve(ctx, settings, query, k)
	if err != nil {
		return Result{}, err
	}

	messages := narrative.BuildQuestion(p.persona, contextBlock, query)
	p.logger.Debug("prompt built",
		zap.Int("matches", len(matches)),
		zap.Int("context_chars", len(contextBlock)),
	)

	generator := narrative.NewGenerator(model, llmConfig(settings.Chat))
	answer, err := generator.Generate(ctx, messages)
	if err != nil {
		return Result{}, wrapStage(StageGenerate, err)
	}
	p.logger.Debug("answer generated",
		zap.String("model", generator.Model()),
		zap.Int("answer_chars", len(answer)),
	)

	return Result{Answer: answer, Context: contextBlock, Matches: matches}, nil
}

// AnswerStream runs the conversational pipeline. The latest user message is
// the question. Chat settings are required, but retrieval is best-effort:
// when it fails the answer is generated from the persona alone.
func (p *Pipeline) AnswerStream(ctx context.Context, conversation []narrative.Message) (<-chan narrative.Fragment, error) {
	question, ok := narrative.LatestUserMessage(conversation)
	if !ok {
		return nil, wrapStage(StageValidate, ErrNoUserMessage)
	}
	if strings.TrimSpace(question) == "" {
		return nil, wrapStage(StageValidate, ErrEmptyQuery)
	}

	settings := p.settings()
	if err := settings.RequireChat(); err != nil {
		return nil, wrapStage(StageConfig, err)
	}

	model, err := p.providers.ChatModel(settings.Chat)
	if err != nil {
		return nil, wrapStage(StageGenerate, err)
	}

	contextBlock, _, err := p.retrieve(ctx, settings, question, settings.TopK)
	if err != nil {
		p.logger.Warn("retrieval failed, answering without profile context", zap.Error(err))
		contextBlock = ""
	}

	messages := narrative.BuildConversation(p.persona, contextBlock, conversation)

	generator := narrative.NewGenerator(model, llmConfig(settings.Chat))
	fragments, err := generator.Stream(ctx, messages)
	if err != nil {
		return nil, wrapStage(StageGenerate, err)
	}

	return fragments, nil
}

func (p *Pipeline) retrieve(ctx context.Context, settings config.Settings, query string, k int) (string, []rag.Match, error) {
	if err := settings.RequireRetrieval(); err != nil {
		return "", nil, wrapStage(StageConfig, err)
	}
	if k <= 0 {
		k = settings.TopK
	}

	embedder, err := p.providers.Embedder(settings.Embedding)
	if err != nil {
		return "", nil, wrapStage(StageEmbed, err)
	}

	index, err := p.providers.Index(ctx, settings.Vector)
	if err != nil {
		return "", nil, wrapStage(StageRetrieve, err)
	}
	defer index.Close()

	retriever, err := rag.NewRetriever(index)
	if err != nil {
		return "", nil, wrapStage(StageRetrieve, err)
	}

	matches, err := rag.RetrieveContextForQuery(ctx, embedder, retriever, query, k)
	if err != nil {
		if errors.Is(err, rag.ErrRetrievalFailed) {
			return "", nil, wrapStage(StageRetrieve, err)
		}
		return "", nil, wrapStage(StageEmbed, err)
	}

	contextBlock := rag.AssembleContextLimit(matches, settings.MaxContextChars)
	p.logger.Debug("context retrieved",
		zap.Int("top_k", rag.ClampTopK(k)),
		zap.Int("matches", len(matches)),
		zap.Int("context_chars", len(contextBlock)),
	)

	return contextBlock, matches, nil
}
