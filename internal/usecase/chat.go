package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"bank-assistant/internal/domain"
)

const (
	defaultMaxMessage   = 1000
	defaultModelTimeout = 30 * time.Second
	maxHistoryPage      = 50

	fallbackReply = "I'm sorry, I encountered an error processing your request."
)

type LLMClient interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage) (domain.Completion, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// ChatDeps are the collaborators of ChatService. Intent and Metrics are
// optional; Intent defaults to KeywordExtractor.
type ChatDeps struct {
	Config  ConfigSource
	LLM     LLMClient
	Turns   TurnStore
	Banking BankingProvider
	Metrics MetricsWriter
	Intent  IntentExtractor
}

type ChatOptions struct {
	HistoryLimit  int
	MaxMessageLen int
	ModelTimeout  time.Duration
}

// ChatService is the conversation orchestrator. One HandleMessage call runs
// the full pipeline for one inbound message; calls share no mutable state
// beyond the cached runtime config.
type ChatService struct {
	config   ConfigSource
	llm      LLMClient
	turns    TurnStore
	contexts *ContextBuilder
	intent   IntentExtractor
	actions  *ActionExecutor
	metrics  *MetricsRecorder

	maxMessageLen int
	modelTimeout  time.Duration

	cacheMu     sync.RWMutex
	cacheLoaded bool
	runtime     RuntimeConfig
}

type ChatInput struct {
	CustomerID string
	SessionID  string
	Message    string
}

type ChatOutput struct {
	Response  string
	SessionID string
	Action    domain.ActionKind
	Metrics   domain.Metrics
}

type HistoryInput struct {
	CustomerID string
	SessionID  string
	Limit      int
}

// exchange is the outcome of the model-facing part of the pipeline.
type exchange struct {
	response   string
	modelReply string
	action     domain.ActionKind
	tokenUsage int
	elapsed    time.Duration
}

func NewChatService(d ChatDeps, opts ChatOptions) (*ChatService, error) {
	if d.Config == nil {
		return nil, errors.New("usecase: config source must not be nil")
	}
	if d.LLM == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	contexts, err := NewContextBuilder(d.Turns, d.Banking, opts.HistoryLimit)
	if err != nil {
		return nil, err
	}
	intent := d.Intent
	if intent == nil {
		intent = KeywordExtractor{}
	}
	if opts.MaxMessageLen <= 0 {
		opts.MaxMessageLen = defaultMaxMessage
	}
	if opts.ModelTimeout <= 0 {
		opts.ModelTimeout = defaultModelTimeout
	}
	return &ChatService{
		config:        d.Config,
		llm:           d.LLM,
		turns:         d.Turns,
		contexts:      contexts,
		intent:        intent,
		actions:       NewActionExecutor(d.Banking),
		metrics:       NewMetricsRecorder(d.Metrics),
		maxMessageLen: opts.MaxMessageLen,
		modelTimeout:  opts.ModelTimeout,
	}, nil
}

// HandleMessage stores the user turn, asks the model, enriches the reply with
// banking data when the reply implies an action, stores exactly one bot turn
// and records metrics.
//
// Once the user turn is stored a bot turn is always appended, using a fixed
// apology when a later step fails.
func (s *ChatService) HandleMessage(ctx context.Context, in ChatInput) (ChatOutput, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if utf8.RuneCountInString(message) > s.maxMessageLen {
		return ChatOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}
	customerID := strings.TrimSpace(in.CustomerID)
	if customerID == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "missing_customer", nil)
	}
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = newSessionID()
	}

	userTurn, err := s.turns.AppendTurn(ctx, domain.Turn{
		SessionID:  sessionID,
		CustomerID: customerID,
		Text:       message,
		CreatedAt:  nowFunc().UTC(),
	})
	if err != nil {
		return ChatOutput{}, newError(ErrorProcessingFailed, "store_user_turn", err)
	}

	ex, err := s.respond(ctx, customerID, sessionID, userTurn.ID, message)
	if err != nil {
		slog.Error("chat pipeline failed", "session_id", sessionID, "err", err)
		// The request context may already be done; the apology turn must
		// still land to keep user and bot turns paired.
		if _, appendErr := s.turns.AppendTurn(context.WithoutCancel(ctx), s.botTurn(sessionID, customerID, fallbackReply)); appendErr != nil {
			slog.Error("failed to store fallback bot turn", "session_id", sessionID, "err", appendErr)
		}
		return ChatOutput{SessionID: sessionID}, err
	}

	// Same pairing rule on success: a caller that gave up after the model
	// replied must not leave the user turn unanswered.
	if _, err := s.turns.AppendTurn(context.WithoutCancel(ctx), s.botTurn(sessionID, customerID, ex.response)); err != nil {
		return ChatOutput{SessionID: sessionID}, newError(ErrorProcessingFailed, "store_bot_turn", err)
	}

	metrics, err := s.metrics.Record(ctx, sessionID, ex.tokenUsage, ex.elapsed, ex.modelReply)
	if err != nil {
		slog.Warn("metrics recording failed", "session_id", sessionID, "err", err)
	}

	return ChatOutput{
		Response:  ex.response,
		SessionID: sessionID,
		Action:    ex.action,
		Metrics:   metrics,
	}, nil
}

func (s *ChatService) respond(ctx context.Context, customerID, sessionID, userTurnID, message string) (exchange, error) {
	cfg, err := s.ensureConfig(ctx)
	if err != nil {
		return exchange{}, newError(ErrorProcessingFailed, "config_load_error", err)
	}

	convCtx, err := s.contexts.Build(ctx, customerID, sessionID, userTurnID)
	if err != nil {
		return exchange{}, newError(ErrorProcessingFailed, "context_build_error", err)
	}

	system, err := cfg.SystemPrompt.Render(convCtx.Accounts)
	if err != nil {
		return exchange{}, newError(ErrorProcessingFailed, "prompt_render_error", err)
	}

	modelCtx, cancel := context.WithTimeout(ctx, s.modelTimeout)
	defer cancel()

	start := nowFunc()
	completion, err := s.llm.Chat(modelCtx, cfg.Model, buildPromptMessages(system, convCtx.Turns, message))
	elapsed := nowFunc().Sub(start)
	if err != nil {
		if modelCtx.Err() != nil {
			return exchange{}, newError(ErrorProcessingFailed, "model_timeout", err)
		}
		if status, ok := upstreamStatusCode(err); ok && status == 429 {
			return exchange{}, newError(ErrorModelProvider, "model_rate_limited", err)
		}
		return exchange{}, newError(ErrorModelProvider, "model_provider_error", err)
	}
	if strings.TrimSpace(completion.Text) == "" {
		return exchange{}, newError(ErrorModelProvider, "empty_completion", nil)
	}

	action := s.intent.Extract(completion.Text)
	response := completion.Text
	if action != domain.ActionNone {
		response = Compose(action, s.actions.Execute(ctx, customerID, action), completion.Text)
	}

	return exchange{
		response:   response,
		modelReply: completion.Text,
		action:     action,
		tokenUsage: completion.TokenUsage,
		elapsed:    elapsed,
	}, nil
}

// History returns up to in.Limit of the newest turns of a session that belong
// to in.CustomerID, newest first.
func (s *ChatService) History(ctx context.Context, in HistoryInput) ([]domain.Turn, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, newError(ErrorInvalidInput, "missing_session_id", nil)
	}
	limit := in.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryPage {
		limit = maxHistoryPage
	}

	turns, err := s.turns.RecentTurns(ctx, sessionID, limit)
	if err != nil {
		return nil, newError(ErrorServiceUnavailable, "history_load_error", err)
	}
	out := make([]domain.Turn, 0, len(turns))
	for _, t := range turns {
		if t.CustomerID == in.CustomerID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *ChatService) botTurn(sessionID, customerID, text string) domain.Turn {
	return domain.Turn{
		SessionID:  sessionID,
		CustomerID: customerID,
		Text:       text,
		IsBot:      true,
		CreatedAt:  nowFunc().UTC(),
	}
}

func (s *ChatService) ensureConfig(ctx context.Context) (RuntimeConfig, error) {
	s.cacheMu.RLock()
	if s.cacheLoaded {
		cfg := s.runtime
		s.cacheMu.RUnlock()
		return cfg, nil
	}
	s.cacheMu.RUnlock()

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheLoaded {
		return s.runtime, nil
	}

	cfg, err := s.config.Load(ctx)
	if err != nil {
		return RuntimeConfig{}, err
	}
	if cfg.SystemPrompt == nil {
		if cfg.SystemPrompt, err = ParsePromptTemplate(""); err != nil {
			return RuntimeConfig{}, err
		}
	}

	s.runtime = cfg
	s.cacheLoaded = true
	return cfg, nil
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

var newSessionID = func() string {
	return "chat_" + uuid.NewString()
}
