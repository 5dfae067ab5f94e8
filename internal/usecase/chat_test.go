package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bank-assistant/internal/domain"
)

type chatFixture struct {
	turns   *memTurns
	banking *fakeBanking
	llm     *stubLLM
	metrics *fakeMetrics
	config  *countingConfig
}

func newChatFixture(reply string) *chatFixture {
	prompt, _ := ParsePromptTemplate("")
	return &chatFixture{
		turns:   &memTurns{},
		banking: &fakeBanking{accounts: twoAccounts()},
		llm:     &stubLLM{completion: domain.Completion{Text: reply, TokenUsage: 120}},
		metrics: &fakeMetrics{},
		config:  &countingConfig{cfg: RuntimeConfig{Model: "gpt-4o-mini", SystemPrompt: prompt}},
	}
}

func (f *chatFixture) service(t *testing.T, opts ChatOptions) *ChatService {
	t.Helper()
	svc, err := NewChatService(ChatDeps{
		Config:  f.config,
		LLM:     f.llm,
		Turns:   f.turns,
		Banking: f.banking,
		Metrics: f.metrics,
	}, opts)
	require.NoError(t, err)
	return svc
}

// requirePaired asserts the store holds exactly one user turn followed by
// one bot turn.
func requirePaired(t *testing.T, turns []domain.Turn, userText, botText string) {
	t.Helper()
	require.Len(t, turns, 2)
	require.False(t, turns[0].IsBot)
	require.Equal(t, userText, turns[0].Text)
	require.True(t, turns[1].IsBot)
	require.Equal(t, botText, turns[1].Text)
	require.Equal(t, turns[0].SessionID, turns[1].SessionID)
	require.Equal(t, turns[0].CustomerID, turns[1].CustomerID)
}

func TestNewChatService_ValidatesDependencies(t *testing.T) {
	f := newChatFixture("x")
	_, err := NewChatService(ChatDeps{LLM: f.llm, Turns: f.turns, Banking: f.banking}, ChatOptions{})
	require.Error(t, err)
	_, err = NewChatService(ChatDeps{Config: f.config, Turns: f.turns, Banking: f.banking}, ChatOptions{})
	require.Error(t, err)
	_, err = NewChatService(ChatDeps{Config: f.config, LLM: f.llm, Banking: f.banking}, ChatOptions{})
	require.Error(t, err)
	_, err = NewChatService(ChatDeps{Config: f.config, LLM: f.llm, Turns: f.turns}, ChatOptions{})
	require.Error(t, err)

	svc := f.service(t, ChatOptions{})
	require.Equal(t, defaultMaxMessage, svc.maxMessageLen)
	require.Equal(t, defaultModelTimeout, svc.modelTimeout)
	require.IsType(t, KeywordExtractor{}, svc.intent)
}

func TestHandleMessage_BalanceIsEnriched(t *testing.T) {
	f := newChatFixture("Sure, here it is:")
	f.llm.completion.Text = "Sure, here is your balance:"
	svc := f.service(t, ChatOptions{})

	out, err := svc.HandleMessage(context.Background(), ChatInput{
		CustomerID: "1234567890",
		SessionID:  "chat_1",
		Message:    "  What's my balance?  ",
	})
	require.NoError(t, err)

	want := "Sure, here is your balance:\n\nCHECKING: USD 1500.00\nSAVINGS: USD 5000.00"
	require.Equal(t, want, out.Response)
	require.Equal(t, "chat_1", out.SessionID)
	require.Equal(t, domain.ActionBalance, out.Action)
	requirePaired(t, f.turns.turns, "What's my balance?", want)

	require.Equal(t, 120, out.Metrics.TokenUsage)
	require.InDelta(t, CompletionQuality("Sure, here is your balance:"), out.Metrics.CompletionQuality, 1e-9)
	require.Len(t, f.metrics.written, 1)
	require.Equal(t, "chat_1", f.metrics.written[0].SessionID)
	require.Equal(t, "gpt-4o-mini", f.llm.model)
}

func TestHandleMessage_NoActionReturnsRawReply(t *testing.T) {
	f := newChatFixture("Hello! How can I help?")
	svc := f.service(t, ChatOptions{})

	out, err := svc.HandleMessage(context.Background(), ChatInput{CustomerID: "c1", Message: "hi"})
	require.NoError(t, err)
	require.Equal(t, "Hello! How can I help?", out.Response)
	require.Equal(t, domain.ActionNone, out.Action)
	require.Empty(t, f.banking.txCalls)
	requirePaired(t, f.turns.turns, "hi", "Hello! How can I help?")
}

func TestHandleMessage_ZeroAccountsKeepsRawReply(t *testing.T) {
	f := newChatFixture("Checking your balance now.")
	f.banking.accounts = nil
	svc := f.service(t, ChatOptions{})

	out, err := svc.HandleMessage(context.Background(), ChatInput{CustomerID: "c1", Message: "can you help?"})
	require.NoError(t, err)
	require.Equal(t, "Checking your balance now.", out.Response)
	require.Equal(t, domain.ActionBalance, out.Action)
}

func TestHandleMessage_TransactionsAreEnriched(t *testing.T) {
	f := newChatFixture("Here are your recent transactions:")
	f.banking.txs = map[string][]domain.Transaction{
		"acc-1": {{Description: "Payroll deposit", Amount: 1000, CreatedAt: time.Date(2025, 1, 27, 0, 0, 0, 0, time.UTC)}},
	}
	svc := f.service(t, ChatOptions{})

	out, err := svc.HandleMessage(context.Background(), ChatInput{CustomerID: "c1", Message: "recent activity"})
	require.NoError(t, err)
	require.Equal(t, "Here are your recent transactions:\n\n2025-01-27: Payroll deposit (+1000.00)", out.Response)
}

func TestHandleMessage_GeneratesSessionID(t *testing.T) {
	orig := newSessionID
	t.Cleanup(func() { newSessionID = orig })
	newSessionID = func() string { return "chat_generated" }

	f := newChatFixture("ok")
	svc := f.service(t, ChatOptions{})
	out, err := svc.HandleMessage(context.Background(), ChatInput{CustomerID: "c1", Message: "hi"})
	require.NoError(t, err)
	require.Equal(t, "chat_generated", out.SessionID)
	require.Equal(t, "chat_generated", f.turns.turns[0].SessionID)
}

func TestHandleMessage_PromptCarriesHistoryOnce(t *testing.T) {
	f := newChatFixture("ok")
	f.turns.seed("chat_1", "c1", "earlier question", "earlier answer")
	svc := f.service(t, ChatOptions{})

	_, err := svc.HandleMessage(context.Background(), ChatInput{CustomerID: "c1", SessionID: "chat_1", Message: "new question"})
	require.NoError(t, err)

	msgs := f.llm.captured
	require.Len(t, msgs, 4)
	require.Equal(t, "system", msgs[0].Role)
	require.Contains(t, msgs[0].Content, "- CHECKING (USD)")
	require.Equal(t, domain.ChatMessage{Role: "user", Content: "earlier question"}, msgs[1])
	require.Equal(t, domain.ChatMessage{Role: "assistant", Content: "earlier answer"}, msgs[2])
	require.Equal(t, domain.ChatMessage{Role: "user", Content: "new question"}, msgs[3])
}

func TestHandleMessage_InvalidInput(t *testing.T) {
	f := newChatFixture("ok")
	svc := f.service(t, ChatOptions{MaxMessageLen: 10})

	_, err := svc.HandleMessage(context.Background(), ChatInput{CustomerID: "c1", Message: "   "})
	requireCode(t, err, ErrorInvalidInput)
	_, err = svc.HandleMessage(context.Background(), ChatInput{CustomerID: "c1", Message: "this is far too long"})
	requireCode(t, err, ErrorInvalidInput)
	_, err = svc.HandleMessage(context.Background(), ChatInput{Message: "hi"})
	requireCode(t, err, ErrorInvalidInput)

	require.Empty(t, f.turns.turns)
	require.Zero(t, f.llm.calls)
}

func TestHandleMessage_LengthCountsCharacters(t *testing.T) {
	f := newChatFixture("ok")
	svc := f.service(t, ChatOptions{MaxMessageLen: 10})

	_, err := svc.HandleMessage(context.Background(), ChatInput{CustomerID: "c1", SessionID: "chat_1", Message: "ééééééééé"})
	require.NoError(t, err)
	requirePaired(t, f.turns.turns, "ééééééééé", "ok")

	_, err = svc.HandleMessage(context.Background(), ChatInput{CustomerID: "c1", SessionID: "chat_1", Message: "ééééééééééé"})
	requireCode(t, err, ErrorInvalidInput)
}

func TestHandleMessage_CancelAfterReplyStillPairsTurns(t *testing.T) {
	f := newChatFixture("Happy to help with that.")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.llm.afterReply = cancel

	svc, err := NewChatService(ChatDeps{
		Config:  f.config,
		LLM:     f.llm,
		Turns:   ctxTurns{f.turns},
		Banking: f.banking,
		Metrics: f.metrics,
	}, ChatOptions{})
	require.NoError(t, err)

	out, err := svc.HandleMessage(ctx, ChatInput{CustomerID: "c1", SessionID: "chat_1", Message: "can you help?"})
	require.NoError(t, err)
	require.Error(t, ctx.Err())
	require.Equal(t, "Happy to help with that.", out.Response)
	requirePaired(t, f.turns.turns, "can you help?", "Happy to help with that.")
}

func TestHandleMessage_FailureReturnsSessionID(t *testing.T) {
	orig := newSessionID
	t.Cleanup(func() { newSessionID = orig })
	newSessionID = func() string { return "chat_generated" }

	f := newChatFixture("")
	f.llm.err = errBoom
	svc := f.service(t, ChatOptions{})

	out, err := svc.HandleMessage(context.Background(), ChatInput{CustomerID: "c1", Message: "hi"})
	requireCode(t, err, ErrorModelProvider)
	require.Equal(t, "chat_generated", out.SessionID)
	require.Empty(t, out.Response)
	require.Equal(t, "chat_generated", f.turns.turns[1].SessionID)
}

func TestHandleMessage_ModelFailureStillPairsTurns(t *testing.T) {
	f := newChatFixture("")
	f.llm.err = errBoom
	svc := f.service(t, ChatOptions{})

	_, err := svc.HandleMessage(context.Background(), ChatInput{CustomerID: "c1", Message: "hi"})
	requireCode(t, err, ErrorModelProvider)
	require.ErrorIs(t, err, errBoom)
	requirePaired(t, f.turns.turns, "hi", fallbackReply)
	require.Empty(t, f.metrics.written)
}

func TestHandleMessage_ModelRateLimited(t *testing.T) {
	f := newChatFixture("")
	f.llm.err = &statusErr{code: 429}
	svc := f.service(t, ChatOptions{})

	_, err := svc.HandleMessage(context.Background(), ChatInput{CustomerID: "c1", Message: "hi"})
	requireCode(t, err, ErrorModelProvider)
	var ue *Error
	require.True(t, errors.As(err, &ue))
	require.Equal(t, "model_rate_limited", ue.Reason)
}

func TestHandleMessage_EmptyCompletion(t *testing.T) {
	f := newChatFixture("   ")
	svc := f.service(t, ChatOptions{})

	_, err := svc.HandleMessage(context.Background(), ChatInput{CustomerID: "c1", Message: "hi"})
	requireCode(t, err, ErrorModelProvider)
	requirePaired(t, f.turns.turns, "hi", fallbackReply)
}

func TestHandleMessage_ModelTimeoutIsProcessingFailed(t *testing.T) {
	f := newChatFixture("late")
	f.llm.delay = time.Second
	svc := f.service(t, ChatOptions{ModelTimeout: 20 * time.Millisecond})

	_, err := svc.HandleMessage(context.Background(), ChatInput{CustomerID: "c1", Message: "hi"})
	requireCode(t, err, ErrorProcessingFailed)
	var ue *Error
	require.True(t, errors.As(err, &ue))
	require.Equal(t, "model_timeout", ue.Reason)
	requirePaired(t, f.turns.turns, "hi", fallbackReply)
}

func TestHandleMessage_ContextFailureStillPairsTurns(t *testing.T) {
	f := newChatFixture("ok")
	f.turns.recentErr = errBoom
	svc := f.service(t, ChatOptions{})

	_, err := svc.HandleMessage(context.Background(), ChatInput{CustomerID: "c1", Message: "hi"})
	requireCode(t, err, ErrorProcessingFailed)
	requirePaired(t, f.turns.turns, "hi", fallbackReply)
	require.Zero(t, f.llm.calls)
}

func TestHandleMessage_ConfigFailureStillPairsTurns(t *testing.T) {
	f := newChatFixture("ok")
	f.config.err = errBoom
	svc := f.service(t, ChatOptions{})

	_, err := svc.HandleMessage(context.Background(), ChatInput{CustomerID: "c1", Message: "hi"})
	requireCode(t, err, ErrorProcessingFailed)
	requirePaired(t, f.turns.turns, "hi", fallbackReply)
}

func TestHandleMessage_UserTurnFailureStoresNothing(t *testing.T) {
	f := newChatFixture("ok")
	f.turns.appendErrs = []error{errBoom}
	svc := f.service(t, ChatOptions{})

	_, err := svc.HandleMessage(context.Background(), ChatInput{CustomerID: "c1", Message: "hi"})
	requireCode(t, err, ErrorProcessingFailed)
	require.Empty(t, f.turns.turns)
	require.Zero(t, f.llm.calls)
}

func TestHandleMessage_BotTurnFailure(t *testing.T) {
	f := newChatFixture("ok")
	f.turns.appendErrs = []error{nil, errBoom}
	svc := f.service(t, ChatOptions{})

	_, err := svc.HandleMessage(context.Background(), ChatInput{CustomerID: "c1", Message: "hi"})
	requireCode(t, err, ErrorProcessingFailed)
	require.Empty(t, f.metrics.written)
}

func TestHandleMessage_MetricsFailureDoesNotFailCall(t *testing.T) {
	f := newChatFixture("Thanks")
	f.metrics.err = errBoom
	svc := f.service(t, ChatOptions{})

	out, err := svc.HandleMessage(context.Background(), ChatInput{CustomerID: "c1", Message: "hi"})
	require.NoError(t, err)
	require.Equal(t, "Thanks", out.Response)
	require.InDelta(t, 0.667, out.Metrics.CompletionQuality, 0.001)
}

func TestHandleMessage_ActionFailureDegrades(t *testing.T) {
	f := newChatFixture("Here is your balance.")
	svc := f.service(t, ChatOptions{})
	f.banking.accountsErr = errBoom

	out, err := svc.HandleMessage(context.Background(), ChatInput{CustomerID: "c1", Message: "balance"})
	require.NoError(t, err)
	require.Equal(t, "Here is your balance.", out.Response)
}

func TestHandleMessage_LoadsConfigOnce(t *testing.T) {
	f := newChatFixture("ok")
	svc := f.service(t, ChatOptions{})

	for i := 0; i < 3; i++ {
		_, err := svc.HandleMessage(context.Background(), ChatInput{CustomerID: "c1", Message: "hi"})
		require.NoError(t, err)
	}
	require.Equal(t, 1, f.config.calls)
	require.Len(t, f.turns.turns, 6)
}

func TestHandleMessage_ConfigRetriedAfterFailure(t *testing.T) {
	f := newChatFixture("ok")
	f.config.err = errBoom
	svc := f.service(t, ChatOptions{})

	_, err := svc.HandleMessage(context.Background(), ChatInput{CustomerID: "c1", Message: "hi"})
	require.Error(t, err)

	f.config.err = nil
	_, err = svc.HandleMessage(context.Background(), ChatInput{CustomerID: "c1", Message: "hi"})
	require.NoError(t, err)
	require.Equal(t, 2, f.config.calls)
}

type fixedIntent struct{ kind domain.ActionKind }

func (f fixedIntent) Extract(string) domain.ActionKind { return f.kind }

func TestHandleMessage_PluggableIntent(t *testing.T) {
	f := newChatFixture("no keywords at all")
	svc, err := NewChatService(ChatDeps{
		Config:  f.config,
		LLM:     f.llm,
		Turns:   f.turns,
		Banking: f.banking,
		Intent:  fixedIntent{kind: domain.ActionBalance},
	}, ChatOptions{})
	require.NoError(t, err)

	out, err := svc.HandleMessage(context.Background(), ChatInput{CustomerID: "c1", Message: "hi"})
	require.NoError(t, err)
	require.Equal(t, "no keywords at all\n\nCHECKING: USD 1500.00\nSAVINGS: USD 5000.00", out.Response)
}

func TestHistory(t *testing.T) {
	f := newChatFixture("ok")
	f.turns.seed("chat_1", "c1", "u1", "b1", "u2", "b2")
	f.turns.seed("chat_1", "intruder", "x")
	svc := f.service(t, ChatOptions{})

	turns, err := svc.History(context.Background(), HistoryInput{CustomerID: "c1", SessionID: "chat_1", Limit: 3})
	require.NoError(t, err)
	require.Equal(t, []string{"b2", "u2"}, texts(turns))

	turns, err = svc.History(context.Background(), HistoryInput{CustomerID: "c1", SessionID: "chat_1"})
	require.NoError(t, err)
	require.Equal(t, []string{"b2", "u2", "b1", "u1"}, texts(turns))

	_, err = svc.History(context.Background(), HistoryInput{CustomerID: "c1"})
	requireCode(t, err, ErrorInvalidInput)

	f.turns.recentErr = errBoom
	_, err = svc.History(context.Background(), HistoryInput{CustomerID: "c1", SessionID: "chat_1"})
	requireCode(t, err, ErrorServiceUnavailable)
}

func TestCodeOf(t *testing.T) {
	require.Equal(t, ErrorNoToken, CodeOf(newError(ErrorNoToken, "x", nil)))
	require.Equal(t, ErrorProcessingFailed, CodeOf(errBoom))
}
