package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"bank-assistant/handler"
	"bank-assistant/internal/integrations/openai"
	"bank-assistant/internal/integrations/paramstore"
	"bank-assistant/internal/repository"
	"bank-assistant/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	stateTable := mustEnv("STATE_TABLE")
	paramPrefix := mustEnv("PARAM_PREFIX")
	historyLimit := envInt("HISTORY_LIMIT", 5)
	maxMessageLen := envInt("MAX_MESSAGE_LENGTH", 1000)
	sessionTTL := time.Duration(envInt("SESSION_TTL_HOURS", 24)) * time.Hour
	modelTimeout := time.Duration(envInt("MODEL_TIMEOUT_SECONDS", 30)) * time.Second

	var llmOpts []openai.Option
	if baseURL := os.Getenv("LLM_BASE_URL"); baseURL != "" {
		llmOpts = append(llmOpts, openai.WithBaseURL(baseURL))
	}
	if referer := os.Getenv("LLM_REFERER"); referer != "" {
		llmOpts = append(llmOpts, openai.WithHeader("HTTP-Referer", referer))
	}
	if title := os.Getenv("LLM_TITLE"); title != "" {
		llmOpts = append(llmOpts, openai.WithHeader("X-Title", title))
	}

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	store, err := repository.New(awsdynamodb.NewFromConfig(cfg), stateTable)
	if err != nil {
		slog.Error("failed to create state client", "err", err)
		os.Exit(1)
	}

	llmClient, err := openai.NewClient(ssmClient, paramPrefix, llmOpts...)
	if err != nil {
		slog.Error("failed to create LLM client", "err", err)
		os.Exit(1)
	}

	configSource, err := usecase.NewParamConfigSource(ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create config source", "err", err)
		os.Exit(1)
	}

	// ---- Services ----
	authService, err := usecase.NewAuthService(store, store, sessionTTL)
	if err != nil {
		slog.Error("failed to create auth service", "err", err)
		os.Exit(1)
	}
	chatService, err := usecase.NewChatService(usecase.ChatDeps{
		Config:  configSource,
		LLM:     llmClient,
		Turns:   store,
		Banking: store,
		Metrics: store,
	}, usecase.ChatOptions{
		HistoryLimit:  historyLimit,
		MaxMessageLen: maxMessageLen,
		ModelTimeout:  modelTimeout,
	})
	if err != nil {
		slog.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(authService, chatService)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("ignoring invalid environment variable", "key", key, "value", v)
		return def
	}
	return n
}
