// chat.go implements "bankctl chat", an interactive session through the
// conversation pipeline.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"bank-assistant/internal/config"
	"bank-assistant/internal/integrations/openai"
	"bank-assistant/internal/repository"
	"bank-assistant/internal/usecase"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Log in and chat with the assistant",
	Long: `Log in with an account number and online banking code, then chat with
the assistant. The code is read without echo when stdin is a terminal.
Type /quit to leave or /logout to end the session.`,
	RunE: runChat,
}

var (
	accountFlag string
	sessionFlag string
	metricsFlag bool
)

func init() {
	chatCmd.Flags().StringVar(&accountFlag, "account", "", "Account number to log in with")
	chatCmd.Flags().StringVar(&sessionFlag, "session", "", "Resume an existing chat session")
	chatCmd.Flags().BoolVar(&metricsFlag, "metrics", false, "Print token usage and latency after each reply")
	_ = chatCmd.MarkFlagRequired("account")
}

type messageSender interface {
	HandleMessage(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := repository.NewSQLiteStore(cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	auth, err := usecase.NewAuthService(store, store, cfg.SessionTTL())
	if err != nil {
		return err
	}
	chat, err := newChatService(cfg, store)
	if err != nil {
		return err
	}

	in := bufio.NewReader(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	code, err := readCode(in, out)
	if err != nil {
		return err
	}
	login, err := auth.Login(cmd.Context(), accountFlag, code)
	if err != nil {
		if usecase.CodeOf(err) == usecase.ErrorInvalidCredentials {
			return errors.New("invalid credentials")
		}
		return err
	}
	fmt.Fprintf(out, "Logged in as %s. Session expires %s.\n", login.CustomerID, login.ExpiresAt.Local().Format("2006-01-02 15:04"))

	loggedOut, err := chatLoop(cmd.Context(), in, out, chat, login.CustomerID, sessionFlag, metricsFlag)
	if err != nil {
		return err
	}
	if loggedOut {
		if err := auth.Logout(cmd.Context(), login.Token); err != nil {
			return err
		}
		fmt.Fprintln(out, "Logged out.")
	}
	return nil
}

func newChatService(cfg *config.Config, store *repository.SQLiteStore) (*usecase.ChatService, error) {
	key, err := cfg.APIKey()
	if err != nil {
		return nil, err
	}
	opts := []openai.Option{openai.WithBaseURL(cfg.LLM.BaseURL)}
	if cfg.LLM.Referer != "" {
		opts = append(opts, openai.WithHeader("HTTP-Referer", cfg.LLM.Referer))
	}
	if cfg.LLM.Title != "" {
		opts = append(opts, openai.WithHeader("X-Title", cfg.LLM.Title))
	}
	llm, err := openai.NewStaticKeyClient(key, opts...)
	if err != nil {
		return nil, err
	}

	text, err := cfg.PromptTemplate()
	if err != nil {
		return nil, err
	}
	prompt, err := usecase.ParsePromptTemplate(text)
	if err != nil {
		return nil, err
	}

	return usecase.NewChatService(usecase.ChatDeps{
		Config:  usecase.StaticConfigSource{Config: usecase.RuntimeConfig{Model: cfg.LLM.Model, SystemPrompt: prompt}},
		LLM:     llm,
		Turns:   store,
		Banking: store,
		Metrics: store,
	}, usecase.ChatOptions{
		HistoryLimit:  cfg.Chat.HistoryLimit,
		MaxMessageLen: cfg.Chat.MaxMessageLength,
		ModelTimeout:  cfg.ModelTimeout(),
	})
}

var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// readCode reads the online banking code without echo when stdin is a
// terminal, and as a plain line otherwise.
func readCode(in *bufio.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Online banking code: ")
	if stdinIsTerminal() {
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("reading code: %w", err)
		}
		return strings.TrimSpace(string(raw)), nil
	}
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading code: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// chatLoop sends each input line through chat until EOF, /quit or /logout.
// It reports whether the user asked to log out. Per-message failures are
// printed and the loop continues.
func chatLoop(ctx context.Context, in *bufio.Reader, out io.Writer, chat messageSender, customerID, sessionID string, showMetrics bool) (bool, error) {
	for {
		fmt.Fprint(out, "> ")
		line, err := in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, fmt.Errorf("reading input: %w", err)
		}
		eof := errors.Is(err, io.EOF)

		msg := strings.TrimSpace(line)
		switch msg {
		case "/quit", "/exit":
			return false, nil
		case "/logout":
			return true, nil
		case "":
			if eof {
				fmt.Fprintln(out)
				return false, nil
			}
			continue
		}

		res, err := chat.HandleMessage(ctx, usecase.ChatInput{
			CustomerID: customerID,
			SessionID:  sessionID,
			Message:    msg,
		})
		if res.SessionID != "" {
			sessionID = res.SessionID
		}
		if err != nil {
			fmt.Fprintf(out, "error: %s\n", usecase.CodeOf(err))
		} else {
			fmt.Fprintln(out, res.Response)
			if showMetrics {
				fmt.Fprintf(out, "[session %s | %d tokens | %d ms | quality %.2f]\n",
					res.SessionID, res.Metrics.TokenUsage, res.Metrics.ResponseTimeMs, res.Metrics.CompletionQuality)
			}
		}
		if eof {
			return false, nil
		}
	}
}
