// history.go implements "bankctl history", which prints stored turns.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"bank-assistant/internal/repository"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print a customer's chat history",
	Long: `Print the turns of one chat session, oldest first. Without --session the
customer's sessions are listed, most recent first.`,
	RunE: runHistory,
}

var (
	historyAccountFlag string
	historySessionFlag string
	historyLimitFlag   int
)

func init() {
	historyCmd.Flags().StringVar(&historyAccountFlag, "account", "", "Account number whose history to show")
	historyCmd.Flags().StringVar(&historySessionFlag, "session", "", "Chat session to print")
	historyCmd.Flags().IntVar(&historyLimitFlag, "limit", 20, "Maximum number of turns to print")
	_ = historyCmd.MarkFlagRequired("account")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := repository.NewSQLiteStore(cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	if historySessionFlag == "" {
		ids, err := store.SessionIDs(ctx, historyAccountFlag)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			fmt.Fprintln(out, "No chat sessions found.")
			return nil
		}
		for _, id := range ids {
			fmt.Fprintln(out, id)
		}
		return nil
	}

	turns, err := store.RecentTurns(ctx, historySessionFlag, historyLimitFlag)
	if err != nil {
		return err
	}
	printed := 0
	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		if t.CustomerID != historyAccountFlag {
			continue
		}
		who := "you"
		if t.IsBot {
			who = "bot"
		}
		fmt.Fprintf(out, "%s  %-3s  %s\n", t.CreatedAt.Local().Format("2006-01-02 15:04:05"), who, t.Text)
		printed++
	}
	if printed == 0 {
		fmt.Fprintln(out, "No messages found.")
	}
	return nil
}
