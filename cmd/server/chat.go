package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ashureev/duhoc-advisor/internal/agent"
	"github.com/ashureev/duhoc-advisor/internal/config"
)

var chatUser string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the advisor from the terminal",
	Long: `Runs conversation turns against the configured store and LLM without
starting the server. Type /reset to start over and /quit to exit.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatUser, "user", "cli-user", "user ID the session belongs to")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())
	fmt.Fprintf(out, "Tư vấn du học (%s). Gõ /quit để thoát.\n> ", a.model.Name())

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "/quit":
			return nil
		case "/reset":
			if err := a.svc.ResetSession(ctx, chatUser); err != nil {
				return err
			}
			fmt.Fprintln(out, "Đã bắt đầu lại cuộc trò chuyện.")
		default:
			res, err := a.svc.Handle(ctx, agent.ChatRequest{UserID: chatUser, Message: line, Channel: "cli"})
			switch {
			case errors.Is(err, agent.ErrValidation):
				fmt.Fprintln(out, "!", err)
			case err != nil:
				return err
			default:
				fmt.Fprintf(out, "%s\n(giai đoạn: %s)\n", res.Reply, res.Phase)
			}
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}
