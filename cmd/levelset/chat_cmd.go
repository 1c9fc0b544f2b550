package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/git6keen/Levelset-sub001/internal/relay"
	"github.com/git6keen/Levelset-sub001/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Send one message to the assistant",
	Long: `Streams the assistant's reply to stdout. Tool calls it proposes are listed
after the reply and each one runs only if you confirm it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

var (
	chatRole    string
	chatContext string
	chatYes     bool
)

func init() {
	chatCmd.Flags().StringVar(&chatRole, "role", "", "Perspective the assistant should take (e.g. coach)")
	chatCmd.Flags().StringVar(&chatContext, "context", "", "Extra context for the assistant")
	chatCmd.Flags().BoolVarP(&chatYes, "yes", "y", false, "Run every proposed tool call without asking")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	req := relay.ChatRequest{
		Message: strings.Join(args, " "),
		Role:    chatRole,
		Context: chatContext,
	}

	var previews []tui.Preview
	client := tui.NewClient(apiAddr)
	err := client.Stream(ctx, req, func(f relay.Frame) {
		switch f.Type {
		case relay.FrameText:
			fmt.Print(f.Text)
		case relay.FrameToolCall:
			previews = append(previews, tui.Preview{Name: f.Name, Args: f.Args})
		case relay.FrameError:
			fmt.Fprintf(os.Stderr, "\n[%s] %s\n", f.Code, f.Message)
		}
	})
	fmt.Println()
	if err != nil && ctx.Err() == nil {
		return err
	}

	return confirmPreviews(ctx, previews, os.Stdin, os.Stdout)
}

// confirmPreviews asks about each proposed call in order and runs the ones
// the user accepts.
func confirmPreviews(ctx context.Context, previews []tui.Preview, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	for _, p := range previews {
		if ctx.Err() != nil {
			return nil
		}
		if !chatYes {
			fmt.Fprintf(out, "Run %s? [y/N] ", p.Summary())
			answer, err := reader.ReadString('\n')
			if err != nil && answer == "" {
				return nil
			}
			if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
				fmt.Fprintln(out, "  skipped")
				continue
			}
		}

		result, err := executeTool(p.Name, p.Args)
		if err != nil {
			fmt.Fprintf(out, "  ✗ %v\n", err)
			continue
		}
		fmt.Fprintf(out, "  ✓ %s\n", p.Name)
		if m, ok := result.(map[string]any); ok {
			if text, ok := m["text"].(string); ok {
				fmt.Fprintln(out, text)
			}
		}
	}
	return nil
}
