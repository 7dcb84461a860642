package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ragchat/internal/retrieval"
)

var flagAskCollection string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question, or start an interactive chat without arguments",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, 0)
		if err != nil {
			return err
		}
		defer a.close()

		var searcher retrieval.Searcher
		if flagAskCollection != "" {
			h, err := a.openCollection(cmd.Context(), flagAskCollection)
			if err != nil {
				return err
			}
			searcher = h
		}

		if len(args) > 0 {
			return askOnce(cmd.Context(), a, searcher, strings.Join(args, " "))
		}
		return chatLoop(cmd.Context(), a, searcher)
	},
}

func askOnce(ctx context.Context, a *app, searcher retrieval.Searcher, question string) error {
	ans, err := a.conversation.Ask(ctx, flagSession, question, searcher, func(d string) {
		fmt.Print(d)
	})
	fmt.Println()
	if err != nil {
		return err
	}
	for _, s := range ans.Sources {
		switch {
		case s.Upload:
			fmt.Printf("  [upload] %s\n", s.SourceFile)
		case s.Position != "":
			fmt.Printf("  [%.3f] %s (%s)\n", s.Score, s.SourceFile, s.Position)
		default:
			fmt.Printf("  [%.3f] %s\n", s.Score, s.SourceFile)
		}
	}
	return nil
}

func chatLoop(ctx context.Context, a *app, searcher retrieval.Searcher) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	fmt.Println("ragchat (type /help for commands, /exit to quit)")
	fmt.Println()

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "/exit", "/quit":
			fmt.Println("Goodbye.")
			return nil
		case "/clear":
			if err := a.conversation.Reset(flagSession); err != nil {
				fmt.Fprintf(os.Stderr, "clear history: %v\n", err)
				continue
			}
			fmt.Println("Conversation cleared.")
			continue
		case "/upload":
			res, err := a.uploads.Inline(ctx, flagSession, fields[1:])
			if res != nil {
				printFailures(res.Failures)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "upload: %v\n", err)
				continue
			}
			fmt.Printf("Attached %d file(s), %d tokens.\n", len(res.Files), res.Tokens)
			continue
		case "/help":
			fmt.Println("Commands:")
			fmt.Println("  /upload <paths> - attach files to the next question")
			fmt.Println("  /clear          - clear conversation history")
			fmt.Println("  /exit           - quit chat")
			fmt.Println("  /help           - show this help")
			continue
		}

		fmt.Println()
		if err := askOnce(ctx, a, searcher, line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		fmt.Println()
	}

	return scanner.Err()
}

func init() {
	askCmd.Flags().StringVarP(&flagAskCollection, "collection", "c", "", "collection to retrieve context from (name or id)")
	askCmd.Flags().StringVar(&flagSession, "session", "default", "session whose history and uploads to use")
	rootCmd.AddCommand(askCmd)
}
