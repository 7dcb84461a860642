package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var flagK int

var searchCmd = &cobra.Command{
	Use:   "search <collection> <query>",
	Short: "Show the passages a question would retrieve from a collection",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, 0)
		if err != nil {
			return err
		}
		defer a.close()

		h, err := a.openCollection(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		k := flagK
		if k <= 0 {
			k = cfg.RAG.NumDocs
		}
		query := strings.Join(args[1:], " ")
		passages, err := a.pipeline.Retrieve(cmd.Context(), query, h, k)
		if err != nil {
			return err
		}
		if len(passages) == 0 {
			fmt.Printf("No results found for query: %q\n", query)
			return nil
		}
		for i, p := range passages {
			loc := p.SourceFile
			if p.Position != "" {
				loc += " (" + p.Position + ")"
			}
			fmt.Printf("--- %d. %s  score %.3f ---\n%s\n\n", i+1, loc, p.Score, p.Content)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVar(&flagK, "k", 0, "passages to return (default rag.num_docs)")
	rootCmd.AddCommand(searchCmd)
}
