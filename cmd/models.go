package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"ragchat/internal/embedder"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models available on the embedding server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		models, err := embedder.ListModels(cmd.Context(), cfg.Embedding.URL)
		if err != nil {
			return err
		}
		for _, m := range models {
			marker := " "
			if m.Name == cfg.Embedding.DefaultModel {
				marker = "*"
			}
			fmt.Printf("%s %-40s %s\n", marker, m.Name, embedder.FormatSize(m.Size))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
