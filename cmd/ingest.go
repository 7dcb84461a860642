package cmd

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"
)

var (
	flagWorkers      int
	flagIngestPublic bool
	flagIngestModel  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <collection> <path>...",
	Short: "Add files, directories or archives to a collection",
	Long: "Add files, directories or archives to a collection, creating it if needed.\n" +
		"Files whose content is already in the collection are skipped.",
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, flagWorkers)
		if err != nil {
			return err
		}
		defer a.close()

		h, err := a.manager.OpenOrCreateWithModel(cmd.Context(), args[0], cfg.User, flagIngestPublic, flagIngestModel)
		if err != nil {
			return err
		}

		fmt.Printf("Ingesting into %s (%s)...\n", h.Collection.Name, h.Collection.EmbeddingModel)
		start := time.Now()

		stats, err := a.indexer.Index(cmd.Context(), h, args[1:], nil)
		elapsed := time.Since(start)

		if stats != nil {
			fmt.Printf("\nDone in %s\n", elapsed.Round(time.Millisecond))
			fmt.Printf("  Files:   %d total, %d indexed, %d skipped, %d failed\n",
				stats.FilesTotal, stats.FilesIndexed, stats.FilesSkipped, stats.FilesFailed)
			fmt.Printf("  Chunks:  %d\n", stats.ChunksTotal)
			printFailures(stats.Failures)
		}

		return err
	},
}

func init() {
	ingestCmd.Flags().IntVar(&flagWorkers, "workers", runtime.NumCPU(), "parallel extraction workers")
	ingestCmd.Flags().BoolVar(&flagIngestPublic, "public", false, "use the common namespace")
	ingestCmd.Flags().StringVar(&flagIngestModel, "model", "", "embedding model for a new collection")
	rootCmd.AddCommand(ingestCmd)
}
