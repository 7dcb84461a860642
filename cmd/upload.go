package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flagSession string

var uploadCmd = &cobra.Command{
	Use:   "upload <path>...",
	Short: "Attach files as one-shot context for the next question of a session",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, 0)
		if err != nil {
			return err
		}
		defer a.close()

		res, err := a.uploads.Inline(cmd.Context(), flagSession, args)
		if res != nil {
			printFailures(res.Failures)
		}
		if err != nil {
			return err
		}
		fmt.Printf("Attached %d file(s), %d tokens, to session %q\n", len(res.Files), res.Tokens, flagSession)
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVar(&flagSession, "session", "default", "session the upload belongs to")
	rootCmd.AddCommand(uploadCmd)
}
