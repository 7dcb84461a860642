package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ragchat/internal/domain"
)

var (
	flagPublic bool
	flagModel  string
	flagOwner  string
)

var collectionsCmd = &cobra.Command{
	Use:     "collections",
	Aliases: []string{"col"},
	Short:   "Manage document collections",
}

var collectionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List public collections and your private ones",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, 0)
		if err != nil {
			return err
		}
		defer a.close()

		l, err := a.manager.List(cfg.User)
		if err != nil {
			return err
		}
		printCollections("Your collections", l.User)
		printCollections("Public collections", l.Common)
		return nil
	},
}

var collectionsCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a collection bound to an embedding model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, 0)
		if err != nil {
			return err
		}
		defer a.close()

		h, err := a.manager.OpenOrCreateWithModel(cmd.Context(), args[0], cfg.User, flagPublic, flagModel)
		if err != nil {
			return err
		}
		fmt.Printf("Collection %q ready (%s, %s, model %s)\n",
			h.Collection.Name, h.Collection.HashedName, h.Collection.Visibility, h.Collection.EmbeddingModel)
		return nil
	},
}

var collectionsDeleteCmd = &cobra.Command{
	Use:   "delete <name|id>",
	Short: "Delete a collection and its index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, 0)
		if err != nil {
			return err
		}
		defer a.close()

		ns, err := namespaceFlags(flagPublic, flagOwner)
		if err != nil {
			return err
		}
		id, err := deleteCollection(a.manager, args[0], cfg.User, ns)
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", id)
		return nil
	},
}

var collectionsInfoCmd = &cobra.Command{
	Use:   "info <name|id>",
	Short: "Show a collection's model, size and ingested files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg, 0)
		if err != nil {
			return err
		}
		defer a.close()

		ns, err := namespaceFlags(flagPublic, "")
		if err != nil {
			return err
		}
		h, err := openCollection(cmd.Context(), a.manager, args[0], cfg.User, ns)
		if err != nil {
			return err
		}
		info, err := h.Info()
		if err != nil {
			return err
		}
		c := info.Collection
		fmt.Printf("%s (%s)\n", c.Name, c.HashedName)
		fmt.Printf("  Visibility: %s\n", c.Visibility)
		if c.Owner != "" {
			fmt.Printf("  Owner:      %s\n", c.Owner)
		}
		if c.CreatedBy != "" {
			fmt.Printf("  Created by: %s\n", c.CreatedBy)
		}
		fmt.Printf("  Model:      %s\n", c.EmbeddingModel)
		fmt.Printf("  Directory:  %s\n", info.Dir)
		fmt.Printf("  Chunks:     %d\n", info.Chunks)
		fmt.Printf("  Files:      %d\n", len(info.Files))
		for _, f := range info.Files {
			fmt.Printf("    %s  %d chunks  %s\n", f.Name, f.Chunks, f.IndexedAt.Local().Format(time.DateTime))
		}
		return nil
	},
}

func printCollections(title string, cs []domain.Collection) {
	fmt.Printf("%s (%d)\n", title, len(cs))
	for _, c := range cs {
		fmt.Printf("  %-24s %s  %s\n", c.Name, c.HashedName, c.EmbeddingModel)
	}
}

func init() {
	collectionsCreateCmd.Flags().BoolVar(&flagPublic, "public", false, "create in the common namespace, visible to every user")
	collectionsCreateCmd.Flags().StringVar(&flagModel, "model", "", "embedding model (default embedding.default_model)")
	collectionsDeleteCmd.Flags().BoolVar(&flagPublic, "public", false, "delete the public collection even if you have a private one of the same name")
	collectionsDeleteCmd.Flags().StringVar(&flagOwner, "owner", "", "delete from this user's private namespace (admins)")
	collectionsInfoCmd.Flags().BoolVar(&flagPublic, "public", false, "show the public collection even if you have a private one of the same name")

	collectionsCmd.AddCommand(collectionsListCmd, collectionsCreateCmd, collectionsDeleteCmd, collectionsInfoCmd)
	rootCmd.AddCommand(collectionsCmd)
}
