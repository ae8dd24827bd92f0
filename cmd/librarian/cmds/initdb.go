package cmds

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/librarian/pkg/library"
)

func NewInitDBCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Reset the book catalog to the sample collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := viper.GetString("books-db")
			if err := ensureDir(path); err != nil {
				return err
			}
			catalog, err := library.Open(path)
			if err != nil {
				return err
			}
			defer func() {
				_ = catalog.Close()
			}()

			if err := catalog.Seed(cmd.Context(), time.Now()); err != nil {
				return err
			}
			genres, err := catalog.ListGenres(cmd.Context())
			if err != nil {
				return err
			}
			books := 0
			for _, g := range genres {
				books += g.BookCount
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s with %d books in %d genres\n", path, books, len(genres))
			return err
		},
	}
}
