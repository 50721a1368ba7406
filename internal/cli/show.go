package cli

import (
	"github.com/spf13/cobra"

	prefetch "github.com/bragbook2/brag-book-gallery-sub005"
)

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <case-id>",
		Short: "Load and display one case detail view",
		Args:  cobra.ExactArgs(1),
		RunE: a.runE(func(cmd *cobra.Command, args []string) error {
			outcome, err := a.navigator().Navigate(cmd.Context(), args[0], prefetch.SourceDeepLink)

			a.logger.Debug().
				Str("component", "cli").
				Str("case_id", args[0]).
				Stringer("outcome", outcome).
				Msg("show finished")

			return err
		}),
	}
}
