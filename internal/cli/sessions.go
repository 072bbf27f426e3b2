package cli

import (
	"net/url"

	"github.com/spf13/cobra"
)

func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions [player-id]",
		Short: "List live player sessions, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			if len(args) == 1 {
				var result Session
				if err := client.Get("/api/v1/sessions/"+url.PathEscape(args[0]), &result); err != nil {
					return err
				}
				out.Print(result)
				return nil
			}

			var result SessionList
			if err := client.Get("/api/v1/sessions", &result); err != nil {
				return err
			}
			out.Print(result)
			return nil
		},
	}
}
