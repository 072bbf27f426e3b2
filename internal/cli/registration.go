package cli

import (
	"net/url"

	"github.com/spf13/cobra"
)

func newRegistrationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "registration",
		Aliases: []string{"reg"},
		Short:   "Inspect registration records",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every registration record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result RegistrationList
			if err := client.Get("/api/v1/registrations", &result); err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <account>",
		Short: "Show the registration record of a game account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result Registration
			if err := client.Get("/api/v1/registrations/"+url.PathEscape(args[0]), &result); err != nil {
				return err
			}
			NewOutput(cfg.Output, cmd.OutOrStdout()).Print(result)
			return nil
		},
	})

	return cmd
}
