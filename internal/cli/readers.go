// internal/cli/readers.go
package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"librarydesk/internal/membership"
)

func newReadersCommand(appFn func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "readers",
		Short: "List and register readers",
	}
	cmd.AddCommand(
		newReadersListCommand(appFn),
		newReadersRegisterCommand(appFn),
	)
	return cmd
}

func newReadersListCommand(appFn func() *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every reader",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			readers := appFn().library.Membership().Readers(cmd.Context())
			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(readers)
			}
			for _, r := range readers {
				printReader(cmd.OutOrStdout(), r)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of text")
	return cmd
}

func newReadersRegisterCommand(appFn func() *app) *cobra.Command {
	var fields membership.ReaderFields
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a reader and save",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFn()
			reader, err := a.library.Membership().Register(cmd.Context(), fields)
			if err != nil {
				return err
			}
			if err := a.save(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered, reader ID: %d\n", reader.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&fields.Name, "name", "", "reader name")
	cmd.Flags().StringVar(&fields.Gender, "gender", "", "reader gender")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
