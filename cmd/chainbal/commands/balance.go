package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBalanceCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <address>",
		Short: "Print the native and asset balance of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			querier, err := opts.querier()
			if err != nil {
				return err
			}
			snapshot, err := querier.Balances(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.json {
				return writeJSON(out, snapshot)
			}
			native := snapshot.Native
			fmt.Fprintf(out, "account    %s\n", snapshot.Address)
			fmt.Fprintf(out, "free       %s %s\n", native.Free.Display, native.Free.Symbol)
			fmt.Fprintf(out, "reserved   %s %s\n", native.Reserved.Display, native.Reserved.Symbol)
			fmt.Fprintf(out, "asset %-4d %s %s\n", snapshot.Asset.AssetID, snapshot.Asset.Balance.Display, snapshot.Asset.Balance.Symbol)
			if snapshot.Price.Available {
				fmt.Fprintf(out, "price      %.4f USD/%s\n", snapshot.Price.USD, snapshot.Price.Symbol)
			} else {
				fmt.Fprintf(out, "price      unavailable\n")
			}
			return nil
		},
	}
}
