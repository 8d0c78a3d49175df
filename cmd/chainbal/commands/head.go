package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHeadCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "head",
		Short: "Print the best and finalized block",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			querier, err := opts.querier()
			if err != nil {
				return err
			}
			head, err := querier.ChainHead(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.json {
				return writeJSON(out, head)
			}
			fmt.Fprintf(out, "best       #%d (parent %s)\n", head.BestNumber, head.Best.ParentHash)
			fmt.Fprintf(out, "finalized  #%d %s\n", head.FinalizedNumber, head.FinalizedHash)
			for _, item := range head.BestDigest {
				fmt.Fprintf(out, "digest     %s %s\n", item.Kind, item.Engine)
			}
			return nil
		},
	}
}
