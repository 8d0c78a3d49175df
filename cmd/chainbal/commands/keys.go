package commands

import (
	"fmt"

	"chainbal/internal/substrate/hexutil"
	"chainbal/internal/substrate/ss58"
	"chainbal/internal/substrate/storage"

	"github.com/spf13/cobra"
)

type keysOutput struct {
	Address    string `json:"address"`
	Prefix     uint16 `json:"ss58_prefix"`
	PublicKey  string `json:"public_key"`
	AccountKey string `json:"system_account_key"`
	AssetID    uint32 `json:"asset_id"`
	AssetKey   string `json:"assets_account_key"`
}

// keys works offline; it never contacts the node.
func newKeysCommand(opts *globalOptions) *cobra.Command {
	var assetID uint32
	cmd := &cobra.Command{
		Use:   "keys <address>",
		Short: "Print the storage keys read for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("asset-id") {
				assetID = opts.settings.AssetID
			}
			address := args[0]
			prefix, err := ss58.Prefix(address)
			if err != nil {
				return err
			}
			publicKey, err := ss58.Decode(address)
			if err != nil {
				return err
			}
			accountKey, err := storage.AccountKey(publicKey)
			if err != nil {
				return err
			}
			assetKey, err := storage.AssetAccountKey(assetID, publicKey)
			if err != nil {
				return err
			}
			result := keysOutput{
				Address:    address,
				Prefix:     prefix,
				PublicKey:  hexutil.Encode(publicKey[:]),
				AccountKey: accountKey.Hex(),
				AssetID:    assetID,
				AssetKey:   assetKey.Hex(),
			}

			out := cmd.OutOrStdout()
			if opts.json {
				return writeJSON(out, result)
			}
			fmt.Fprintf(out, "prefix          %d\n", result.Prefix)
			fmt.Fprintf(out, "public key      %s\n", result.PublicKey)
			fmt.Fprintf(out, "System.Account  %s\n", result.AccountKey)
			fmt.Fprintf(out, "Assets.Account  %s\n", result.AssetKey)
			return nil
		},
	}
	cmd.Flags().Uint32Var(&assetID, "asset-id", 0, "asset id for the Assets.Account key (default ASSET_ID)")
	return cmd
}
