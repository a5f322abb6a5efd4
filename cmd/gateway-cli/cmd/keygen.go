package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tyler-smith/go-bip39"

	"tezos-gateway/internal/signer"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "生成新的签名密钥",
	Long:  `生成一个随机 BIP-39 助记词, 并显示派生出的公钥和 tz 地址。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		mnemonic, _ := cmd.Flags().GetString("mnemonic")

		if mnemonic == "" {
			entropy, err := bip39.NewEntropy(256) // 24 words
			if err != nil {
				return err
			}
			if mnemonic, err = bip39.NewMnemonic(entropy); err != nil {
				return err
			}
			fmt.Printf("助记词 (Mnemonic): \n%s\n", mnemonic)
			fmt.Println("---------------------------------------------------")
		}

		s, err := signer.FromMnemonic(signer.KeyType(kind), mnemonic, "")
		if err != nil {
			return err
		}
		fmt.Printf("Public key: %s\n", s.PublicKey())
		fmt.Printf("Address:    %s\n", s.PublicKeyHash())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringP("kind", "k", string(signer.KeyTypeEd25519), "曲线: ed25519 或 secp256k1")
	keygenCmd.Flags().StringP("mnemonic", "m", "", "使用已有助记词, 不生成新的")
}
