package cmd

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/term"

	"tezos-gateway/pkg/keystore"
)

var keystoreCmd = &cobra.Command{
	Use:   "keystore",
	Short: "把助记词加密保存为 keystore 文件",
	RunE: func(cmd *cobra.Command, args []string) error {
		mnemonic, _ := cmd.Flags().GetString("mnemonic")
		output, _ := cmd.Flags().GetString("output")

		if !bip39.IsMnemonicValid(mnemonic) {
			return fmt.Errorf("助记词无效")
		}

		fmt.Print("请输入加密密码: ")
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("读取密码失败: %w", err)
		}
		fmt.Print("请再次输入密码: ")
		confirm, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("读取密码失败: %w", err)
		}
		if string(password) != string(confirm) {
			return fmt.Errorf("两次输入的密码不一致")
		}

		encrypted, err := keystore.EncryptMnemonic(mnemonic, string(password))
		if err != nil {
			return err
		}
		if err := encrypted.SaveToFile(output); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Keystore 已保存到 %s\n", output)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keystoreCmd)
	keystoreCmd.Flags().StringP("mnemonic", "m", "", "要加密的助记词")
	keystoreCmd.Flags().StringP("output", "o", "keystore.json", "输出文件")
	_ = keystoreCmd.MarkFlagRequired("mnemonic")
}
