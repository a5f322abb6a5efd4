package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd 代表基础命令
var rootCmd = &cobra.Command{
	Use:   "gateway-cli",
	Short: "Tezos gateway 运维工具",
	Long: `离线工具: 按入口点类型编码调用参数, 生成签名密钥,
以及把助记词加密为 send-worker 使用的 keystore 文件。`,
}

// Execute 将所有子命令添加到根命令并执行
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
