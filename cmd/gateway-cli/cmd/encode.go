package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tezos-gateway/internal/encoder"
	"tezos-gateway/internal/michelson"
)

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "按入口点类型编码参数",
	Long: `读取入口点的 Micheline 类型 (JSON 文件) 和 JSON 参数,
输出扁平参数列表以及最终提交给节点的 Micheline 值。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		typeFile, _ := cmd.Flags().GetString("type")
		params, _ := cmd.Flags().GetString("params")

		data, err := os.ReadFile(typeFile)
		if err != nil {
			return fmt.Errorf("读取类型文件失败: %w", err)
		}
		var t michelson.Node
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("解析类型文件失败: %w", err)
		}
		node, err := michelson.ParseType(t)
		if err != nil {
			return err
		}

		encoded, err := encoder.Encode(node, json.RawMessage(params))
		if err != nil {
			return err
		}
		out, _ := json.Marshal(encoded)
		fmt.Printf("Arguments: %s\n", out)

		if params == "" {
			fmt.Println(`Micheline: {"prim":"Unit"}`)
			return nil
		}
		decoded, err := encoder.Decode(json.RawMessage(params))
		if err != nil {
			return err
		}
		value, err := michelson.BuildValue(node, decoded)
		if err != nil {
			return err
		}
		out, _ = json.Marshal(value)
		fmt.Printf("Micheline: %s\n", out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	encodeCmd.Flags().StringP("type", "t", "", "入口点类型 JSON 文件 (Micheline)")
	encodeCmd.Flags().StringP("params", "p", "", "JSON 参数")
	_ = encodeCmd.MarkFlagRequired("type")
}
