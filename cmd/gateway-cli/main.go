package main

import "tezos-gateway/cmd/gateway-cli/cmd"

func main() {
	cmd.Execute()
}
