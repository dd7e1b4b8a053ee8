package main

import "github.com/wormhole-demo/xswap/cmd"

func main() {
	cmd.Execute()
}
