package main

import "github.com/canopy-network/bftsim/cmd/cli"

func main() {
	cli.Execute()
}
