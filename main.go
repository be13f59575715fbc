// Harmony - a node-graph harmony game.
//
// Harmony grows structures of love/logic nodes level by level, scoring
// each structure's balance, connectivity and evolution as a harmony
// percentage. It runs as an interactive console or as an MCP server.
package main

import (
	"fmt"
	"os"

	"github.com/Benny93/harmony-go/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
