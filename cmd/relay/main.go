package main

import (
	"context"
	"fmt"
	"os"

	commands "github.com/lewisedginton/chat_relay/internal/cli"
)

var version = "dev"

func main() {
	if err := commands.NewApp(version).RunContext(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
