package main

import "github.com/vaelis-ai/vaelis-api/internal/cli"

func main() {
	cli.Execute()
}
