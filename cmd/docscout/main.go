package main

import "github.com/csheth/docscout/internal/cli"

func main() {
	cli.Execute()
}
