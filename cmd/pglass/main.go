package main

import "github.com/mcoot/poisonedglass/internal/cli"

func main() {
	cli.Execute()
}
