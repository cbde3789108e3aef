package main

import "github.com/jonathanmorav/unified-dashboard/internal/cli"

func main() {
	cli.Execute()
}
