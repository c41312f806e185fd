package main

import "github.com/felixgeelhaar/ask/cmd/ask/cli"

func main() {
	cli.Execute()
}
