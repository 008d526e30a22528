package main

import "github.com/ppiankov/trustplane/internal/cli"

func main() {
	cli.Execute()
}
