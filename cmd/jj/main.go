package main

import "github.com/AngelEzquerra/jj/internal/cli"

func main() {
	cli.Execute()
}
