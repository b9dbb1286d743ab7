package main

import "github.com/sanixdarker/strapisource/internal/cli"

func main() {
	cli.Execute()
}
