package main

import "github.com/aparcar/buildboard/internal/cli"

func main() {
	cli.Execute()
}
