package main

import "github.com/devicelab-dev/uiscope/pkg/cli"

func main() {
	cli.Execute()
}
