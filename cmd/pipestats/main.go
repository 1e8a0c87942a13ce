package main

import (
	"github.com/julienstroheker/pipestats/relay/cmd"
)

func main() {
	cmd.Execute()
}
