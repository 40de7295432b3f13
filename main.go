package main

import "github.com/agentic-research/codepad/cmd"

func main() {
	cmd.Execute()
}
