package main

import "github.com/opsyield/opsyield/cmd/opsyield/commands"

func main() {
	commands.Execute()
}
