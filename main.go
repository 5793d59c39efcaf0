package main

import "ankitui/cmd/ankitui/commands"

func main() {
	commands.Execute()
}
