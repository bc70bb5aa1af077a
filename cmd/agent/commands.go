package main

import "strings"

type command int

const (
	cmdMessage command = iota
	cmdEmpty
	cmdClear
	cmdExit
)

// parseCommand classifies one line of REPL input. Anything that is not a
// known slash command is sent to the model as-is.
func parseCommand(line string) command {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "":
		return cmdEmpty
	case "/clear":
		return cmdClear
	case "/exit", "/quit":
		return cmdExit
	}
	return cmdMessage
}
