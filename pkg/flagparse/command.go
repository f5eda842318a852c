package flagparse

import (
	"fmt"

	"github.com/tsumugu-mirror/tsumugu/pkg/util"
)

// Command identifies which top-level subcommand was invoked.
type Command int

const (
	None Command = iota
	Sync
	List
	Help
)

var commandToString = map[Command]string{
	None: "none",
	Sync: "sync",
	List: "list",
	Help: "help",
}

var stringToCommand map[string]Command

func init() {
	stringToCommand = util.InvertMap(commandToString)
}

func (c Command) String() string {
	if str, ok := commandToString[c]; ok {
		return str
	}
	return fmt.Sprintf("unknown_command(%d)", c)
}

// ParseCommand resolves the first CLI argument into a Command.
func ParseCommand(s string) (Command, error) {
	if command, ok := stringToCommand[s]; ok && command != None {
		return command, nil
	}
	return None, fmt.Errorf("invalid command: %q. Must be 'sync', 'list', or 'help'", s)
}
