// Package command parses chat lines into player commands.
package command

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/mcoot/regwhelp/internal/host"
)

// Prefixes that mark a chat line as a command
const (
	SlashPrefix     = "/"
	AmpersandPrefix = "&"
)

// ErrNotCommand is returned for chat lines without a command prefix
var ErrNotCommand = errors.New("not a command")

// ErrUnknownCommand is returned when no handler is registered for the name
var ErrUnknownCommand = errors.New("unknown command")

// Handler runs a command. args are the words after the command name.
type Handler func(ctx context.Context, player host.Player, args []string) error

// Command is a registered player command
type Command struct {
	Name        string
	Description string
	Handler     Handler
}

// Dispatcher routes command lines to handlers by lower-cased name
type Dispatcher struct {
	mu       sync.RWMutex
	commands map[string]*Command
}

// NewDispatcher creates an empty Dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{commands: make(map[string]*Command)}
}

// Register adds a command under its name
func (d *Dispatcher) Register(cmd Command) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands[strings.ToLower(cmd.Name)] = &cmd
}

// IsCommand reports whether line starts with a command prefix
func IsCommand(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, SlashPrefix) || strings.HasPrefix(line, AmpersandPrefix)
}

// Parse splits a command line into its lower-cased name and arguments.
// Double quotes group words into one argument and are removed.
func Parse(line string) (name string, args []string, err error) {
	line = strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, SlashPrefix):
		line = line[len(SlashPrefix):]
	case strings.HasPrefix(line, AmpersandPrefix):
		line = line[len(AmpersandPrefix):]
	default:
		return "", nil, ErrNotCommand
	}

	fields := splitArgs(line)
	if len(fields) == 0 || fields[0] == "" {
		return "", nil, ErrNotCommand
	}
	return strings.ToLower(fields[0]), fields[1:], nil
}

func splitArgs(line string) []string {
	fields := []string{}
	var cur strings.Builder
	inQuotes, inField := false, false
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			inField = true
		case !inQuotes && unicode.IsSpace(r):
			if inField {
				fields = append(fields, cur.String())
				cur.Reset()
				inField = false
			}
		default:
			cur.WriteRune(r)
			inField = true
		}
	}
	if inField {
		fields = append(fields, cur.String())
	}
	return fields
}

// Dispatch runs the command named on line. Unknown commands message the
// player and return ErrUnknownCommand.
func (d *Dispatcher) Dispatch(ctx context.Context, player host.Player, line string) error {
	name, args, err := Parse(line)
	if err != nil {
		return err
	}

	d.mu.RLock()
	cmd, ok := d.commands[name]
	d.mu.RUnlock()
	if !ok {
		player.SendMessage("Unknown command: " + name)
		return ErrUnknownCommand
	}
	return cmd.Handler(ctx, player, args)
}

// Commands returns the registered commands ordered by name
func (d *Dispatcher) Commands() []Command {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Command, 0, len(d.commands))
	for _, c := range d.commands {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
