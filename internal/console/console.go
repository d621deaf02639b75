package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"golang.org/x/term"
)

const clearScreen = "\033[H\033[2J"

// Handler runs a console command. args are the words following the command name.
type Handler func(c *Console, args []string)

type command struct {
	help    string
	handler Handler
}

// Console is a line oriented interactive console. Every node has the built-in commands
// "?" (help), "c"/"cls" (clear screen) and "q" (quit) and registers its own.
type Console struct {
	Out io.Writer

	scanner  *bufio.Scanner
	commands map[string]command
}

// New creates a console reading commands from in.
func New(in io.Reader, out io.Writer) *Console {
	return &Console{
		Out:      out,
		scanner:  bufio.NewScanner(in),
		commands: map[string]command{},
	}
}

// IsTerminal returns true if f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Handle registers a command.
func (c *Console) Handle(name, help string, handler Handler) {
	c.commands[name] = command{help: help, handler: handler}
}

// Printf writes formatted output.
func (c *Console) Printf(format string, args ...interface{}) {
	fmt.Fprintf(c.Out, format, args...)
}

// Prompt asks for a single line of input. It returns false when input is exhausted.
func (c *Console) Prompt(label string) (string, bool) {
	c.Printf("%s: ", label)
	if !c.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.scanner.Text()), true
}

// Run reads and executes commands until "q" is entered or input is exhausted.
func (c *Console) Run() {
	c.Printf("Type ? for help.\n")
	for {
		c.Printf("> ")
		if !c.scanner.Scan() {
			return
		}

		fields := strings.Fields(c.scanner.Text())
		if len(fields) == 0 {
			continue
		}

		name, args := strings.ToLower(fields[0]), fields[1:]
		switch name {
		case "q", "quit":
			return
		case "?", "help":
			c.help()
		case "c", "cls":
			c.Printf(clearScreen)
		default:
			cmd, ok := c.commands[name]
			if !ok {
				c.Printf("Unknown command %q, type ? for help.\n", name)
				continue
			}
			cmd.handler(c, args)
		}
	}
}

func (c *Console) help() {
	c.Printf("  %-12s %s\n", "?", "show this help")
	c.Printf("  %-12s %s\n", "c, cls", "clear screen")
	c.Printf("  %-12s %s\n", "q", "quit")

	names := make([]string, 0, len(c.commands))
	for name := range c.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c.Printf("  %-12s %s\n", name, c.commands[name].help)
	}
}
