// Package command parses inbound chat messages and routes them to the
// order flow.
package command

import (
	"strings"
)

// Command is a parsed chat command.
type Command struct {
	Name string
	Args []string
	// Raw is the text after the command name, whitespace preserved.
	Raw string
}

// Arg returns the i-th argument or "".
func (c Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// Rest returns the text after the first n arguments.
func (c Command) Rest(n int) string {
	rest := c.Raw
	for range n {
		rest = strings.TrimLeft(rest, " \t\n")
		i := strings.IndexAny(rest, " \t\n")
		if i < 0 {
			return ""
		}
		rest = rest[i:]
	}
	return strings.TrimSpace(rest)
}

// Parse splits text into a command name and arguments. A leading "/" or "!"
// is accepted and the name is case-insensitive. It returns false for empty
// input.
func Parse(text string) (Command, bool) {
	text = strings.TrimSpace(text)
	text = strings.TrimLeft(text, "/!")
	if text == "" {
		return Command{}, false
	}

	name, raw, _ := strings.Cut(text, " ")
	if i := strings.IndexAny(name, "\t\n"); i >= 0 {
		raw = name[i:] + " " + raw
		name = name[:i]
	}

	return Command{
		Name: strings.ToLower(name),
		Args: strings.Fields(raw),
		Raw:  strings.TrimSpace(raw),
	}, true
}
