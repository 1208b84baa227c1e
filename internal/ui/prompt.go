package ui

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// ErrAborted is returned when input ends before every field is answered.
var ErrAborted = errors.New("input aborted")

// Field is one value to ask the user for.
type Field struct {
	Key    string
	Title  string
	Secret bool
}

// Prompter asks for a set of fields. Terminals get a form, anything else is
// read line by line.
type Prompter struct {
	in          io.Reader
	out         io.Writer
	interactive bool
}

// NewPrompter reads from in and writes prompts to out. in is treated as a
// terminal when it is an *os.File attached to one.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	interactive := false
	if f, ok := in.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}
	return &Prompter{in: in, out: out, interactive: interactive}
}

// Ask returns the answer for every field keyed by Field.Key. Empty answers
// are asked again.
func (p *Prompter) Ask(fields []Field) (map[string]string, error) {
	if p.interactive {
		return p.askForm(fields)
	}
	return p.askLines(fields)
}

func (p *Prompter) askForm(fields []Field) (map[string]string, error) {
	values := make([]string, len(fields))
	inputs := make([]huh.Field, len(fields))
	for i, f := range fields {
		input := huh.NewInput().
			Title(f.Title).
			Value(&values[i]).
			Validate(required)
		if f.Secret {
			input = input.EchoMode(huh.EchoModePassword)
		}
		inputs[i] = input
	}

	if err := huh.NewForm(huh.NewGroup(inputs...)).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, ErrAborted
		}
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	answers := make(map[string]string, len(fields))
	for i, f := range fields {
		answers[f.Key] = strings.TrimSpace(values[i])
	}
	return answers, nil
}

func (p *Prompter) askLines(fields []Field) (map[string]string, error) {
	r := bufio.NewReader(p.in)
	answers := make(map[string]string, len(fields))

	for _, f := range fields {
		for {
			fmt.Fprintf(p.out, "%s: ", f.Title)
			line, err := r.ReadString('\n')
			value := strings.TrimSpace(line)
			if value != "" {
				answers[f.Key] = value
				break
			}
			if err != nil {
				fmt.Fprintln(p.out)
				if errors.Is(err, io.EOF) {
					return nil, ErrAborted
				}
				return nil, fmt.Errorf("failed to read input: %w", err)
			}
		}
	}

	return answers, nil
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("a value is required")
	}
	return nil
}
