// Package cli provides interactive terminal prompts.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Prompter asks questions on out and reads answers from in.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter creates a prompter. Usually in is os.Stdin and out is
// os.Stdout.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

func (p *Prompter) readAnswer() (string, error) {
	response, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || response == "") {
		return "", fmt.Errorf("reading response: %w", err)
	}
	return strings.TrimSpace(strings.ToLower(response)), nil
}

// Confirm asks a yes/no question with the given default.
// Returns true for yes, false for no.
func (p *Prompter) Confirm(question string, defaultYes bool) (bool, error) {
	suffix := "[y/N]"
	if defaultYes {
		suffix = "[Y/n]"
	}
	fmt.Fprintf(p.out, "%s %s ", question, suffix)

	response, err := p.readAnswer()
	if err != nil {
		return false, err
	}
	if response == "" {
		return defaultYes, nil
	}
	return response == "y" || response == "yes", nil
}

// Option is one entry in a selection list.
type Option struct {
	Value string // Returned if selected
	Label string
}

// Select displays a numbered list and asks for a choice. It returns the
// chosen option's Value, or "" if the user cancelled.
func (p *Prompter) Select(question string, options []Option) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("no options provided")
	}

	fmt.Fprintln(p.out, question)
	fmt.Fprintln(p.out)
	for i, opt := range options {
		fmt.Fprintf(p.out, "  %d) %s\n", i+1, opt.Label)
	}
	fmt.Fprintln(p.out)
	fmt.Fprint(p.out, "Enter number (or 'q' to cancel): ")

	response, err := p.readAnswer()
	if err != nil {
		return "", err
	}
	switch response {
	case "", "q", "quit", "cancel":
		return "", nil
	}

	num, err := strconv.Atoi(response)
	if err != nil || num < 1 || num > len(options) {
		return "", fmt.Errorf("invalid selection: %s", response)
	}
	return options[num-1].Value, nil
}
