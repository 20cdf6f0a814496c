// Package prompt asks the operator questions on the terminal.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
)

// ErrDeclined is returned when the operator does not confirm.
var ErrDeclined = errors.New("aborted by user")

// Prompter asks questions on out and reads the answers from in.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer

	// AssumeYes answers every confirmation with yes without asking.
	AssumeYes bool
}

func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// Terminal reports whether f is connected to a terminal.
func Terminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimSpace(line), nil
		}
		if err == io.EOF {
			return "", fmt.Errorf("no answer: %w", io.ErrUnexpectedEOF)
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a yes/no question. Anything but y or yes is ErrDeclined.
func (p *Prompter) Confirm(question string) error {
	if p.AssumeYes {
		fmt.Fprintf(p.out, "%s [y/N] y (--yes)\n", question)
		return nil
	}
	fmt.Fprintf(p.out, "%s [y/N] ", question)
	answer, err := p.readLine()
	if err != nil {
		return err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return nil
	}
	return ErrDeclined
}

// Integer asks for a whole number in [min, max] until a valid one is
// entered.
func (p *Prompter) Integer(question string, min, max int) (int, error) {
	for {
		fmt.Fprintf(p.out, "%s [%d-%d]: ", question, min, max)
		answer, err := p.readLine()
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(answer)
		if err != nil {
			fmt.Fprintf(p.out, "%q is not a whole number.\n", answer)
			continue
		}
		if n < min || n > max {
			fmt.Fprintf(p.out, "%d is not between %d and %d.\n", n, min, max)
			continue
		}
		return n, nil
	}
}
