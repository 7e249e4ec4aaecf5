// Package confirm asks the user whether an announcement should be sent.
package confirm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Decision is the outcome of a confirmation.
type Decision int

const (
	// Undecided means no question was asked, e.g. because there are no
	// recipients.
	Undecided Decision = iota
	Yes
	No
)

func (d Decision) String() string {
	switch d {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "undecided"
	}
}

// Preview is what the user sees when choosing to view the announcement.
// Body is only called on view.
type Preview struct {
	From    string
	Subject string
	Body    func() (string, error)
}

// Gate prompts on out and reads answers from in.
type Gate struct {
	in  *bufio.Reader
	out io.Writer
}

// New creates a Gate reading answers from in and writing prompts to out.
func New(in io.Reader, out io.Writer) *Gate {
	return &Gate{in: bufio.NewReader(in), out: out}
}

// Confirm asks whether to announce to recipients. A forced confirmation
// returns Yes without prompting. Choosing view prints the message and asks
// again.
func (g *Gate) Confirm(recipients []string, force bool, preview Preview) (Decision, error) {
	if force {
		return Yes, nil
	}
	if len(recipients) == 0 {
		return Undecided, nil
	}

	to := strings.Join(recipients, ", ")
	for {
		fmt.Fprintf(g.out, "Announce to %s [(v)iew (y)es (N)o]? ", to)

		answer, err := g.readLine()
		if err != nil {
			return Undecided, err
		}

		switch strings.ToLower(answer) {
		case "y", "yes":
			return Yes, nil
		case "v", "view":
			if err := Print(g.out, recipients, preview); err != nil {
				return Undecided, err
			}
		default:
			return No, nil
		}
	}
}

// Print writes the headers and body of an announcement to w.
func Print(w io.Writer, recipients []string, preview Preview) error {
	body := ""
	if preview.Body != nil {
		b, err := preview.Body()
		if err != nil {
			return fmt.Errorf("failed to build message: %w", err)
		}
		body = b
	}

	fmt.Fprintf(w, "From: %s\n", preview.From)
	fmt.Fprintf(w, "To: %s\n", strings.Join(recipients, ", "))
	fmt.Fprintf(w, "Subject: %s\n", preview.Subject)
	fmt.Fprintln(w)
	_, err := fmt.Fprintln(w, body)
	return err
}

// readLine returns the next trimmed line. EOF counts as an empty answer.
func (g *Gate) readLine() (string, error) {
	line, err := g.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}
