package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Prompter hands an authorization URL to a human and returns the URL their
// browser was redirected to. It may block for as long as the human takes.
type Prompter interface {
	Prompt(ctx context.Context, authURL string) (string, error)
}

type PromptFunc func(ctx context.Context, authURL string) (string, error)

func (f PromptFunc) Prompt(ctx context.Context, authURL string) (string, error) {
	return f(ctx, authURL)
}

// ConsolePrompter prints the URL to Out and reads the pasted redirect URL from In.
type ConsolePrompter struct {
	In  io.Reader
	Out io.Writer
}

func (p ConsolePrompter) Prompt(ctx context.Context, authURL string) (string, error) {
	fmt.Fprintln(p.Out, "Please visit the following URL to authorize access:")
	fmt.Fprintln(p.Out, authURL)
	fmt.Fprintln(p.Out, "\nAfter authorizing, paste the full redirect URL here:")

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(p.In).ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		ch <- result{strings.TrimSpace(line), err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		return r.line, r.err
	}
}
