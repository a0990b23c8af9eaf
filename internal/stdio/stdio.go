// Package stdio runs one request/response exchange over a line-oriented stream:
// one line of JSON in, one line of JSON out.
package stdio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/thebtf/feeddedup/internal/dedupe"
)

// Exit codes for the stdio process.
const (
	ExitSuccess        = 0
	ExitFailure        = 1
	ExitMalformedInput = 2
)

// Handler transforms one request payload into one response payload.
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// Run reads a single line from in, passes it to handler and writes the
// result followed by a newline to out. Anything after the first line is
// ignored. Nothing is written when handler fails.
func Run(ctx context.Context, in io.Reader, out io.Writer, handler Handler) error {
	line, err := bufio.NewReader(in).ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read request: %w", err)
	}

	result, err := handler(ctx, line)
	if err != nil {
		return err
	}

	if _, err := out.Write(append(result, '\n')); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return nil
}

// ExitCode maps an error returned by Run to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, dedupe.ErrMalformedInput):
		return ExitMalformedInput
	default:
		return ExitFailure
	}
}
