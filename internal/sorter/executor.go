package sorter

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// stderrTailLines bounds how much of the sorter's stderr is kept for error
// messages.
const stderrTailLines = 20

// Executor abstracts command execution for testability. onOutput receives
// every stdout line; those lines form the terminal log the client watches.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, onOutput func(string)) error
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string, onOutput func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr := &tailBuffer{limit: stderrTailLines}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", binary, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		onOutput(scanner.Text())
	}
	scanErr := scanner.Err()
	if scanErr != nil {
		// Drain so the process is not blocked on a full pipe before Kill lands.
		_, _ = io.Copy(io.Discard, stdout)
		_ = cmd.Process.Kill()
	}

	waitErr := cmd.Wait()
	if scanErr != nil {
		return fmt.Errorf("read %s output: %w", binary, scanErr)
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) && stderr.Len() > 0 {
			return fmt.Errorf("%s exited with code %d: %s", binary, exitErr.ExitCode(), stderr.String())
		}
		return fmt.Errorf("wait %s: %w", binary, waitErr)
	}
	return nil
}

// tailBuffer keeps the last limit lines written to it.
type tailBuffer struct {
	limit   int
	lines   []string
	partial string
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	text := b.partial + string(p)
	parts := strings.Split(text, "\n")
	b.partial = parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		if line = strings.TrimSpace(line); line != "" {
			b.lines = append(b.lines, line)
		}
	}
	if over := len(b.lines) - b.limit; over > 0 {
		b.lines = b.lines[over:]
	}
	return len(p), nil
}

// Len returns the number of retained lines, counting an unterminated one.
func (b *tailBuffer) Len() int {
	n := len(b.lines)
	if strings.TrimSpace(b.partial) != "" {
		n++
	}
	return n
}

func (b *tailBuffer) String() string {
	lines := b.lines
	if p := strings.TrimSpace(b.partial); p != "" {
		lines = append(lines[:len(lines):len(lines)], p)
	}
	return strings.Join(lines, "; ")
}
