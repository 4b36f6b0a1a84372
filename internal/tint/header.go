package tint

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const (
	lineEnd   = "\r\n"
	dataStart = "data_start"
	dataEnd   = "\r\ndata_end\r\n"
)

// header accumulates "key value" lines.
type header struct {
	lines []string
}

func (h *header) raw(lines ...string) {
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		h.lines = append(h.lines, line)
	}
}

func (h *header) add(format string, args ...any) {
	h.lines = append(h.lines, fmt.Sprintf(format, args...))
}

// writeFile emits the header, data_start, body and trailer.
func (h *header) writeFile(w io.Writer, body func(*bufio.Writer) error) error {
	bw := bufio.NewWriter(w)
	for _, line := range h.lines {
		bw.WriteString(line)
		bw.WriteString(lineEnd)
	}
	bw.WriteString(dataStart)
	if err := body(bw); err != nil {
		return err
	}
	bw.WriteString(dataEnd)
	return bw.Flush()
}
