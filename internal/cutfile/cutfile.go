package cutfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"msconvert/internal/fileutil"
	"msconvert/internal/services"
)

const (
	// PerLine is the number of labels on each full line.
	PerLine = 25
	// Width is the column width of one label.
	Width = 3
	// MaxLabel is the largest label that fits the column width.
	MaxLabel = 999

	pad        = "    "
	indent     = "               "
	exactCutAt = "Exact_cut_for:"
)

// File is a decoded cut file.
type File struct {
	Clusters int
	Name     string
	Labels   []int
}

// Write serialises labels. name is the basename written on the
// Exact_cut_for line.
func Write(w io.Writer, name string, labels []int) error {
	for i, l := range labels {
		if l < 0 || l > MaxLabel {
			return services.Wrap(services.ErrValidation, "cut", "write",
				fmt.Sprintf("label %d at spike %d outside 0..%d", l, i, MaxLabel), nil)
		}
	}

	bw := bufio.NewWriter(w)
	zeros8 := strings.Repeat(pad+"0", 8) + "\n"
	clusters := distinct(labels)
	fmt.Fprintf(bw, "n_clusters: %d\n", clusters)
	bw.WriteString("n_channels: 4\n")
	bw.WriteString("n_params: 2\n")
	bw.WriteString("times_used_in_Vt:" + strings.Repeat(pad+"0", 4) + "\n")
	for i := 0; i < clusters; i++ {
		fmt.Fprintf(bw, " cluster: %d center:%s", i, zeros8)
		bw.WriteString(indent + "min:" + zeros8)
		bw.WriteString(indent + "max:" + zeros8)
	}
	fmt.Fprintf(bw, "\n%s %s spikes: %d\n", exactCutAt, name, len(labels))
	for i, l := range labels {
		fmt.Fprintf(bw, "%3d", l)
		if (i+1)%PerLine == 0 {
			bw.WriteByte('\n')
		}
	}
	return bw.Flush()
}

// WriteFile writes labels to path atomically.
func WriteFile(path, name string, labels []int) error {
	return fileutil.WriteAtomic(path, func(w io.Writer) error {
		return Write(w, name, labels)
	})
}

// Read decodes a cut file and checks the label count against the declared
// spike count.
func Read(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read cut: %w", err)
	}
	text := string(data)

	f := &File{}
	first, _, _ := strings.Cut(text, "\n")
	if _, err := fmt.Sscanf(first, "n_clusters: %d", &f.Clusters); err != nil {
		return nil, services.Wrap(services.ErrFormat, "cut", "read", "missing n_clusters", err)
	}

	idx := strings.Index(text, exactCutAt)
	if idx < 0 {
		return nil, services.Wrap(services.ErrFormat, "cut", "read", "missing "+exactCutAt, nil)
	}
	line, body, _ := strings.Cut(text[idx:], "\n")
	fields := strings.Fields(strings.TrimPrefix(line, exactCutAt))
	if len(fields) < 3 || fields[len(fields)-2] != "spikes:" {
		return nil, services.Wrap(services.ErrFormat, "cut", "read", "malformed "+exactCutAt+" line", nil)
	}
	f.Name = strings.Join(fields[:len(fields)-2], " ")
	spikes, err := strconv.Atoi(fields[len(fields)-1])
	if err != nil {
		return nil, services.Wrap(services.ErrFormat, "cut", "read", "spike count", err)
	}

	f.Labels = make([]int, 0, spikes)
	for _, row := range strings.Split(body, "\n") {
		row = strings.TrimRight(row, "\r")
		if row == "" {
			continue
		}
		if len(row)%Width != 0 {
			return nil, services.Wrap(services.ErrFormat, "cut", "read",
				fmt.Sprintf("row of %d characters is not a multiple of %d", len(row), Width), nil)
		}
		for i := 0; i < len(row); i += Width {
			v, err := strconv.Atoi(strings.TrimSpace(row[i : i+Width]))
			if err != nil {
				return nil, services.Wrap(services.ErrFormat, "cut", "read", "label", err)
			}
			f.Labels = append(f.Labels, v)
		}
	}
	if len(f.Labels) != spikes {
		return nil, services.Wrap(services.ErrTruncated, "cut", "read",
			fmt.Sprintf("declared %d spikes, found %d", spikes, len(f.Labels)), nil)
	}
	return f, nil
}

// ReadFile decodes the cut file at path.
func ReadFile(path string) (*File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open cut: %w", err)
	}
	defer file.Close()
	return Read(file)
}

func distinct(labels []int) int {
	seen := make(map[int]struct{})
	for _, l := range labels {
		seen[l] = struct{}{}
	}
	return len(seen)
}
