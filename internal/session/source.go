package session

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"msconvert/internal/rhd"
)

// Kind identifies the acquisition system that produced a session.
type Kind int

const (
	KindBin Kind = iota + 1
	KindIntan
)

func (k Kind) String() string {
	switch k {
	case KindBin:
		return "bin"
	case KindIntan:
		return "intan"
	default:
		return "unknown"
	}
}

// Source is one recording to convert.
type Source struct {
	Kind Kind
	Dir  string
	// Name is the session basename shown to users and used for locks.
	Name string
	// Bin and Set are the Axona inputs.
	Bin string
	Set string
	// Files are the Intan recordings of the session, oldest first.
	Files []string
	// Err records why the session's files could not be grouped.
	Err error
}

// Layout returns the session's file naming.
func (s Source) Layout() Layout {
	return Layout{Base: filepath.Join(s.Dir, s.Name)}
}

// BinSource describes the Axona recording <dir>/<name>.bin.
func BinSource(dir, name string) Source {
	base := filepath.Join(dir, name)
	return Source{Kind: KindBin, Dir: dir, Name: name, Bin: base + ".bin", Set: base + ".set"}
}

// IntanSource describes a session of contiguous .rhd files. Its name is the
// first file's name without extension.
func IntanSource(files []string) Source {
	ordered := append([]string(nil), files...)
	sort.Strings(ordered)
	base := rhd.SessionBasename(ordered)
	return Source{
		Kind:  KindIntan,
		Dir:   filepath.Dir(base),
		Name:  filepath.Base(base),
		Files: ordered,
	}
}

// Discover lists the sessions in dir: one per .bin file and one per group
// of contiguous .rhd files. A .bin without its .set is still listed so that
// callers can report it as missing its source; a basename whose .rhd files
// cannot be read is listed with Err set.
func Discover(dir string) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read session directory: %w", err)
	}
	var sources []Source
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".bin") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		sources = append(sources, BinSource(dir, name))
	}

	basenames, err := rhd.Basenames(dir)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	for _, basename := range basenames {
		groups, err := rhd.FindSessions(dir, basename)
		if err != nil {
			sources = append(sources, Source{Kind: KindIntan, Dir: dir, Name: basename, Err: err})
			continue
		}
		for _, files := range groups {
			sources = append(sources, IntanSource(files))
		}
	}
	sort.SliceStable(sources, func(i, j int) bool { return sources[i].Name < sources[j].Name })
	return sources, nil
}

// Find returns the discovered session named name.
func Find(dir, name string) (Source, error) {
	sources, err := Discover(dir)
	if err != nil {
		return Source{}, err
	}
	for _, s := range sources {
		if s.Name == name {
			return s, nil
		}
	}
	return Source{}, fmt.Errorf("session %q in %s: %w", name, dir, fs.ErrNotExist)
}

func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err == nil {
		return !info.IsDir(), nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
