package rhd

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"msconvert/internal/services"
)

// Files are named <basename>_YYMMDD_HHMMSS.rhd by the acquisition software.
var sessionFileRE = regexp.MustCompile(`^(.+)_(\d{6})_(\d{6})\.rhd$`)

// sessionSuffixLen is len("_YYMMDD_HHMMSS.rhd").
const sessionSuffixLen = 18

// Basenames lists the distinct recording basenames in dir.
func Basenames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		m := sessionFileRE.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		names = append(names, m[1])
	}
	sort.Strings(names)
	return names, nil
}

// basenameFiles returns the files of dir belonging to basename, oldest first.
func basenameFiles(dir, basename string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, basename) {
			continue
		}
		if len(name)-len(basename) != sessionSuffixLen || !sessionFileRE.MatchString(name) {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	return files, nil
}

// FindSessions groups the files of basename into recording sessions. A file
// continues the current session when its first timestamp is one past the
// previous file's last timestamp.
func FindSessions(dir, basename string) ([][]string, error) {
	files, err := basenameFiles(dir, basename)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, services.Wrap(services.ErrMissingSource, "rhd", "find sessions",
			fmt.Sprintf("no %s_YYMMDD_HHMMSS.rhd files in %s", basename, dir), nil)
	}

	var sessions [][]string
	var current []string
	var previousLast int64
	for i, file := range files {
		info, err := Inspect(file)
		if err != nil {
			return nil, err
		}
		if i > 0 && info.FirstTimestamp-previousLast != 1 {
			sessions = append(sessions, current)
			current = nil
		}
		current = append(current, file)
		previousLast = info.LastTimestamp
	}
	return append(sessions, current), nil
}

// IsSessionBeginning reports whether the file's first timestamp is zero.
func IsSessionBeginning(path string) (bool, error) {
	info, err := Inspect(path)
	if err != nil {
		return false, err
	}
	return info.Blocks > 0 && info.FirstTimestamp == 0, nil
}

// RecordingBasename returns the part of a recording's file name before its
// _YYMMDD_HHMMSS timestamp.
func RecordingBasename(path string) (string, bool) {
	m := sessionFileRE.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// SessionStart parses the recording start encoded in a file name.
func SessionStart(path string) (time.Time, error) {
	m := sessionFileRE.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return time.Time{}, fmt.Errorf("%s: name does not end in _YYMMDD_HHMMSS.rhd", path)
	}
	return time.ParseInLocation("060102150405", m[2]+m[3], time.Local)
}

// SessionBasename is the output basename for a session: its first file's name
// without the extension.
func SessionBasename(files []string) string {
	if len(files) == 0 {
		return ""
	}
	first := files[0]
	return strings.TrimSuffix(first, filepath.Ext(first))
}

// Session is a set of contiguous files decoded into one Data.
type Session struct {
	Files []string
	Data  *Data
	// FileOffsets[i] is the concatenated sample index where Files[i] begins.
	// Stored timestamps restart per recording, so absolute positions must be
	// derived from these offsets.
	FileOffsets []int
}

// AbsoluteSample converts a file-local sample index into a session index.
func (s *Session) AbsoluteSample(file, local int) int {
	return s.FileOffsets[file] + local
}

// ReadSession decodes files in order and appends them along the sample axis.
// Every file must share the first file's geometry.
func ReadSession(files []string, opts ReadOptions) (*Session, error) {
	if len(files) == 0 {
		return nil, services.Wrap(services.ErrMissingSource, "rhd", "read session", "no files", nil)
	}
	ordered := append([]string(nil), files...)
	sort.Strings(ordered)

	session := &Session{Files: ordered, FileOffsets: make([]int, len(ordered))}
	var want Geometry
	for i, path := range ordered {
		data, err := ReadFile(path, opts)
		if err != nil {
			return nil, err
		}
		g := data.Header.Geometry()
		if i == 0 {
			want = g
			session.Data = data
			continue
		}
		if g != want {
			return nil, services.Wrap(services.ErrInconsistentSession, "rhd", "read session",
				fmt.Sprintf("%s geometry %+v differs from %s geometry %+v", path, g, ordered[0], want), nil)
		}
		session.FileOffsets[i] = session.Data.NumSamples()
		appendData(session.Data, data)
	}
	return session, nil
}

func appendData(dst, src *Data) {
	dst.Timestamps = append(dst.Timestamps, src.Timestamps...)
	for i := range dst.Amplifier {
		dst.Amplifier[i] = append(dst.Amplifier[i], src.Amplifier[i]...)
	}
	for i := range dst.BoardADC {
		dst.BoardADC[i] = append(dst.BoardADC[i], src.BoardADC[i]...)
	}
	for i := range dst.DigitalIn {
		dst.DigitalIn[i] = append(dst.DigitalIn[i], src.DigitalIn[i]...)
	}
	dst.DigitalRaw = append(dst.DigitalRaw, src.DigitalRaw...)
}
