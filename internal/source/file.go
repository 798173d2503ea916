// Package source handles input log files: glob expansion, stable source
// identities for rotation detection, and reading complete lines from a
// byte offset.
package source

import (
	"bufio"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/logeagle/logeagle/internal/model"
)

// DefaultMaxLineSize caps a single line; longer lines are truncated but
// their full byte range is still consumed.
const DefaultMaxLineSize = 1024 * 1024 // 1MB

// DefaultReadChunk bounds how many lines one read pass returns.
const DefaultReadChunk = 10_000

// File is one tracked input file.
type File struct {
	Path        string
	ID          string
	FormatHint  string
	MaxLineSize int
}

// NewFile creates a tracked input. The ID namespaces output files and
// offset entries: sanitized base name plus a hash of the absolute path.
func NewFile(path, formatHint string) *File {
	return &File{
		Path:        path,
		ID:          MakeID(path),
		FormatHint:  formatHint,
		MaxLineSize: DefaultMaxLineSize,
	}
}

// MakeID derives a filesystem-safe, collision-resistant identifier from a
// path. Two sources never share an ID unless they share the full path.
func MakeID(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	base := filepath.Base(abs)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	sanitized := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, base)
	if sanitized == "" {
		sanitized = "source"
	}
	h := fnv.New32a()
	h.Write([]byte(abs))
	return fmt.Sprintf("%s-%08x", sanitized, h.Sum32())
}

// Stat returns the file's identity and current size. A missing file is not
// an error to the caller loop; it reports ok=false.
func (f *File) Stat() (identity string, size int64, ok bool, err error) {
	fi, err := os.Stat(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", 0, false, nil
		}
		return "", 0, false, fmt.Errorf("source: stat %s: %w", f.Path, err)
	}
	return identityOf(fi), fi.Size(), true, nil
}

// identityOf derives an inode-equivalent identity used to detect rotation.
func identityOf(fi os.FileInfo) string {
	if st, ok := fi.Sys().(*syscall.Stat_t); ok {
		return fmt.Sprintf("dev%d:ino%d", st.Dev, st.Ino)
	}
	return ""
}

// ReadAvailable reads up to maxLines complete lines starting at offset.
// A trailing line without a newline is left unconsumed unless
// includePartial is set (one-shot end-of-input). Returned RawLines carry
// the exact byte ranges they occupied, including line terminators.
func (f *File) ReadAvailable(offset int64, maxLines int, includePartial bool) ([]model.RawLine, error) {
	if maxLines <= 0 {
		maxLines = DefaultReadChunk
	}

	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", f.Path, err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("source: seek %s: %w", f.Path, err)
	}

	reader := bufio.NewReader(file)
	lines := make([]model.RawLine, 0, 128)
	pos := offset

	for len(lines) < maxLines {
		raw, rerr := reader.ReadBytes('\n')
		if len(raw) > 0 {
			complete := raw[len(raw)-1] == '\n'
			if !complete && !includePartial {
				break
			}
			lines = append(lines, model.RawLine{
				Text:  f.lineText(raw),
				Start: pos,
				End:   pos + int64(len(raw)),
			})
			pos += int64(len(raw))
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			return lines, fmt.Errorf("source: read %s: %w", f.Path, rerr)
		}
	}
	return lines, nil
}

// lineText strips the terminator and truncates oversized lines.
func (f *File) lineText(raw []byte) string {
	text := strings.TrimRight(string(raw), "\r\n")
	max := f.MaxLineSize
	if max <= 0 {
		max = DefaultMaxLineSize
	}
	if len(text) > max {
		text = text[:max]
	}
	return text
}

// Expand resolves configured paths and globs to a sorted, deduplicated
// list of file paths. Literal paths are kept even when they do not exist
// yet; glob patterns contribute only current matches.
func Expand(inputs []string) ([]string, error) {
	seen := map[string]bool{}
	var out []string

	add := func(p string) {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, in := range inputs {
		if !strings.ContainsAny(in, "*?[") {
			add(in)
			continue
		}
		matches, err := filepath.Glob(in)
		if err != nil {
			return nil, fmt.Errorf("source: bad glob %q: %w", in, err)
		}
		for _, m := range matches {
			add(m)
		}
	}
	sort.Strings(out)
	return out, nil
}
