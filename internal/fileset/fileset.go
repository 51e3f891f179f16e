package fileset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var ErrTooManyFiles = errors.New("too many files")

// File is one upload candidate. Name is slash-separated and relative to
// the collection root.
type File struct {
	Name string
	Size int64
	open func() (io.ReadCloser, error)
}

func (f File) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, fmt.Errorf("file %s has no content source", f.Name)
	}
	return f.open()
}

// Entry is the display form of a File.
type Entry struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// Skipped records a candidate that Collect left out.
type Skipped struct {
	Name   string
	Reason string
}

// FileSet is an ordered, immutable set of files to upload.
type FileSet struct {
	files   []File
	skipped []Skipped
}

type Options struct {
	AllowedExtensions []string
	BlockedDirs       []string
	MaxFiles          int
	MaxFileBytes      int64
}

func New(files ...File) FileSet {
	return FileSet{files: append([]File(nil), files...)}
}

// FromBytes builds an in-memory file, mostly useful for tests and the
// dashboard.
func FromBytes(name string, data []byte) File {
	buf := append([]byte(nil), data...)
	return File{
		Name: name,
		Size: int64(len(buf)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(buf)), nil
		},
	}
}

func (s FileSet) Len() int { return len(s.files) }

func (s FileSet) Empty() bool { return len(s.files) == 0 }

func (s FileSet) Files() []File { return append([]File(nil), s.files...) }

func (s FileSet) Entries() []Entry {
	out := make([]Entry, len(s.files))
	for i, f := range s.files {
		out[i] = Entry{Name: f.Name, Size: f.Size}
	}
	return out
}

func (s FileSet) Skipped() []Skipped { return append([]Skipped(nil), s.skipped...) }

func (s FileSet) TotalSize() int64 {
	var n int64
	for _, f := range s.files {
		n += f.Size
	}
	return n
}

// Collect walks paths (files or directories) in argument order. Blocked
// directories are pruned, disallowed extensions and oversized files are
// skipped, and exceeding MaxFiles is an error.
func Collect(paths []string, opts Options) (FileSet, error) {
	var set FileSet
	blocked := blockedSet(opts.BlockedDirs)

	add := func(path, name string, size int64) error {
		return set.add(opts, name, size, func() (io.ReadCloser, error) { return os.Open(path) })
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return FileSet{}, fmt.Errorf("failed to stat %s: %w", root, err)
		}
		if !info.IsDir() {
			if err := add(root, filepath.Base(root), info.Size()); err != nil {
				return FileSet{}, err
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if path != root && blocked[d.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			fi, err := d.Info()
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				rel = d.Name()
			}
			return add(path, filepath.ToSlash(rel), fi.Size())
		})
		if err != nil {
			return FileSet{}, fmt.Errorf("failed to collect %s: %w", root, err)
		}
	}
	return set, nil
}

// FromMultipart adapts the files of a parsed multipart form under field
// with the same rules as Collect. Names carrying a directory part (folder
// uploads) are skipped when any segment is a blocked directory.
func FromMultipart(form *multipart.Form, field string, opts Options) (FileSet, error) {
	if form == nil {
		return FileSet{}, nil
	}
	var set FileSet
	blocked := blockedSet(opts.BlockedDirs)
	for _, fh := range form.File[field] {
		fh := fh // per-iteration copy: go.mod targets go1.21 loop semantics
		name := strings.TrimPrefix(filepath.ToSlash(filepath.Clean(fh.Filename)), "/")
		if dir := inBlockedDir(name, blocked); dir != "" {
			set.skipped = append(set.skipped, Skipped{Name: name, Reason: "in blocked directory " + dir})
			continue
		}
		if err := set.add(opts, name, fh.Size, func() (io.ReadCloser, error) { return fh.Open() }); err != nil {
			return FileSet{}, err
		}
	}
	return set, nil
}

// add applies the extension, size and count rules to one candidate.
func (s *FileSet) add(opts Options, name string, size int64, open func() (io.ReadCloser, error)) error {
	if !extensionAllowed(name, opts.AllowedExtensions) {
		s.skipped = append(s.skipped, Skipped{Name: name, Reason: "extension not allowed"})
		return nil
	}
	if opts.MaxFileBytes > 0 && size > opts.MaxFileBytes {
		s.skipped = append(s.skipped, Skipped{Name: name, Reason: "larger than " + FormatSize(opts.MaxFileBytes)})
		return nil
	}
	if opts.MaxFiles > 0 && len(s.files) >= opts.MaxFiles {
		return fmt.Errorf("%w: limit is %d", ErrTooManyFiles, opts.MaxFiles)
	}
	s.files = append(s.files, File{Name: name, Size: size, open: open})
	return nil
}

func blockedSet(dirs []string) map[string]bool {
	blocked := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		blocked[d] = true
	}
	return blocked
}

// inBlockedDir returns the first blocked directory segment of a
// slash-separated name, or "".
func inBlockedDir(name string, blocked map[string]bool) string {
	segments := strings.Split(name, "/")
	for _, seg := range segments[:len(segments)-1] {
		if blocked[seg] {
			return seg
		}
	}
	return ""
}

func extensionAllowed(name string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, a := range allowed {
		if strings.ToLower(a) == ext {
			return true
		}
	}
	return false
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatSize renders a byte count with binary units, dropping trailing
// zeros: 0 -> "0 Bytes", 1536 -> "1.5 KB".
func FormatSize(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	i := 0
	for n >= pow1024(i+1) && i < len(sizeUnits)-1 {
		i++
	}
	v := math.Round(float64(n)/float64(pow1024(i))*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

func pow1024(i int) int64 {
	return int64(1) << (10 * i)
}
