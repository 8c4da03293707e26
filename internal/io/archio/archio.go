// Package archio reads and writes xdump archives. An archive is a zip file
// with the database schema, sequences states and CSV data of tables.
package archio

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

const (
	// SchemaPath keeps SQL that recreates the database schema.
	SchemaPath = "dump/schema.sql"

	// SequencesPath keeps SQL that restores sequences states.
	SequencesPath = "dump/sequences.sql"

	// DataDir contains one CSV file per dumped table.
	DataDir = "dump/data/"

	csvExt = ".csv"
)

// Compression is the method used to compress archive entries.
type Compression string

const (
	Deflate Compression = "deflate"
	Store   Compression = "store"
	Zstd    Compression = "zstd"
)

// NewCompression converts a string to Compression. Empty string gives
// Deflate.
func NewCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(s)); c {
	case "":
		return Deflate, nil
	case Deflate, Store, Zstd:
		return c, nil
	default:
		return "", fmt.Errorf("unknown compression %q", s)
	}
}

func (c Compression) method() uint16 {
	switch c {
	case Store:
		return zip.Store
	case Zstd:
		return zstd.ZipMethodWinZip
	default:
		return zip.Deflate
	}
}

// DataPath returns the archive path of the table's CSV file.
func DataPath(table string) string {
	return DataDir + table + csvExt
}

// TableName returns the table for a data path and false if the path
// is not a data file.
func TableName(name string) (string, bool) {
	if !strings.HasPrefix(name, DataDir) || !strings.HasSuffix(name, csvExt) {
		return "", false
	}
	t := strings.TrimSuffix(strings.TrimPrefix(name, DataDir), csvExt)
	if t == "" || strings.Contains(t, "/") {
		return "", false
	}
	return t, true
}

// Writer creates an archive file.
type Writer struct {
	path   string
	f      *os.File
	zw     *zip.Writer
	method uint16
}

// Create makes a new archive at the path, an existing file is truncated.
func Create(path string, c Compression) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		slog.Error("Cannot create archive", "path", path, "error", err)
		return nil, err
	}
	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zstd.ZipMethodWinZip, zstd.ZipCompressor())
	res := Writer{path: path, f: f, zw: zw, method: c.method()}
	return &res, nil
}

// Path returns the location of the archive.
func (w *Writer) Path() string {
	return w.path
}

// Create starts a new entry and returns a writer for its content. The
// content has to be written before the next entry is created.
func (w *Writer) Create(name string) (io.Writer, error) {
	return w.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   w.method,
		Modified: time.Now(),
	})
}

// WriteFile adds an entry with the given content.
func (w *Writer) WriteFile(name string, data []byte) error {
	ew, err := w.Create(name)
	if err != nil {
		return err
	}
	_, err = ew.Write(data)
	return err
}

// Close finishes the archive.
func (w *Writer) Close() error {
	if err := w.zw.Close(); err != nil {
		w.f.Close()
		return err
	}
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// Abort closes the archive and removes it from the file system.
func (w *Writer) Abort() error {
	_ = w.zw.Close()
	_ = w.f.Close()
	return os.Remove(w.path)
}

// Entry is a short description of an archive file.
type Entry struct {
	Name           string    `json:"name"`
	Size           uint64    `json:"size"`
	CompressedSize uint64    `json:"compressedSize"`
	Method         string    `json:"method"`
	Modified       time.Time `json:"modified"`
}

// Reader gives access to an existing archive.
type Reader struct {
	rc    *zip.ReadCloser
	files map[string]*zip.File
}

// Open opens an archive for reading.
func Open(path string) (*Reader, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		slog.Error("Cannot open archive", "path", path, "error", err)
		return nil, err
	}
	rc.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())

	res := Reader{rc: rc, files: make(map[string]*zip.File, len(rc.File))}
	for _, f := range rc.File {
		res.files[f.Name] = f
	}
	return &res, nil
}

// Names returns names of all entries in the archive order.
func (r *Reader) Names() []string {
	res := make([]string, len(r.rc.File))
	for i, f := range r.rc.File {
		res[i] = f.Name
	}
	return res
}

// Has is true if the archive contains an entry with the name.
func (r *Reader) Has(name string) bool {
	_, ok := r.files[name]
	return ok
}

// Tables returns tables that have data in the archive, in archive order.
func (r *Reader) Tables() []string {
	var res []string
	for _, f := range r.rc.File {
		if t, ok := TableName(f.Name); ok {
			res = append(res, t)
		}
	}
	return res
}

// Entries describes all files of the archive.
func (r *Reader) Entries() []Entry {
	res := make([]Entry, len(r.rc.File))
	for i, f := range r.rc.File {
		res[i] = Entry{
			Name:           f.Name,
			Size:           f.UncompressedSize64,
			CompressedSize: f.CompressedSize64,
			Method:         methodName(f.Method),
			Modified:       f.Modified,
		}
	}
	return res
}

// Open returns a reader of an entry content.
func (r *Reader) Open(name string) (io.ReadCloser, error) {
	f, ok := r.files[name]
	if !ok {
		return nil, fmt.Errorf("archive has no %s: %w", name, os.ErrNotExist)
	}
	return f.Open()
}

// ReadFile returns the content of an entry.
func (r *Reader) ReadFile(name string) ([]byte, error) {
	rc, err := r.Open(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Close closes the archive file.
func (r *Reader) Close() error {
	return r.rc.Close()
}

func methodName(m uint16) string {
	switch m {
	case zip.Store:
		return string(Store)
	case zip.Deflate:
		return string(Deflate)
	case zstd.ZipMethodWinZip:
		return string(Zstd)
	default:
		return fmt.Sprintf("method %d", m)
	}
}
