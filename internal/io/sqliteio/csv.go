package sqliteio

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/xdump/xdump/internal/str"
)

// blobPrefix marks hex encoded BLOB values in CSV files.
const blobPrefix = `\x`

// field is a CSV value that keeps NULL apart from an empty string: NULL is
// an unquoted empty field, an empty string is written as "".
type field struct {
	val  string
	null bool
}

// exportCSV writes a header and all rows of the query.
func exportCSV(
	ctx context.Context,
	q querier,
	query string,
	w io.Writer,
) (int64, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}
	cw := newCSVWriter(w)
	header := make([]field, len(cols))
	for i := range cols {
		header[i] = field{val: cols[i]}
	}
	if err = cw.write(header); err != nil {
		return 0, err
	}

	var count int64
	vals, ptrs := scanTargets(len(cols))
	record := make([]field, len(cols))
	for rows.Next() {
		if err = rows.Scan(ptrs...); err != nil {
			return count, err
		}
		for i := range vals {
			record[i] = csvField(vals[i])
		}
		if err = cw.write(record); err != nil {
			return count, err
		}
		count++
	}
	if err = rows.Err(); err != nil {
		return count, err
	}
	return count, cw.flush()
}

func csvField(v any) field {
	switch v := v.(type) {
	case nil:
		return field{null: true}
	case []byte:
		return field{val: blobPrefix + hex.EncodeToString(v)}
	case string:
		return field{val: v}
	case int64:
		return field{val: strconv.FormatInt(v, 10)}
	case float64:
		return field{val: strconv.FormatFloat(v, 'f', -1, 64)}
	case bool:
		if v {
			return field{val: "1"}
		}
		return field{val: "0"}
	case time.Time:
		return field{val: v.Format(sqlite3.SQLiteTimestampFormats[0])}
	default:
		return field{val: fmt.Sprint(v)}
	}
}

// importCSV inserts CSV rows into the table. Columns are taken from the
// header, unquoted empty fields are inserted as NULL, hex values of BLOB
// columns are decoded.
func importCSV(
	ctx context.Context,
	tx txer,
	table string,
	r io.Reader,
) (int64, error) {
	cr := newCSVReader(r)
	hdr, err := cr.read()
	if errors.Is(err, io.EOF) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	header := make([]string, len(hdr))
	for i := range hdr {
		header[i] = hdr[i].val
	}

	blobs, err := blobColumns(ctx, tx, table)
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL(table, header))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	var count int64
	args := make([]any, len(header))
	for {
		record, err := cr.read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return count, err
		}
		if len(record) != len(header) {
			return count, fmt.Errorf("line %d: %d fields, expected %d",
				cr.line, len(record), len(header))
		}
		for i, f := range record {
			if args[i], err = fieldArg(f, blobs[header[i]]); err != nil {
				return count, fmt.Errorf("line %d, column %s: %w", cr.line, header[i], err)
			}
		}
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func fieldArg(f field, blob bool) (any, error) {
	if f.null {
		return nil, nil
	}
	if blob && strings.HasPrefix(f.val, blobPrefix) {
		res, err := hex.DecodeString(f.val[len(blobPrefix):])
		if res == nil {
			res = []byte{}
		}
		return res, err
	}
	return f.val, nil
}

// blobColumns returns columns of the table with BLOB affinity: declared
// type contains BLOB or is empty.
func blobColumns(ctx context.Context, q querier, table string) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT name, type FROM pragma_table_info("+str.QuoteString(table)+")")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := make(map[string]bool)
	var name, typ string
	for rows.Next() {
		if err = rows.Scan(&name, &typ); err != nil {
			return nil, err
		}
		typ = strings.ToUpper(strings.TrimSpace(typ))
		if typ == "" || strings.Contains(typ, "BLOB") {
			res[name] = true
		}
	}
	return res, rows.Err()
}

func insertSQL(table string, cols []string) string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		str.QuoteIdent(table), str.QuoteIdents(cols), marks)
}

type csvWriter struct {
	w *bufio.Writer
}

func newCSVWriter(w io.Writer) *csvWriter {
	return &csvWriter{w: bufio.NewWriter(w)}
}

func (cw *csvWriter) write(record []field) error {
	for i, f := range record {
		if i > 0 {
			cw.w.WriteByte(',')
		}
		if f.null {
			continue
		}
		if !needsQuotes(f.val) {
			cw.w.WriteString(f.val)
			continue
		}
		cw.w.WriteByte('"')
		cw.w.WriteString(strings.ReplaceAll(f.val, `"`, `""`))
		cw.w.WriteByte('"')
	}
	return cw.w.WriteByte('\n')
}

func (cw *csvWriter) flush() error {
	return cw.w.Flush()
}

func needsQuotes(s string) bool {
	return s == "" || s[0] == ' ' || strings.ContainsAny(s, ",\"\r\n")
}

type csvReader struct {
	r    *bufio.Reader
	line int
}

func newCSVReader(r io.Reader) *csvReader {
	return &csvReader{r: bufio.NewReader(r)}
}

// read returns the next record. An empty line is a record of one NULL
// field, io.EOF is returned only at the start of a record.
func (cr *csvReader) read() ([]field, error) {
	if _, err := cr.r.Peek(1); err != nil {
		return nil, err
	}
	cr.line++

	var res []field
	for {
		f, last, err := cr.readField()
		if err != nil {
			return nil, err
		}
		res = append(res, f)
		if last {
			return res, nil
		}
	}
}

// readField reads one field and its delimiter, last is true when the
// delimiter ends the record.
func (cr *csvReader) readField() (field, bool, error) {
	c, err := cr.r.ReadByte()
	if errors.Is(err, io.EOF) {
		return field{null: true}, true, nil
	}
	if err != nil {
		return field{}, false, err
	}

	if c != '"' {
		cr.r.UnreadByte()
		var sb strings.Builder
		for {
			c, err = cr.r.ReadByte()
			if errors.Is(err, io.EOF) {
				return plainField(sb.String()), true, nil
			}
			if err != nil {
				return field{}, false, err
			}
			switch c {
			case ',':
				return plainField(sb.String()), false, nil
			case '\n':
				return plainField(strings.TrimSuffix(sb.String(), "\r")), true, nil
			}
			sb.WriteByte(c)
		}
	}

	var sb strings.Builder
	for {
		c, err = cr.r.ReadByte()
		if errors.Is(err, io.EOF) {
			return field{}, false, fmt.Errorf("line %d: unterminated quoted field", cr.line)
		}
		if err != nil {
			return field{}, false, err
		}
		if c == '\n' {
			cr.line++
		}
		if c != '"' {
			sb.WriteByte(c)
			continue
		}
		c, err = cr.r.ReadByte()
		if errors.Is(err, io.EOF) {
			return field{val: sb.String()}, true, nil
		}
		if err != nil {
			return field{}, false, err
		}
		switch c {
		case '"':
			sb.WriteByte('"')
		case ',':
			return field{val: sb.String()}, false, nil
		case '\n':
			return field{val: sb.String()}, true, nil
		case '\r':
			if c, err = cr.r.ReadByte(); err == nil && c == '\n' {
				return field{val: sb.String()}, true, nil
			}
			return field{}, false, fmt.Errorf("line %d: bare \\r after quoted field", cr.line)
		default:
			return field{}, false, fmt.Errorf("line %d: unexpected %q after quoted field", cr.line, c)
		}
	}
}

func plainField(s string) field {
	if s == "" {
		return field{null: true}
	}
	return field{val: s}
}
