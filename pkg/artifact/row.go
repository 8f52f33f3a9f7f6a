package artifact

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
)

// Header is the fixed first line of every artifact.
var Header = []string{
	"retweet_count",
	"favorite_count",
	"text",
	"id",
	"created_at",
	"lang",
	"is_quote_status",
	"user_id",
	"user_name",
	"user_screen_name",
}

// idColumn is the index of the record ID in Header.
const idColumn = 3

// Row is one output line. Field order matches Header.
type Row struct {
	RetweetCount   string
	FavoriteCount  string
	Text           string
	ID             string
	CreatedAt      string
	Lang           string
	IsQuoteStatus  string
	UserID         string
	UserName       string
	UserScreenName string
}

// Fields returns the row as CSV fields in Header order.
func (r Row) Fields() []string {
	return []string{
		r.RetweetCount,
		r.FavoriteCount,
		r.Text,
		r.ID,
		r.CreatedAt,
		r.Lang,
		r.IsQuoteStatus,
		r.UserID,
		r.UserName,
		r.UserScreenName,
	}
}

// encodeRows renders records as CSV into memory so they can be appended in one write.
func encodeRows(records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return nil, fmt.Errorf("encode rows: %w", err)
	}
	return buf.Bytes(), nil
}

// WrittenIDs returns the record IDs already present in the file at path.
//
// A missing file yields an empty set, and so does a file whose first line is
// not Header. Malformed rows, rows with the wrong column count and rows with
// an empty ID are skipped. A torn final record (one not terminated by a
// newline, or cut inside a quoted field) is not counted.
func WrittenIDs(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make(map[string]struct{}), nil
		}
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	res, err := scan(f)
	if err != nil {
		return nil, err
	}
	return res.ids, nil
}

// scanResult describes the readable prefix of an artifact.
type scanResult struct {
	ids map[string]struct{}

	// complete is the byte offset just past the last newline-terminated
	// record. It is 0 when the file does not start with Header.
	complete int64

	// size is the file size at scan time.
	size int64
}

// scan reads the whole file. Only the final record can be torn; a malformed
// record followed by more data is skipped and left in place.
func scan(f *os.File) (scanResult, error) {
	res := scanResult{ids: make(map[string]struct{})}

	info, err := f.Stat()
	if err != nil {
		return res, fmt.Errorf("stat artifact: %w", err)
	}
	res.size = info.Size()
	if res.size == 0 {
		return res, nil
	}

	tail := make([]byte, 1)
	if _, err := f.ReadAt(tail, res.size-1); err != nil && !errors.Is(err, io.EOF) {
		return res, fmt.Errorf("read artifact tail: %w", err)
	}
	endsWithNewline := tail[0] == '\n'

	r := csv.NewReader(io.NewSectionReader(f, 0, res.size))
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	for line := 0; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		offset := r.InputOffset()
		if offset >= res.size && (err != nil || !endsWithNewline) {
			// torn final record
			break
		}

		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return res, fmt.Errorf("read artifact: %w", err)
			}
			if line == 0 {
				return res, nil
			}
			res.complete = offset
			continue
		}

		if line == 0 {
			if !slices.Equal(record, Header) {
				return res, nil
			}
			res.complete = offset
			continue
		}
		res.complete = offset

		if len(record) != len(Header) || record[idColumn] == "" {
			continue
		}
		res.ids[record[idColumn]] = struct{}{}
	}

	return res, nil
}
