package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/lunarloc/lacreplay/pkg/core"
)

// FrameColumn is the name of the column holding the frame index in every
// frame-synchronized table of a LAC archive.
const FrameColumn = "frame"

// Row is a single table row, keyed by column name. Values are kept as the
// raw CSV text and converted on access.
type Row map[string]string

// String returns the raw value of a column.
func (r Row) String(col string) (string, error) {
	v, ok := r[col]
	if !ok {
		return "", fmt.Errorf("column %q: %w", col, core.ErrNotFound)
	}
	return v, nil
}

// Float returns a column parsed as float64.
func (r Row) Float(col string) (float64, error) {
	v, err := r.String(col)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("column %q: %w: %v", col, core.ErrParse, err)
	}
	return f, nil
}

// Int returns a column parsed as int. Values serialized as floats ("32.0")
// are accepted when they carry no fractional part; the recorder's runtime
// has no integer type and may serialize frame counters that way.
func (r Row) Int(col string) (int, error) {
	v, err := r.String(col)
	if err != nil {
		return 0, err
	}
	n, err := parseIntFromFloat(v)
	if err != nil {
		return 0, fmt.Errorf("column %q: %w: %v", col, core.ErrParse, err)
	}
	return n, nil
}

// Bool returns a column parsed as bool. Accepts Go and Python style
// literals ("true", "True", "1") and numeric values (non-zero is true).
func (r Row) Bool(col string) (bool, error) {
	v, err := r.String(col)
	if err != nil {
		return false, err
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b, nil
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f != 0, nil
	}
	return false, fmt.Errorf("column %q: %w: not a bool: %q", col, core.ErrParse, v)
}

// parseIntFromFloat parses a string that may be an integer ("32") or float
// ("32.00") into an int.
func parseIntFromFloat(s string) (int, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return int(v), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("%q is not a valid integer", s)
	}
	return int(f), nil
}

// Table is an ordered sequence of rows loaded from one CSV file. When the
// table carries a frame column its rows are additionally addressable by
// frame index; the index is sparse, lookups are always key-based.
type Table struct {
	columns []string
	rows    []Row
	byFrame map[int]int // frame index -> position in rows
	frames  []int       // distinct frame indices, ascending
}

// Load parses a CSV table. The first record is the header. An empty or
// malformed file fails with core.ErrParse; whether that is fatal is the
// caller's call (the global frame table is required, camera and custom
// tables are optional).
func Load(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrParse, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty table", core.ErrParse)
	}

	t := &Table{
		columns: records[0],
		rows:    make([]Row, 0, len(records)-1),
		byFrame: make(map[int]int),
	}
	frameCol := -1
	for i, name := range t.columns {
		if name == FrameColumn {
			frameCol = i
			break
		}
	}

	for _, rec := range records[1:] {
		row := make(Row, len(t.columns))
		for i, name := range t.columns {
			row[name] = rec[i]
		}
		pos := len(t.rows)
		t.rows = append(t.rows, row)

		if frameCol < 0 {
			continue
		}
		frame, err := parseIntFromFloat(rec[frameCol])
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: bad frame index %q", core.ErrParse, pos+1, rec[frameCol])
		}
		if _, dup := t.byFrame[frame]; !dup {
			t.frames = append(t.frames, frame)
		}
		t.byFrame[frame] = pos
	}
	sort.Ints(t.frames)
	return t, nil
}

// Columns returns the header names in file order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.columns...)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Row returns the row at a file position, for tables without a frame index.
func (t *Table) Row(pos int) (Row, bool) {
	if pos < 0 || pos >= len(t.rows) {
		return nil, false
	}
	return t.rows[pos], true
}

// HasFrameIndex reports whether the table carries a frame column.
func (t *Table) HasFrameIndex() bool {
	for _, name := range t.columns {
		if name == FrameColumn {
			return true
		}
	}
	return false
}

// Frames returns the distinct frame indices in ascending order.
func (t *Table) Frames() []int {
	return append([]int(nil), t.frames...)
}

// Frame returns the row at an exact frame index.
func (t *Table) Frame(index int) (Row, bool) {
	pos, ok := t.byFrame[index]
	if !ok {
		return nil, false
	}
	return t.rows[pos], true
}

// FrameAtOrBefore returns the row with the largest frame index <= index.
// Rows are ordered by frame index, so this is the camera's state as of the
// requested frame even when the camera skipped it.
func (t *Table) FrameAtOrBefore(index int) (Row, bool) {
	i := sort.SearchInts(t.frames, index+1) - 1
	if i < 0 {
		return nil, false
	}
	return t.rows[t.byFrame[t.frames[i]]], true
}

// NextFrame returns the smallest frame index strictly greater than index,
// or index itself when none exists.
func (t *Table) NextFrame(index int) int {
	i := sort.SearchInts(t.frames, index+1)
	if i >= len(t.frames) {
		return index
	}
	return t.frames[i]
}

// MinFrame returns the smallest frame index.
func (t *Table) MinFrame() (int, bool) {
	if len(t.frames) == 0 {
		return 0, false
	}
	return t.frames[0], true
}

// MaxFrame returns the largest frame index.
func (t *Table) MaxFrame() (int, bool) {
	if len(t.frames) == 0 {
		return 0, false
	}
	return t.frames[len(t.frames)-1], true
}
