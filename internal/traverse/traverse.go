// Package traverse derives path geometry from a session's global frame
// table: the rover's ground-track as a line string, its length, and the
// compact polyline encoding used for display.
package traverse

import (
	"errors"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/lunarloc/lacreplay/internal/table"
)

// ErrTooShort is returned when the frame table holds fewer than two poses.
var ErrTooShort = errors.New("traverse needs at least 2 pose samples")

// Path builds the rover's ground-track from the x/y pose columns of the
// global frame table, ordered by frame index.
func Path(frames *table.Table) (geom.LineString, error) {
	indices := frames.Frames()
	if len(indices) < 2 {
		return geom.LineString{}, ErrTooShort
	}

	flatCoords := make([]float64, 0, len(indices)*2)
	for _, index := range indices {
		row, ok := frames.Frame(index)
		if !ok {
			continue
		}
		x, err := row.Float("x")
		if err != nil {
			return geom.LineString{}, fmt.Errorf("frame %d: %w", index, err)
		}
		y, err := row.Float("y")
		if err != nil {
			return geom.LineString{}, fmt.Errorf("frame %d: %w", index, err)
		}
		flatCoords = append(flatCoords, x, y)
	}
	if len(flatCoords) < 4 {
		return geom.LineString{}, ErrTooShort
	}

	seq := geom.NewSequence(flatCoords, geom.DimXY)
	ls, err := geom.NewLineString(seq)
	if err != nil {
		return geom.LineString{}, fmt.Errorf("building traverse path: %w", err)
	}
	return ls, nil
}

// Length returns the path length in site-frame units.
func Length(ls geom.LineString) float64 {
	return ls.Length()
}
