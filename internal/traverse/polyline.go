package traverse

import (
	"encoding/json"
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"
)

// EncodePolyline serializes a line string as a JSON array of coordinates:
// "[[x1,y1],[x2,y2],...]".
func EncodePolyline(ls geom.LineString) (string, error) {
	seq := ls.Coordinates()
	coords := make([][]float64, 0, seq.Length())
	for i := 0; i < seq.Length(); i++ {
		xy := seq.GetXY(i)
		coords = append(coords, []float64{xy.X, xy.Y})
	}
	out, err := json.Marshal(coords)
	if err != nil {
		return "", fmt.Errorf("failed to encode polyline JSON: %w", err)
	}
	return string(out), nil
}

// ParsePolyline parses a JSON array of coordinates into a geom.LineString.
// Input format: "[[x1,y1],[x2,y2],...]"
func ParsePolyline(input string) (geom.LineString, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return geom.LineString{}, fmt.Errorf("failed to parse polyline JSON: %w", err)
	}

	if len(coords) < 2 {
		return geom.LineString{}, fmt.Errorf("polyline must have at least 2 points, got %d", len(coords))
	}

	flatCoords := make([]float64, 0, len(coords)*2)
	for i, coord := range coords {
		if len(coord) < 2 {
			return geom.LineString{}, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		flatCoords = append(flatCoords, coord[0], coord[1])
	}

	seq := geom.NewSequence(flatCoords, geom.DimXY)
	ls, err := geom.NewLineString(seq)
	if err != nil {
		return geom.LineString{}, fmt.Errorf("failed to build polyline geometry: %w", err)
	}
	return ls, nil
}
