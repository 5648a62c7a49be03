// internal/screens/coordinates.go
package screens

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/xkilldash9x/zonecheck/internal/browser"
	"github.com/xkilldash9x/zonecheck/internal/interact"
)

// minCoordinates is the smallest ring the application accepts.
const minCoordinates = 3

// Coordinate is one row of a polygon coordinate file.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// ReadCoordinates loads a CSV with latitude and longitude columns. Other
// columns are ignored. Any malformed or out-of-range row, a missing column or
// fewer than three rows is reported as InvalidArgument.
func ReadCoordinates(path string) ([]Coordinate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, invalidCSV(path, "open", err)
	}
	defer f.Close()
	return parseCoordinates(path, f)
}

func parseCoordinates(path string, r io.Reader) ([]Coordinate, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, invalidCSV(path, "file is empty", nil)
		}
		return nil, invalidCSV(path, "header", err)
	}
	latCol, lngCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "latitude":
			latCol = i
		case "longitude":
			lngCol = i
		}
	}
	if latCol < 0 || lngCol < 0 {
		return nil, invalidCSV(path, "header must contain latitude and longitude", nil)
	}

	var coords []Coordinate
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, invalidCSV(path, "read", err)
		}
		if len(rec) <= latCol || len(rec) <= lngCol {
			return nil, invalidCSV(path, fmt.Sprintf("line %d: missing columns", line), nil)
		}
		lat, err := parseDegrees(rec[latCol], 90)
		if err != nil {
			return nil, invalidCSV(path, fmt.Sprintf("line %d: latitude", line), err)
		}
		lng, err := parseDegrees(rec[lngCol], 180)
		if err != nil {
			return nil, invalidCSV(path, fmt.Sprintf("line %d: longitude", line), err)
		}
		coords = append(coords, Coordinate{Latitude: lat, Longitude: lng})
	}
	if len(coords) < minCoordinates {
		return nil, invalidCSV(path, fmt.Sprintf("need at least %d coordinates, got %d", minCoordinates, len(coords)), nil)
	}
	return coords, nil
}

func parseDegrees(s string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if v < -limit || v > limit {
		return 0, fmt.Errorf("%v is outside [-%v, %v]", v, limit, limit)
	}
	return v, nil
}

func invalidCSV(path, msg string, cause error) error {
	msg = fmt.Sprintf("coordinates %s: %s", path, msg)
	if cause == nil {
		return interact.Errorf(interact.InvalidArgument, "read_coordinates", msg)
	}
	return interact.Wrap(interact.InvalidArgument, "read_coordinates", browser.Locator{}, msg, cause)
}
