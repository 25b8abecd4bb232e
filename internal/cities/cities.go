// Package cities loads the static MATOPIBA municipality roster.
package cities

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ExpectedCount is the number of municipalities the roster must contain.
const ExpectedCount = 337

// ValidStates lists the Brazilian states covered by the MATOPIBA region.
var ValidStates = map[string]bool{
	"MA": true,
	"TO": true,
	"PI": true,
	"BA": true,
}

// Ref describes one fixed municipality: its stable code, display name,
// state, and the coordinates the forecast client and ETo kernel need.
type Ref struct {
	Code       string
	Name       string
	State      string
	Latitude   float64
	Longitude  float64
	ElevationM float64
}

// Roster is the immutable, process-lifetime list of municipalities.
type Roster struct {
	refs   []Ref
	byCode map[string]Ref
}

// Len returns the number of cities in the roster.
func (r *Roster) Len() int { return len(r.refs) }

// All returns the roster in file order. The returned slice must not be
// mutated by callers.
func (r *Roster) All() []Ref { return r.refs }

// ByCode looks up a single city by its stable code.
func (r *Roster) ByCode(code string) (Ref, bool) {
	ref, ok := r.byCode[code]
	return ref, ok
}

// Load parses a CSV roster with header `code,name,state,latitude,longitude,elevation_m`
// and validates it has exactly ExpectedCount rows, each with a valid state
// and non-null coordinates.
func Load(r io.Reader) (*Roster, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("cities: reading header: %w", err)
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	roster := &Roster{byCode: make(map[string]Ref, ExpectedCount)}
	line := 1
	for {
		line++
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("cities: line %d: %w", line, err)
		}
		ref, err := parseRow(record)
		if err != nil {
			return nil, fmt.Errorf("cities: line %d: %w", line, err)
		}
		if _, dup := roster.byCode[ref.Code]; dup {
			return nil, fmt.Errorf("cities: line %d: duplicate code %q", line, ref.Code)
		}
		roster.refs = append(roster.refs, ref)
		roster.byCode[ref.Code] = ref
	}

	if len(roster.refs) != ExpectedCount {
		return nil, fmt.Errorf("cities: expected %d rows, got %d", ExpectedCount, len(roster.refs))
	}
	return roster, nil
}

func checkHeader(header []string) error {
	want := []string{"code", "name", "state", "latitude", "longitude", "elevation_m"}
	if len(header) != len(want) {
		return fmt.Errorf("cities: expected %d columns, got %d", len(want), len(header))
	}
	for i, col := range want {
		if strings.TrimSpace(strings.ToLower(header[i])) != col {
			return fmt.Errorf("cities: column %d: expected %q, got %q", i, col, header[i])
		}
	}
	return nil
}

func parseRow(record []string) (Ref, error) {
	if len(record) != 6 {
		return Ref{}, fmt.Errorf("expected 6 columns, got %d", len(record))
	}
	code := strings.TrimSpace(record[0])
	name := strings.TrimSpace(record[1])
	state := strings.TrimSpace(record[2])
	if code == "" || name == "" {
		return Ref{}, fmt.Errorf("code and name must not be empty")
	}
	if !ValidStates[state] {
		return Ref{}, fmt.Errorf("state %q is not one of MA, TO, PI, BA", state)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(record[3]), 64)
	if err != nil {
		return Ref{}, fmt.Errorf("latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(record[4]), 64)
	if err != nil {
		return Ref{}, fmt.Errorf("longitude: %w", err)
	}
	elev, err := strconv.ParseFloat(strings.TrimSpace(record[5]), 64)
	if err != nil {
		return Ref{}, fmt.Errorf("elevation_m: %w", err)
	}
	return Ref{
		Code:       code,
		Name:       name,
		State:      state,
		Latitude:   lat,
		Longitude:  lon,
		ElevationM: elev,
	}, nil
}
