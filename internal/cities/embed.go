package cities

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"
)

//go:embed matopiba_cities.csv
var rosterCSV []byte

var (
	defaultOnce   sync.Once
	defaultRoster *Roster
	defaultErr    error
)

// Default returns the bundled 337-city MATOPIBA roster, parsed once and
// cached for the process lifetime.
func Default() (*Roster, error) {
	defaultOnce.Do(func() {
		defaultRoster, defaultErr = Load(bytes.NewReader(rosterCSV))
		if defaultErr != nil {
			defaultErr = fmt.Errorf("cities: bundled roster invalid: %w", defaultErr)
		}
	})
	return defaultRoster, defaultErr
}
