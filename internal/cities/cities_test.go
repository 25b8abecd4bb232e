package cities

import (
	"strings"
	"testing"
)

func TestDefaultRosterHasExpectedCount(t *testing.T) {
	roster, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if got := roster.Len(); got != ExpectedCount {
		t.Fatalf("Len() = %d, want %d", got, ExpectedCount)
	}
}

func TestDefaultRosterCoordinatesNonNull(t *testing.T) {
	roster, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	for _, ref := range roster.All() {
		if ref.Latitude == 0 && ref.Longitude == 0 {
			t.Fatalf("city %q has null coordinates", ref.Code)
		}
		if !ValidStates[ref.State] {
			t.Fatalf("city %q has invalid state %q", ref.Code, ref.State)
		}
	}
}

func TestLoadRejectsWrongRowCount(t *testing.T) {
	csvData := "code,name,state,latitude,longitude,elevation_m\nMA0001,Test,MA,-5.0,-45.0,100.0\n"
	_, err := Load(strings.NewReader(csvData))
	if err == nil {
		t.Fatal("expected error for roster with 1 row, got nil")
	}
}

func TestLoadRejectsBadHeader(t *testing.T) {
	csvData := "id,name,state,latitude,longitude,elevation_m\n"
	_, err := Load(strings.NewReader(csvData))
	if err == nil {
		t.Fatal("expected error for bad header, got nil")
	}
}

func TestLoadRejectsInvalidState(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("code,name,state,latitude,longitude,elevation_m\n")
	for i := 0; i < ExpectedCount; i++ {
		state := "MA"
		if i == 200 {
			state = "SP"
		}
		sb.WriteString("C0")
		sb.WriteByte(byte('0' + i/100))
		sb.WriteByte(byte('0' + i/10%10))
		sb.WriteByte(byte('0' + i%10))
		sb.WriteString(",City,")
		sb.WriteString(state)
		sb.WriteString(",-5.0,-45.0,100.0\n")
	}
	_, err := Load(strings.NewReader(sb.String()))
	if err == nil {
		t.Fatal("expected error for invalid state, got nil")
	}
}

func TestByCode(t *testing.T) {
	roster, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	first := roster.All()[0]
	got, ok := roster.ByCode(first.Code)
	if !ok {
		t.Fatalf("ByCode(%q) not found", first.Code)
	}
	if got != first {
		t.Fatalf("ByCode(%q) = %+v, want %+v", first.Code, got, first)
	}
	if _, ok := roster.ByCode("does-not-exist"); ok {
		t.Fatal("ByCode(nonexistent) = true, want false")
	}
}
