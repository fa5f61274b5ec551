package magvar

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func TestDefaultModel(t *testing.T) {
	m := Default()
	if m.Epoch != 2020.0 {
		t.Errorf("Epoch = %v, want 2020.0", m.Epoch)
	}
	if m.Name != "WMM-2020" {
		t.Errorf("Name = %q", m.Name)
	}
	if m.Degree() != 12 {
		t.Errorf("Degree() = %d, want 12", m.Degree())
	}
	if Default() != m {
		t.Error("Default() should return the same instance")
	}
}

func TestDeclination(t *testing.T) {
	jan2020 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	mid2022 := time.Date(2022, 7, 2, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		lat, lon float64
		altitude float64
		when     time.Time
		want     float64
	}{
		// WMM-2020 report test values
		{"Arctic sea level", 80, 0, 0, jan2020, -1.28},
		{"Antarctic sea level", -80, 240, 0, jan2020, 69.36},
		{"Arctic 100km", 80, 0, 100000, jan2020, -1.70},
		{"Antarctic 100km", -80, 240, 100000, jan2020, 68.78},
		{"Arctic 2022.5", 80, 0, 0, mid2022, 0.01},
		{"Antarctic 2022.5", -80, 240, 0, mid2022, 69.13},

		{"Frankfurt", 50.0386, 8.5596, 15.2, time.Date(2024, 9, 6, 8, 38, 40, 0, time.UTC), 3.59},
		{"Gothenburg", 57.70011131502446, 11.988278521104876, 0, time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC), 5.06},
		{"San Francisco", 37.77, -122.42, 0, jan2020, 13.39},
		{"New York", 40.7, -74, 0, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), -12.57},
		{"Sydney", -33.86, 151.21, 0, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), 12.82},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Default().Declination(tt.lat, tt.lon, tt.altitude, tt.when)
			if err != nil {
				t.Fatalf("Declination() error = %v", err)
			}
			if math.Abs(d-tt.want) > 0.05 {
				t.Errorf("Declination() = %.3f, want %.2f +/- 0.05", d, tt.want)
			}
		})
	}
}

func TestDeclinationLongitudeWrap(t *testing.T) {
	when := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	a, err := Default().Declination(40.7, -74, 0, when)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Default().Declination(40.7, 286, 0, when)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(a-b) > 1e-9 {
		t.Errorf("-74 and 286 should agree: %v vs %v", a, b)
	}
}

func TestDeclinationErrors(t *testing.T) {
	valid := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		lat, lon float64
		altitude float64
		when     time.Time
		want     error
	}{
		{"Latitude too large", 91, 0, 0, valid, ErrInvalidCoordinate},
		{"Longitude too large", 0, 361, 0, valid, ErrInvalidCoordinate},
		{"NaN latitude", math.NaN(), 0, 0, valid, ErrInvalidCoordinate},
		{"Infinite altitude", 0, 0, math.Inf(1), valid, ErrInvalidCoordinate},
		{"Too deep", 0, 0, -5000, valid, ErrInvalidCoordinate},
		{"Too high", 0, 0, 900000, valid, ErrInvalidCoordinate},
		{"Before validity", 0, 0, 0, time.Date(2014, 12, 31, 0, 0, 0, 0, time.UTC), ErrOutOfRange},
		{"After validity", 0, 0, 0, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Default().Declination(tt.lat, tt.lon, tt.altitude, tt.when)
			if !errors.Is(err, tt.want) {
				t.Errorf("Declination() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	// Axial dipole only: the field points at geographic north everywhere
	cof := `    2025.0            DIPOLE        01/01/2025
  1  0  -29000.0       0.0        0.0        0.0
999999999999999999999999999999999999999999999999
`
	m, err := Load(strings.NewReader(cof))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m.Epoch != 2025 || m.Name != "DIPOLE" || m.Degree() != 1 {
		t.Errorf("Load() = epoch %v name %q degree %d", m.Epoch, m.Name, m.Degree())
	}

	for _, lat := range []float64{-60, 0, 45} {
		d, err := m.Declination(lat, 100, 0, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
		if err != nil {
			t.Fatal(err)
		}
		if math.Abs(d) > 1e-9 {
			t.Errorf("dipole declination at lat %v = %v, want 0", lat, d)
		}
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		cof  string
	}{
		{"Empty", ""},
		{"Bad epoch", "abc WMM\n"},
		{"Header only", "2020.0 WMM\n"},
		{"Short row", "2020.0 WMM\n 1 0 -29404.5 0.0\n"},
		{"Bad order", "2020.0 WMM\n 1 2 1 1 1 1\n"},
		{"Degree too high", "2020.0 WMM\n 13 0 1 1 1 1\n"},
		{"Bad coefficient", "2020.0 WMM\n 1 0 x 0 0 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(strings.NewReader(tt.cof)); err == nil {
				t.Error("Load() should fail")
			}
		})
	}
}

func TestFromDeclination(t *testing.T) {
	tests := []struct {
		in   float64
		want Variation
	}{
		{3.27, Variation{Degrees: 3.27, Direction: "E"}},
		{0, Variation{Degrees: 0, Direction: "E"}},
		{-12.5, Variation{Degrees: 12.5, Direction: "W"}},
	}

	for _, tt := range tests {
		got := FromDeclination(tt.in)
		if got != tt.want {
			t.Errorf("FromDeclination(%v) = %+v, want %+v", tt.in, got, tt.want)
		}
		if got.Declination() != tt.in {
			t.Errorf("Declination() = %v, want %v", got.Declination(), tt.in)
		}
	}
}

func TestDecimalYear(t *testing.T) {
	tests := []struct {
		when time.Time
		want float64
	}{
		{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 2024.0},
		{time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC), 2024.5}, // leap year, 183 of 366 days
		{time.Date(2023, 7, 2, 12, 0, 0, 0, time.UTC), 2023.5},
		{time.Date(2025, 1, 1, 1, 0, 0, 0, time.FixedZone("CET", 3600)), 2025.0},
	}

	for _, tt := range tests {
		if got := DecimalYear(tt.when); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("DecimalYear(%v) = %v, want %v", tt.when, got, tt.want)
		}
	}
}
