package gas

import (
	"testing"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{"CO2", CO2, false},
		{"co2", CO2, false},
		{"CH4", CH4, false},
		{"h2o", H2O, false},
		{"N2O", N2O, false},
		{"SF6", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseType(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTypeRoundTrip(t *testing.T) {
	for _, g := range All() {
		got, err := ParseType(g.String())
		if err != nil || got != g {
			t.Errorf("ParseType(%q) = %v, %v; want %v", g.String(), got, err, g)
		}
	}
}

func TestToPPMFactor(t *testing.T) {
	if f := PPM.ToPPMFactor(); f != 1 {
		t.Errorf("PPM factor = %f, want 1", f)
	}
	if f := PPB.ToPPMFactor(); f != 1e-3 {
		t.Errorf("PPB factor = %f, want 0.001", f)
	}
}

func TestChannelSlopePPMPerS(t *testing.T) {
	ppm := NewChannel(CH4, PPM, 1)
	if got := ppm.SlopePPMPerS(0.5); got != 0.5 {
		t.Errorf("ppm slope = %f, want 0.5", got)
	}
	ppb := NewChannel(N2O, PPB, 2)
	if got := ppb.SlopePPMPerS(100); got != 0.1 {
		t.Errorf("ppb slope = %f, want 0.1", got)
	}
}

func TestKeyLess(t *testing.T) {
	tests := []struct {
		name string
		a, b Key
		want bool
	}{
		{"gas orders first", NewKey(CO2, 9), NewKey(CH4, 1), true},
		{"instrument breaks ties", NewKey(CH4, 1), NewKey(CH4, 2), true},
		{"equal keys", NewKey(CH4, 1), NewKey(CH4, 1), false},
		{"reversed", NewKey(N2O, 1), NewKey(CO2, 1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Less(tt.b); got != tt.want {
				t.Errorf("Less = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChannelKey(t *testing.T) {
	ch := NewChannel(CO2, PPM, 3)
	if ch.Key() != NewKey(CO2, 3) {
		t.Errorf("Key = %v", ch.Key())
	}
}
