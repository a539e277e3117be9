package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kootepe/fluxrs-sub001/internal/chamber"
	"github.com/kootepe/fluxrs-sub001/internal/cycle"
	"github.com/kootepe/fluxrs-sub001/internal/flux"
	"github.com/kootepe/fluxrs-sub001/internal/gas"
)

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := EmptyProjectConfig()

	if cfg.GetName() != "default" {
		t.Errorf("GetName = %q", cfg.GetName())
	}
	if cfg.GetMainGas() != gas.CH4 {
		t.Errorf("GetMainGas = %v", cfg.GetMainGas())
	}
	if cfg.GetMainInstrumentID() != 1 {
		t.Errorf("GetMainInstrumentID = %d", cfg.GetMainInstrumentID())
	}
	if cfg.GetDeadband() != 30 {
		t.Errorf("GetDeadband = %f", cfg.GetDeadband())
	}
	if cfg.GetMinCalcLen() != 120 {
		t.Errorf("GetMinCalcLen = %f", cfg.GetMinCalcLen())
	}
	if cfg.GetCloseOffset() != 120 || cfg.GetOpenOffset() != 420 || cfg.GetEndOffset() != 600 {
		t.Errorf("offsets = %d/%d/%d", cfg.GetCloseOffset(), cfg.GetOpenOffset(), cfg.GetEndOffset())
	}
	if cfg.GetMode() != cycle.BestPearsonsR {
		t.Errorf("GetMode = %v", cfg.GetMode())
	}
	if diff := cmp.Diff(cycle.DefaultThresholds(), cfg.GetThresholds()); diff != "" {
		t.Errorf("GetThresholds mismatch (-want +got):\n%s", diff)
	}
	if cfg.GetAirTemperatureC() != 10 || cfg.GetAirPressureHPa() != 1013.25 {
		t.Errorf("meteo defaults = %f/%f", cfg.GetAirTemperatureC(), cfg.GetAirPressureHPa())
	}
	if diff := cmp.Diff(chamber.Default(), cfg.GetChamber()); diff != "" {
		t.Errorf("GetChamber mismatch (-want +got):\n%s", diff)
	}
	if cfg.GetFluxUnit() != flux.UmolM2SUnit {
		t.Errorf("GetFluxUnit = %v", cfg.GetFluxUnit())
	}
	if cfg.GetDBPath() != "fluxrs.db" {
		t.Errorf("GetDBPath = %q", cfg.GetDBPath())
	}
}

func TestConfigOverrides(t *testing.T) {
	cfg := &ProjectConfig{
		Name:             ptrString("oulanka"),
		MainGas:          ptrString("co2"),
		MainInstrumentID: ptrInt64(4),
		Deadband:         ptrFloat64(45),
		Mode:             ptrInt(1),
		R2Thresh:         ptrFloat64(0.9),
		ChamberShape:     ptrString("box"),
		ChamberWidth:     ptrFloat64(0.6),
		ChamberLength:    ptrFloat64(0.6),
		FluxUnit:         ptrString("mg/m2/h"),
	}

	if cfg.GetName() != "oulanka" {
		t.Errorf("GetName = %q", cfg.GetName())
	}
	if cfg.GetMainGas() != gas.CO2 {
		t.Errorf("GetMainGas = %v", cfg.GetMainGas())
	}
	if cfg.GetMainInstrumentID() != 4 {
		t.Errorf("GetMainInstrumentID = %d", cfg.GetMainInstrumentID())
	}
	if cfg.GetDeadband() != 45 {
		t.Errorf("GetDeadband = %f", cfg.GetDeadband())
	}
	if cfg.GetMode() != cycle.AfterDeadband {
		t.Errorf("GetMode = %v", cfg.GetMode())
	}
	th := cfg.GetThresholds()
	if th.R2 != 0.9 || th.PValue != 0.05 {
		t.Errorf("GetThresholds = %+v", th)
	}
	ch := cfg.GetChamber()
	if ch.Shape != chamber.Box || ch.WidthM != 0.6 || ch.LengthM != 0.6 {
		t.Errorf("GetChamber = %+v", ch)
	}
	if cfg.GetFluxUnit() != flux.MgM2HUnit {
		t.Errorf("GetFluxUnit = %v", cfg.GetFluxUnit())
	}
}

func TestLoadProjectConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "project.json")
	content := `{
		"name": "test-site",
		"main_gas": "ch4",
		"deadband": 20,
		"close_offset": 60,
		"open_offset": 300,
		"end_offset": 360,
		"chamber_shape": "cylinder",
		"chamber_diameter": 0.4
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadProjectConfig(path)
	if err != nil {
		t.Fatalf("LoadProjectConfig failed: %v", err)
	}
	if cfg.GetName() != "test-site" {
		t.Errorf("GetName = %q", cfg.GetName())
	}
	if cfg.GetDeadband() != 20 {
		t.Errorf("GetDeadband = %f", cfg.GetDeadband())
	}
	if cfg.GetChamber().DiameterM != 0.4 {
		t.Errorf("DiameterM = %f", cfg.GetChamber().DiameterM)
	}
	// Omitted fields keep their defaults.
	if cfg.GetMinCalcLen() != 120 {
		t.Errorf("GetMinCalcLen = %f", cfg.GetMinCalcLen())
	}
}

func TestLoadProjectConfigErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("wrong extension", func(t *testing.T) {
		path := filepath.Join(dir, "project.yaml")
		os.WriteFile(path, []byte("{}"), 0o644)
		if _, err := LoadProjectConfig(path); err == nil {
			t.Error("non-JSON extension should fail")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadProjectConfig(filepath.Join(dir, "nope.json"))
		if err == nil {
			t.Fatal("missing file should fail")
		}
		// Callers branch on a missing default config.
		if !errors.Is(err, os.ErrNotExist) {
			t.Errorf("error should wrap os.ErrNotExist, got %v", err)
		}
	})

	t.Run("missing default path", func(t *testing.T) {
		if filepath.Ext(DefaultConfigPath) != ".json" {
			t.Fatalf("DefaultConfigPath %q must be a .json file", DefaultConfigPath)
		}
		if _, err := LoadProjectConfig(DefaultConfigPath); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("absent default config should report os.ErrNotExist, got %v", err)
		}
	})

	t.Run("malformed JSON", func(t *testing.T) {
		path := filepath.Join(dir, "broken.json")
		os.WriteFile(path, []byte("{not json"), 0o644)
		if _, err := LoadProjectConfig(path); err == nil {
			t.Error("malformed JSON should fail")
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		path := filepath.Join(dir, "invalid.json")
		os.WriteFile(path, []byte(`{"deadband": -5}`), 0o644)
		if _, err := LoadProjectConfig(path); err == nil {
			t.Error("negative deadband should fail validation")
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *ProjectConfig
		wantErr bool
	}{
		{"empty is valid", EmptyProjectConfig(), false},
		{"unknown gas", &ProjectConfig{MainGas: ptrString("sf6")}, true},
		{"negative deadband", &ProjectConfig{Deadband: ptrFloat64(-1)}, true},
		{"zero min calc len", &ProjectConfig{MinCalcLen: ptrFloat64(0)}, true},
		{"close after open", &ProjectConfig{CloseOffset: ptrInt64(500), OpenOffset: ptrInt64(400)}, true},
		{"open after end", &ProjectConfig{OpenOffset: ptrInt64(500), EndOffset: ptrInt64(400)}, true},
		{"p-value out of range", &ProjectConfig{PValueThresh: ptrFloat64(1.5)}, true},
		{"r2 out of range", &ProjectConfig{R2Thresh: ptrFloat64(-0.1)}, true},
		{"unknown shape", &ProjectConfig{ChamberShape: ptrString("sphere")}, true},
		{"unknown unit", &ProjectConfig{FluxUnit: ptrString("kg/ha/yr")}, true},
		{"sane overrides", &ProjectConfig{Deadband: ptrFloat64(10), R2Thresh: ptrFloat64(0.95)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
