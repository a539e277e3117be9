// Package config loads and validates project configuration. The schema is
// plain JSON with every field optional; Get* accessors supply the
// fallback defaults so partial configs are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kootepe/fluxrs-sub001/internal/chamber"
	"github.com/kootepe/fluxrs-sub001/internal/cycle"
	"github.com/kootepe/fluxrs-sub001/internal/flux"
	"github.com/kootepe/fluxrs-sub001/internal/gas"
)

// DefaultConfigPath is the path to the canonical project defaults file.
const DefaultConfigPath = "config/project.defaults.json"

// ProjectConfig represents the root configuration for one measurement
// project: instrument and gas selection, cycle timing defaults, validity
// thresholds and chamber geometry.
type ProjectConfig struct {
	Name *string `json:"name,omitempty"`

	// Gas selection
	MainGas          *string `json:"main_gas,omitempty"`
	MainInstrumentID *int64  `json:"main_instrument_id,omitempty"`

	// Cycle timing defaults in seconds
	Deadband    *float64 `json:"deadband,omitempty"`
	MinCalcLen  *float64 `json:"min_calc_len,omitempty"`
	CloseOffset *int64   `json:"close_offset,omitempty"`
	OpenOffset  *int64   `json:"open_offset,omitempty"`
	EndOffset   *int64   `json:"end_offset,omitempty"`

	// Calculation window placement: 1 = after deadband, 2 = best pearsons r
	Mode *int `json:"mode,omitempty"`

	// Validity thresholds
	PValueThresh *float64 `json:"p_value_thresh,omitempty"`
	R2Thresh     *float64 `json:"r2_thresh,omitempty"`
	RMSEThresh   *float64 `json:"rmse_thresh,omitempty"`
	T0Thresh     *float64 `json:"t0_thresh,omitempty"`

	// Ambient defaults used when a cycle carries no meteo data
	AirTemperatureC *float64 `json:"air_temperature_c,omitempty"`
	AirPressureHPa  *float64 `json:"air_pressure_hpa,omitempty"`

	// Chamber geometry in meters; shape is "cylinder" or "box"
	ChamberShape    *string  `json:"chamber_shape,omitempty"`
	ChamberDiameter *float64 `json:"chamber_diameter,omitempty"`
	ChamberWidth    *float64 `json:"chamber_width,omitempty"`
	ChamberLength   *float64 `json:"chamber_length,omitempty"`
	ChamberHeight   *float64 `json:"chamber_height,omitempty"`
	SnowDepth       *float64 `json:"snow_depth,omitempty"`
	ExtraVolume     *float64 `json:"extra_volume,omitempty"`

	// Reporting unit, e.g. "umol/m2/s" or "mg/m2/h"
	FluxUnit *string `json:"flux_unit,omitempty"`

	DBPath *string `json:"db_path,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// EmptyProjectConfig returns a ProjectConfig with all fields set to nil.
func EmptyProjectConfig() *ProjectConfig {
	return &ProjectConfig{}
}

// LoadProjectConfig loads a ProjectConfig from a JSON file. The file is
// validated to ensure it has a .json extension and is under the max file
// size. Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadProjectConfig(path string) (*ProjectConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyProjectConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *ProjectConfig) Validate() error {
	if c.MainGas != nil {
		if _, err := gas.ParseType(*c.MainGas); err != nil {
			return err
		}
	}
	if c.Deadband != nil && *c.Deadband < 0 {
		return fmt.Errorf("deadband must be non-negative, got %f", *c.Deadband)
	}
	if c.MinCalcLen != nil && *c.MinCalcLen <= 0 {
		return fmt.Errorf("min_calc_len must be positive, got %f", *c.MinCalcLen)
	}
	if c.CloseOffset != nil && c.OpenOffset != nil && *c.CloseOffset > *c.OpenOffset {
		return fmt.Errorf("close_offset %d exceeds open_offset %d", *c.CloseOffset, *c.OpenOffset)
	}
	if c.OpenOffset != nil && c.EndOffset != nil && *c.OpenOffset > *c.EndOffset {
		return fmt.Errorf("open_offset %d exceeds end_offset %d", *c.OpenOffset, *c.EndOffset)
	}
	if c.PValueThresh != nil {
		if *c.PValueThresh < 0 || *c.PValueThresh > 1 {
			return fmt.Errorf("p_value_thresh must be between 0 and 1, got %f", *c.PValueThresh)
		}
	}
	if c.R2Thresh != nil {
		if *c.R2Thresh < 0 || *c.R2Thresh > 1 {
			return fmt.Errorf("r2_thresh must be between 0 and 1, got %f", *c.R2Thresh)
		}
	}
	if c.ChamberShape != nil {
		if _, err := chamber.ParseShape(*c.ChamberShape); err != nil {
			return err
		}
	}
	if c.FluxUnit != nil {
		if _, err := flux.ParseUnit(*c.FluxUnit); err != nil {
			return err
		}
	}
	return nil
}

// GetName returns the project name or the default.
func (c *ProjectConfig) GetName() string {
	if c.Name == nil {
		return "default"
	}
	return *c.Name
}

// GetMainGas returns the main gas or the default.
func (c *ProjectConfig) GetMainGas() gas.Type {
	if c.MainGas == nil {
		return gas.CH4
	}
	g, err := gas.ParseType(*c.MainGas)
	if err != nil {
		return gas.CH4 // default on parse error
	}
	return g
}

// GetMainInstrumentID returns the main instrument id or the default.
func (c *ProjectConfig) GetMainInstrumentID() int64 {
	if c.MainInstrumentID == nil {
		return 1
	}
	return *c.MainInstrumentID
}

// GetDeadband returns the deadband in seconds or the default.
func (c *ProjectConfig) GetDeadband() float64 {
	if c.Deadband == nil {
		return 30
	}
	return *c.Deadband
}

// GetMinCalcLen returns the minimum window length in seconds or the default.
func (c *ProjectConfig) GetMinCalcLen() float64 {
	if c.MinCalcLen == nil {
		return 120
	}
	return *c.MinCalcLen
}

// GetCloseOffset returns the chamber close offset in seconds or the default.
func (c *ProjectConfig) GetCloseOffset() int64 {
	if c.CloseOffset == nil {
		return 120
	}
	return *c.CloseOffset
}

// GetOpenOffset returns the chamber open offset in seconds or the default.
func (c *ProjectConfig) GetOpenOffset() int64 {
	if c.OpenOffset == nil {
		return 420
	}
	return *c.OpenOffset
}

// GetEndOffset returns the cycle end offset in seconds or the default.
func (c *ProjectConfig) GetEndOffset() int64 {
	if c.EndOffset == nil {
		return 600
	}
	return *c.EndOffset
}

// GetMode returns the calculation window placement mode or the default.
func (c *ProjectConfig) GetMode() cycle.Mode {
	if c.Mode == nil {
		return cycle.DefaultMode
	}
	return cycle.ParseMode(*c.Mode)
}

// GetThresholds bundles the four validity thresholds with defaults.
func (c *ProjectConfig) GetThresholds() cycle.Thresholds {
	th := cycle.DefaultThresholds()
	if c.PValueThresh != nil {
		th.PValue = *c.PValueThresh
	}
	if c.R2Thresh != nil {
		th.R2 = *c.R2Thresh
	}
	if c.RMSEThresh != nil {
		th.RMSE = *c.RMSEThresh
	}
	if c.T0Thresh != nil {
		th.T0 = *c.T0Thresh
	}
	return th
}

// GetAirTemperatureC returns the fallback air temperature or the default.
func (c *ProjectConfig) GetAirTemperatureC() float64 {
	if c.AirTemperatureC == nil {
		return 10
	}
	return *c.AirTemperatureC
}

// GetAirPressureHPa returns the fallback air pressure or the default.
func (c *ProjectConfig) GetAirPressureHPa() float64 {
	if c.AirPressureHPa == nil {
		return 1013.25
	}
	return *c.AirPressureHPa
}

// GetChamber assembles the chamber geometry from the configured fields,
// falling back to the default cylinder.
func (c *ProjectConfig) GetChamber() chamber.Chamber {
	ch := chamber.Default()
	if c.ChamberShape != nil {
		if s, err := chamber.ParseShape(*c.ChamberShape); err == nil {
			ch.Shape = s
		}
	}
	if c.ChamberDiameter != nil {
		ch.DiameterM = *c.ChamberDiameter
	}
	if c.ChamberWidth != nil {
		ch.WidthM = *c.ChamberWidth
	}
	if c.ChamberLength != nil {
		ch.LengthM = *c.ChamberLength
	}
	if c.ChamberHeight != nil {
		ch.HeightM = *c.ChamberHeight
	}
	if c.SnowDepth != nil {
		ch.SnowDepthM = *c.SnowDepth
	}
	if c.ExtraVolume != nil {
		ch.ExtraVolM3 = *c.ExtraVolume
	}
	return ch
}

// GetFluxUnit returns the reporting unit or the default.
func (c *ProjectConfig) GetFluxUnit() flux.Unit {
	if c.FluxUnit == nil {
		return flux.UmolM2SUnit
	}
	u, err := flux.ParseUnit(*c.FluxUnit)
	if err != nil {
		return flux.UmolM2SUnit // default on parse error
	}
	return u
}

// GetDBPath returns the sqlite database path or the default.
func (c *ProjectConfig) GetDBPath() string {
	if c.DBPath == nil {
		return "fluxrs.db"
	}
	return *c.DBPath
}
