package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/kootepe/fluxrs-sub001/internal/chamber"
	"github.com/kootepe/fluxrs-sub001/internal/cycle"
	"github.com/kootepe/fluxrs-sub001/internal/gas"
)

// Project is one measurement campaign; cycles hang off it.
type Project struct {
	ID               int64
	Name             string
	MainGas          gas.Type
	MainInstrumentID int64
}

// UpsertProject inserts the project or returns the existing row's id.
func (db *DB) UpsertProject(p *Project) error {
	_, err := db.Exec(
		`INSERT INTO projects (name, main_gas, main_instrument_id) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET main_gas = excluded.main_gas,
		 main_instrument_id = excluded.main_instrument_id`,
		p.Name, p.MainGas.String(), p.MainInstrumentID,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert project %q: %w", p.Name, err)
	}
	return db.QueryRow(`SELECT id FROM projects WHERE name = ?`, p.Name).Scan(&p.ID)
}

// GetProject loads a project by name.
func (db *DB) GetProject(name string) (*Project, error) {
	var p Project
	var mainGas string
	err := db.QueryRow(
		`SELECT id, name, main_gas, main_instrument_id FROM projects WHERE name = ?`, name,
	).Scan(&p.ID, &p.Name, &mainGas, &p.MainInstrumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project %q: %w", name, err)
	}
	g, err := gas.ParseType(mainGas)
	if err != nil {
		return nil, err
	}
	p.MainGas = g
	return &p, nil
}

// SaveCycle persists the cycle's timing state, validity bookkeeping,
// per-channel statistics and every fitted model in one transaction, then
// clears the dirty flag.
func (db *DB) SaveCycle(c *cycle.Cycle) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	t := c.Timing
	var overrideValid sql.NullBool
	if c.OverrideValid != nil {
		overrideValid = sql.NullBool{Bool: *c.OverrideValid, Valid: true}
	}

	res, err := tx.Exec(
		`INSERT INTO cycles (
			project_id, chamber_id, start_time, close_offset, open_offset, end_offset,
			start_lag, close_lag, open_lag, end_lag,
			air_temperature, air_pressure, error_code, is_valid, override_valid, manual_adjusted
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(project_id, chamber_id, start_time) DO UPDATE SET
			start_lag = excluded.start_lag,
			close_lag = excluded.close_lag,
			open_lag = excluded.open_lag,
			end_lag = excluded.end_lag,
			air_temperature = excluded.air_temperature,
			air_pressure = excluded.air_pressure,
			error_code = excluded.error_code,
			is_valid = excluded.is_valid,
			override_valid = excluded.override_valid,
			manual_adjusted = excluded.manual_adjusted`,
		c.ProjectID, c.ChamberID, t.StartTS(), t.CloseOffset(), t.OpenOffset(), t.EndOffset(),
		t.StartLag(), t.CloseLag(), t.OpenLag(), t.EndLag(),
		c.Env.AirTemperatureC, c.Env.AirPressureHPa,
		int64(c.ErrorCode), c.IsValid, overrideValid, c.ManualAdjusted,
	)
	if err != nil {
		return fmt.Errorf("failed to save cycle %s@%d: %w", c.ChamberID, t.StartTS(), err)
	}

	cycleID := c.ID
	if cycleID == 0 {
		if cycleID, err = res.LastInsertId(); err != nil {
			return err
		}
		// upsert of an existing row reports the wrong rowid; resolve by key
		err = tx.QueryRow(
			`SELECT id FROM cycles WHERE project_id = ? AND chamber_id = ? AND start_time = ?`,
			c.ProjectID, c.ChamberID, t.StartTS(),
		).Scan(&cycleID)
		if err != nil {
			return err
		}
		c.ID = cycleID
	}

	for _, key := range c.Gases {
		ch, _ := c.Channel(key)
		_, err = tx.Exec(
			`INSERT OR REPLACE INTO cycle_channels (
				cycle_id, gas, instrument_id, unit, deadband, calc_start, calc_end,
				measurement_r2, calc_r2, t0_concentration
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			cycleID, key.Gas.String(), key.InstrumentID, ch.Unit.String(),
			t.Deadband(key), t.CalcStart(key), t.CalcEnd(key),
			nullable(c.MeasurementR2(key)), nullable(c.CalcR2(key)), nullable(c.T0Concentration(key)),
		)
		if err != nil {
			return fmt.Errorf("failed to save channel %s: %w", key, err)
		}
	}

	if _, err = tx.Exec(`DELETE FROM fluxes WHERE cycle_id = ?`, cycleID); err != nil {
		return err
	}
	for fk, fit := range c.Fits() {
		intercept, _ := fit.Intercept()
		slope, _ := fit.Slope()
		_, err = tx.Exec(
			`INSERT INTO fluxes (
				cycle_id, gas, instrument_id, model, flux, intercept, slope,
				r2, adj_r2, rmse, p_value, aic, sigma, cv, range_start, range_end
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			cycleID, fk.Key.Gas.String(), fk.Key.InstrumentID, fk.Kind.String(),
			nullable(fit.Flux()), intercept, slope,
			nullable(fit.R2()), nullable(fit.AdjR2()), nullable(fit.RMSE()),
			nullable(fit.PValue()), nullable(fit.AIC()), nullable(fit.Sigma()),
			nullable(fit.CV()), fit.RangeStart, fit.RangeEnd,
		)
		if err != nil {
			return fmt.Errorf("failed to save flux %s/%s: %w", fk.Key, fk.Kind, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	c.Dirty = false
	return nil
}

// LoadDefaults supplies the project-level values a persisted cycle row
// does not carry.
type LoadDefaults struct {
	AirTemperatureC float64
	AirPressureHPa  float64
	Chamber         chamber.Chamber
	Deadband        float64
	MinCalcLen      float64
}

// LoadCycles reconstructs every cycle of a project ordered by start time:
// the cycle row, its channels, the raw samples from the measurements table
// and the persisted statistics.
func (db *DB) LoadCycles(p *Project, defaults LoadDefaults) ([]*cycle.Cycle, error) {
	rows, err := db.Query(
		`SELECT id, chamber_id, start_time, close_offset, open_offset, end_offset,
			start_lag, close_lag, open_lag, end_lag,
			air_temperature, air_pressure, error_code, is_valid, override_valid, manual_adjusted
		 FROM cycles WHERE project_id = ? ORDER BY start_time`,
		p.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load cycles: %w", err)
	}
	defer rows.Close()

	type cycleRow struct {
		id                                  int64
		chamberID                           string
		startTime                           int64
		closeOffset, openOffset, endOffset  int64
		startLag, closeLag, openLag, endLag float64
		airTemperature, airPressure         sql.NullFloat64
		errorCode                           int64
		isValid                             bool
		overrideValid                       sql.NullBool
		manualAdjusted                      bool
	}

	var crs []cycleRow
	for rows.Next() {
		var cr cycleRow
		err := rows.Scan(
			&cr.id, &cr.chamberID, &cr.startTime, &cr.closeOffset, &cr.openOffset, &cr.endOffset,
			&cr.startLag, &cr.closeLag, &cr.openLag, &cr.endLag,
			&cr.airTemperature, &cr.airPressure, &cr.errorCode, &cr.isValid,
			&cr.overrideValid, &cr.manualAdjusted,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cycle row: %w", err)
		}
		crs = append(crs, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var cycles []*cycle.Cycle
	for _, cr := range crs {
		chans, err := db.loadChannels(cr.id)
		if err != nil {
			return nil, err
		}

		b := cycle.NewBuilder(cr.chamberID, time.Unix(cr.startTime, 0).UTC())
		b.ID = cr.id
		b.ProjectID = p.ID
		b.CloseOffset = cr.closeOffset
		b.OpenOffset = cr.openOffset
		b.EndOffset = cr.endOffset
		b.MainGas = p.MainGas
		b.MainInstrumentID = p.MainInstrumentID
		b.AirTemperatureC = defaults.AirTemperatureC
		if cr.airTemperature.Valid {
			b.AirTemperatureC = cr.airTemperature.Float64
		}
		b.AirPressureHPa = defaults.AirPressureHPa
		if cr.airPressure.Valid {
			b.AirPressureHPa = cr.airPressure.Float64
		}
		b.Chamber = defaults.Chamber
		b.Deadband = defaults.Deadband
		b.MinCalcLen = defaults.MinCalcLen

		for _, chr := range chans {
			series, err := db.LoadSeries(chr.channel.InstrumentID, chr.channel.Gas,
				float64(cr.startTime), float64(cr.startTime+cr.endOffset))
			if err != nil {
				return nil, err
			}
			b.AddChannel(chr.channel, series)
		}

		c, err := b.Build()
		if err != nil {
			return nil, fmt.Errorf("failed to rebuild cycle %d: %w", cr.id, err)
		}

		c.Timing.SetStartLag(cr.startLag)
		c.Timing.SetCloseLag(cr.closeLag)
		c.Timing.SetOpenLag(cr.openLag)
		c.Timing.SetEndLag(cr.endLag)
		for _, chr := range chans {
			key := chr.channel.Key()
			c.Timing.SetDeadband(key, chr.deadband)
			c.Timing.SetCalcStart(key, chr.calcStart)
			c.Timing.SetCalcEnd(key, chr.calcEnd)
			c.RestoreStatistics(key, optFloat(chr.measurementR2), optFloat(chr.calcR2), optFloat(chr.t0))
		}
		c.ErrorCode = cycle.ErrorMask(cr.errorCode)
		c.IsValid = cr.isValid
		if cr.overrideValid.Valid {
			v := cr.overrideValid.Bool
			c.OverrideValid = &v
			c.ManualValid = true
		}
		c.ManualAdjusted = cr.manualAdjusted
		c.Dirty = false

		cycles = append(cycles, c)
	}
	return cycles, nil
}

type channelRow struct {
	channel            gas.Channel
	deadband           float64
	calcStart, calcEnd float64
	measurementR2      sql.NullFloat64
	calcR2             sql.NullFloat64
	t0                 sql.NullFloat64
}

func (db *DB) loadChannels(cycleID int64) ([]channelRow, error) {
	rows, err := db.Query(
		`SELECT gas, instrument_id, unit, deadband, calc_start, calc_end,
			measurement_r2, calc_r2, t0_concentration
		 FROM cycle_channels WHERE cycle_id = ? ORDER BY gas, instrument_id`,
		cycleID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load channels for cycle %d: %w", cycleID, err)
	}
	defer rows.Close()

	var out []channelRow
	for rows.Next() {
		var cr channelRow
		var gasName, unitName string
		var instrumentID int64
		err := rows.Scan(&gasName, &instrumentID, &unitName,
			&cr.deadband, &cr.calcStart, &cr.calcEnd,
			&cr.measurementR2, &cr.calcR2, &cr.t0)
		if err != nil {
			return nil, fmt.Errorf("failed to scan channel row: %w", err)
		}
		g, err := gas.ParseType(gasName)
		if err != nil {
			return nil, err
		}
		u, err := gas.ParseConcentrationUnit(unitName)
		if err != nil {
			return nil, err
		}
		cr.channel = gas.NewChannel(g, u, instrumentID)
		out = append(out, cr)
	}
	return out, rows.Err()
}

// FluxRow is one persisted model fit, read back for reporting.
type FluxRow struct {
	CycleID      int64
	StartTime    int64
	Gas          gas.Type
	InstrumentID int64
	Model        string
	Flux         sql.NullFloat64
	R2           sql.NullFloat64
	PValue       sql.NullFloat64
	RMSE         sql.NullFloat64
	AIC          sql.NullFloat64
	RangeStart   float64
	RangeEnd     float64
}

// LoadFluxes reads every persisted fit for a project, joined to the cycle
// start times, ordered by time.
func (db *DB) LoadFluxes(projectID int64) ([]FluxRow, error) {
	rows, err := db.Query(
		`SELECT f.cycle_id, c.start_time, f.gas, f.instrument_id, f.model, f.flux, f.r2,
			f.p_value, f.rmse, f.aic, f.range_start, f.range_end
		 FROM fluxes f
		 JOIN cycles c ON c.id = f.cycle_id
		 WHERE c.project_id = ?
		 ORDER BY c.start_time, f.gas, f.model`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load fluxes: %w", err)
	}
	defer rows.Close()

	var out []FluxRow
	for rows.Next() {
		var fr FluxRow
		var gasName string
		err := rows.Scan(&fr.CycleID, &fr.StartTime, &gasName, &fr.InstrumentID, &fr.Model,
			&fr.Flux, &fr.R2, &fr.PValue, &fr.RMSE, &fr.AIC, &fr.RangeStart, &fr.RangeEnd)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flux row: %w", err)
		}
		g, err := gas.ParseType(gasName)
		if err != nil {
			return nil, err
		}
		fr.Gas = g
		out = append(out, fr)
	}
	return out, rows.Err()
}

// nullable converts an optional statistic into its sql form.
func nullable(v float64, ok bool) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: ok}
}

// optFloat converts a sql null into the pointer form RestoreStatistics takes.
func optFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}
