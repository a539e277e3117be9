package db

import (
	"fmt"
	"math"

	"github.com/kootepe/fluxrs-sub001/internal/cycle"
	"github.com/kootepe/fluxrs-sub001/internal/gas"
)

// Sample is one raw instrument reading. Value is NaN when the instrument
// reported nothing for the gas at that timestamp.
type Sample struct {
	InstrumentID int64
	Gas          gas.Type
	TS           float64
	Value        float64
	Diag         int64
}

// InsertMeasurements bulk-writes raw samples in one transaction. Existing
// rows for the same (instrument, gas, timestamp) are replaced, so re-ingest
// of an overlapping file is idempotent.
func (db *DB) InsertMeasurements(samples []Sample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO measurements (instrument_id, gas, ts, value, diag)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare measurement insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		var value interface{}
		if !math.IsNaN(s.Value) {
			value = s.Value
		}
		if _, err := stmt.Exec(s.InstrumentID, s.Gas.String(), s.TS, value, s.Diag); err != nil {
			return fmt.Errorf("failed to insert measurement at %f: %w", s.TS, err)
		}
	}

	return tx.Commit()
}

// LoadSeries reads one channel's samples in [startTS, endTS) ordered by
// time. Null values come back as NaN so gaps survive the round trip.
func (db *DB) LoadSeries(instrumentID int64, g gas.Type, startTS, endTS float64) (cycle.Series, error) {
	rows, err := db.Query(
		`SELECT ts, value, diag FROM measurements
		 WHERE instrument_id = ? AND gas = ? AND ts >= ? AND ts < ?
		 ORDER BY ts`,
		instrumentID, g.String(), startTS, endTS,
	)
	if err != nil {
		return cycle.Series{}, fmt.Errorf("failed to load series %s/%d: %w", g, instrumentID, err)
	}
	defer rows.Close()

	var s cycle.Series
	for rows.Next() {
		var ts float64
		var value *float64
		var diag int64
		if err := rows.Scan(&ts, &value, &diag); err != nil {
			return cycle.Series{}, fmt.Errorf("failed to scan measurement: %w", err)
		}
		v := math.NaN()
		if value != nil {
			v = *value
		}
		s.Time = append(s.Time, ts)
		s.Conc = append(s.Conc, v)
		s.Diag = append(s.Diag, diag)
	}
	return s, rows.Err()
}

// CountMeasurements returns the number of stored samples for one channel.
func (db *DB) CountMeasurements(instrumentID int64, g gas.Type) (int64, error) {
	var n int64
	err := db.QueryRow(
		`SELECT COUNT(*) FROM measurements WHERE instrument_id = ? AND gas = ?`,
		instrumentID, g.String(),
	).Scan(&n)
	return n, err
}
