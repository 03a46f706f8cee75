package db

import (
	"database/sql"
	"math"

	"ess/common"
	"ess/pkg/custype"
)

type TelemetryRow struct {
	RunId       string                  `json:"run_id"`
	Device      string                  `json:"device"`
	Millisecond custype.TimeMillisecond `json:"timestamp"`
	Code        common.ResponseCode     `json:"code"`
	Channel     int                     `json:"channel"`
	Value       *float64                `json:"value"`
}

// SaveTelemetry stores one row per channel. Missing values are stored as null.
func SaveTelemetry(runId string, t common.Telemetry) (err error) {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	stmt, err := tx.Prepare("insert" + " into telemetry (run_id, device, timestamp, code, channel, value) values (?,?,?,?,?,?)")
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	msec := custype.SecondsToTimeMillisecond(t.Timestamp)
	for i, v := range t.Values {
		var value sql.NullFloat64
		if !math.IsNaN(v) {
			value = sql.NullFloat64{Float64: v, Valid: true}
		}
		if _, err = stmt.Exec(runId, t.Name, msec.ToInt64(), int(t.Code), i, value); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetTelemetry returns the rows of device with start < timestamp < end, oldest first.
// end 0 means no upper bound.
func GetTelemetry(device string, start, end int64) ([]TelemetryRow, error) {
	var (
		rows *sql.Rows
		err  error
	)
	const columns = "select" + " run_id, device, timestamp, code, channel, value from telemetry "
	if end == 0 {
		rows, err = db.Query(columns+"where device=? and timestamp>? order by timestamp, channel", device, start)
	} else {
		rows, err = db.Query(columns+"where device=? and timestamp>? and timestamp<? order by timestamp, channel", device, start, end)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var ds []TelemetryRow
	for rows.Next() {
		var (
			d     TelemetryRow
			value sql.NullFloat64
		)
		if err = rows.Scan(&d.RunId, &d.Device, &d.Millisecond, &d.Code, &d.Channel, &value); err != nil {
			return nil, err
		}
		if value.Valid {
			d.Value = &value.Float64
		}
		ds = append(ds, d)
	}
	return ds, rows.Err()
}

// CleanTelemetry deletes the rows older than before (unix milliseconds).
func CleanTelemetry(before int64) (int64, error) {
	res, err := db.Exec("delete from"+" telemetry where timestamp < ?", before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
