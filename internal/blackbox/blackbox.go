// Package blackbox is a SQLite flight recorder for controller telemetry.
// Every run opens a session; rate-loop status and actuator commands are
// appended as they are published and can be pulled off the vehicle for
// post-flight analysis.
package blackbox

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	_ "modernc.org/sqlite"
)

type FlightDB struct {
	*sql.DB
}

//go:embed schema.sql
var schemaSQL string

// Open opens (creating if needed) the flight recorder database at path.
func Open(path string) (*FlightDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize blackbox schema: %w", err)
	}

	return &FlightDB{db}, nil
}

// StartSession creates a new recording session and returns its ID.
func (db *FlightDB) StartSession(notes string) (int64, error) {
	res, err := db.Exec(`INSERT INTO sessions (notes) VALUES (?)`, notes)
	if err != nil {
		return 0, fmt.Errorf("failed to start session: %w", err)
	}
	return res.LastInsertId()
}

// EndSession closes a session, stamping the end time and the total sample
// count across both telemetry tables.
func (db *FlightDB) EndSession(sessionID int64) error {
	_, err := db.Exec(`
		UPDATE sessions
		SET
			end_timestamp = UNIXEPOCH('subsec'),
			sample_count = (SELECT COUNT(*) FROM rate_status WHERE session_id = ?)
				+ (SELECT COUNT(*) FROM actuator_outputs WHERE session_id = ?)
		WHERE id = ?
	`, sessionID, sessionID, sessionID)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

// RecordRateStatus appends one rate-loop telemetry row.
func (db *FlightDB) RecordRateStatus(sessionID int64, t time.Time,
	rollSpeed, pitchSpeed, yawSpeed, rollInteg, pitchInteg, yawInteg float64) error {

	_, err := db.Exec(`
		INSERT INTO rate_status
			(session_id, sample_time_ns, roll_speed, pitch_speed, yaw_speed,
			 roll_integ, pitch_integ, yaw_integ)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, sessionID, t.UnixNano(), rollSpeed, pitchSpeed, yawSpeed,
		rollInteg, pitchInteg, yawInteg)
	if err != nil {
		return fmt.Errorf("failed to insert rate status: %w", err)
	}
	return nil
}

// RecordActuators appends one actuator command row. The channel layout
// matches the output array: tilt/thrust for module A, overall thrust, then
// tilt/thrust for module B.
func (db *FlightDB) RecordActuators(sessionID int64, t time.Time, control [8]float64) error {
	_, err := db.Exec(`
		INSERT INTO actuator_outputs
			(session_id, sample_time_ns, tilt_alpha_a, tilt_beta_a, thrust_a,
			 thrust, tilt_alpha_b, tilt_beta_b, thrust_b)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sessionID, t.UnixNano(),
		control[0], control[1], control[2], control[3],
		control[5], control[6], control[7])
	if err != nil {
		return fmt.Errorf("failed to insert actuator output: %w", err)
	}
	return nil
}

// SessionStats summarizes one recording session.
type SessionStats struct {
	ID       int64
	Samples  int64
	Duration time.Duration
	Open     bool
}

func (s SessionStats) String() string {
	state := "closed"
	if s.Open {
		state = "recording"
	}
	return fmt.Sprintf("session %d: %s samples over %s (%s)",
		s.ID, humanize.Comma(s.Samples), s.Duration.Round(time.Millisecond), state)
}

// Stats reads the summary for a session. For a still-open session the
// duration runs up to now and the sample count is computed live.
func (db *FlightDB) Stats(sessionID int64) (SessionStats, error) {
	var (
		st    = SessionStats{ID: sessionID}
		start float64
		end   sql.NullFloat64
		count sql.NullInt64
	)
	err := db.QueryRow(`
		SELECT start_timestamp, end_timestamp, sample_count
		FROM sessions WHERE id = ?
	`, sessionID).Scan(&start, &end, &count)
	if err != nil {
		return st, fmt.Errorf("failed to read session %d: %w", sessionID, err)
	}

	if end.Valid {
		st.Duration = time.Duration((end.Float64 - start) * float64(time.Second))
		st.Samples = count.Int64
		return st, nil
	}

	st.Open = true
	st.Duration = time.Since(time.Unix(0, int64(start*float64(time.Second)))).Round(time.Second)
	err = db.QueryRow(`
		SELECT (SELECT COUNT(*) FROM rate_status WHERE session_id = ?)
			 + (SELECT COUNT(*) FROM actuator_outputs WHERE session_id = ?)
	`, sessionID, sessionID).Scan(&st.Samples)
	if err != nil {
		return st, fmt.Errorf("failed to count samples for session %d: %w", sessionID, err)
	}
	return st, nil
}
