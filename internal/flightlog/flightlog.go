// Package flightlog records bridge session events and telemetry samples to a
// sqlite database for post-flight analysis. Each process run is tagged with
// a fresh run ID so multiple sessions can share one database file.
package flightlog

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/helios-sim/fdm.bridge/internal/fdm/protocol"
	"github.com/helios-sim/fdm.bridge/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Log is an open flight log database. It implements the bridge Recorder
// interface; write failures are logged rather than propagated so recording
// can never stall or break the tick path.
type Log struct {
	db    *sql.DB
	runID string

	// sampleEvery throttles state recording; samples closer together than
	// this many sim seconds are dropped.
	sampleEvery   float64
	lastStateTime float64
	haveState     bool
}

// Open opens (creating if needed) the flight log at path and applies any
// pending schema migrations.
func Open(path string, sampleEvery float64) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open flight log: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Log{
		db:          db,
		runID:       uuid.NewString(),
		sampleEvery: sampleEvery,
	}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("failed to prepare migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to prepare migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// RunID returns the identifier tagging this process run's rows.
func (l *Log) RunID() string { return l.runID }

// RecordEvent stores one session event (online, offline, restart).
func (l *Log) RecordEvent(simTime float64, kind, detail string) {
	_, err := l.db.Exec(
		`INSERT INTO session_events (run_id, sim_time, kind, detail) VALUES (?, ?, ?, ?)`,
		l.runID, simTime, kind, detail,
	)
	if err != nil {
		monitoring.Logf("flight log: failed to record %s event: %v", kind, err)
	}
}

// RecordState stores one telemetry sample, subject to the sampling interval.
func (l *Log) RecordState(simTime float64, st *protocol.StateFrame) {
	if l.haveState && simTime-l.lastStateTime < l.sampleEvery {
		return
	}
	l.lastStateTime = simTime
	l.haveState = true

	_, err := l.db.Exec(
		`INSERT INTO telemetry (
			run_id, sim_time,
			pos_n, pos_e, pos_d,
			vel_n, vel_e, vel_d,
			q_w, q_x, q_y, q_z
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.runID, simTime,
		st.Position[0], st.Position[1], st.Position[2],
		st.Velocity[0], st.Velocity[1], st.Velocity[2],
		st.Quaternion[0], st.Quaternion[1], st.Quaternion[2], st.Quaternion[3],
	)
	if err != nil {
		monitoring.Logf("flight log: failed to record telemetry: %v", err)
	}
}

// Event is one recorded session event.
type Event struct {
	SimTime float64
	Kind    string
	Detail  string
}

// Events returns this run's session events in order.
func (l *Log) Events() ([]Event, error) {
	rows, err := l.db.Query(
		`SELECT sim_time, kind, detail FROM session_events WHERE run_id = ? ORDER BY id`,
		l.runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.SimTime, &e.Kind, &e.Detail); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// TelemetryCount returns the number of telemetry samples stored for this run.
func (l *Log) TelemetryCount() (int, error) {
	var n int
	err := l.db.QueryRow(
		`SELECT COUNT(*) FROM telemetry WHERE run_id = ?`, l.runID,
	).Scan(&n)
	return n, err
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}
