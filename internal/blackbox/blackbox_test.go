package blackbox

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyshift-uas/tiltctl/internal/bus"
	"github.com/skyshift-uas/tiltctl/internal/msg"
)

func openTestDB(t *testing.T) *FlightDB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "blackbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSessionRoundTrip(t *testing.T) {
	db := openTestDB(t)

	id, err := db.StartSession("bench run")
	require.NoError(t, err)
	require.NotZero(t, id)

	now := time.Now()
	require.NoError(t, db.RecordRateStatus(id, now, 0.1, 0.2, 0.3, 0, 0, 0))
	require.NoError(t, db.RecordRateStatus(id, now.Add(time.Millisecond), 0.2, 0.3, 0.4, 0, 0, 0))
	require.NoError(t, db.RecordActuators(id, now, [8]float64{0.1, 0.2, 0.3, 0.7, 0, 0.4, 0.5, 0.6}))

	var roll float64
	err = db.QueryRow(
		`SELECT roll_speed FROM rate_status WHERE session_id = ? ORDER BY sample_time_ns LIMIT 1`,
		id).Scan(&roll)
	require.NoError(t, err)
	assert.Equal(t, 0.1, roll)

	st, err := db.Stats(id)
	require.NoError(t, err)
	assert.True(t, st.Open)
	assert.EqualValues(t, 3, st.Samples)

	require.NoError(t, db.EndSession(id))
	st, err = db.Stats(id)
	require.NoError(t, err)
	assert.False(t, st.Open)
	assert.EqualValues(t, 3, st.Samples)
	assert.Contains(t, st.String(), "3 samples")
}

func TestSessionsAreIndependent(t *testing.T) {
	db := openTestDB(t)

	a, err := db.StartSession("first")
	require.NoError(t, err)
	b, err := db.StartSession("second")
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	require.NoError(t, db.RecordRateStatus(a, time.Now(), 1, 1, 1, 0, 0, 0))
	require.NoError(t, db.EndSession(a))
	require.NoError(t, db.EndSession(b))

	stA, err := db.Stats(a)
	require.NoError(t, err)
	stB, err := db.Stats(b)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stA.Samples)
	assert.EqualValues(t, 0, stB.Samples)
}

func TestStatsUnknownSession(t *testing.T) {
	db := openTestDB(t)
	_, err := db.Stats(999)
	assert.Error(t, err)
}

func TestRecorderSamplesTopics(t *testing.T) {
	db := openTestDB(t)
	id, err := db.StartSession("recorder test")
	require.NoError(t, err)

	status := bus.NewTopic(msg.RateControllerStatus{})
	actuators := bus.NewTopic(msg.ActuatorControls{})
	rec := &Recorder{
		DB:        db,
		SessionID: id,
		Status:    status,
		Actuators: actuators,
		Interval:  time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()

	status.Publish(msg.RateControllerStatus{RollSpeed: 0.5, Timestamp: time.Now()})
	actuators.Publish(msg.ActuatorControls{Control: [8]float64{1}, Timestamp: time.Now()})

	// wait for both rows to land
	deadline := time.After(2 * time.Second)
	for {
		st, err := db.Stats(id)
		require.NoError(t, err)
		if st.Samples >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("recorder wrote %d samples, want 2", st.Samples)
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("recorder did not stop")
	}
}
