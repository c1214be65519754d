package blackbox

import (
	"context"
	"time"

	"github.com/skyshift-uas/tiltctl/internal/bus"
	"github.com/skyshift-uas/tiltctl/internal/monitoring"
	"github.com/skyshift-uas/tiltctl/internal/msg"
)

// Recorder samples controller topics into a FlightDB session. It
// deliberately runs decoupled from the control loop at its own (much
// lower) cadence; the bus hands it the latest value, it never backs up
// the publisher.
type Recorder struct {
	DB        *FlightDB
	SessionID int64

	Status    *bus.Topic[msg.RateControllerStatus]
	Actuators *bus.Topic[msg.ActuatorControls]

	// Interval is the sampling period. Defaults to 50ms.
	Interval time.Duration
}

// Run samples until ctx is cancelled. Insert failures are logged and
// skipped; losing telemetry rows must never affect the vehicle.
func (r *Recorder) Run(ctx context.Context) error {
	interval := r.Interval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}

	statusIn := r.Status.Subscribe()
	defer r.Status.Unsubscribe(statusIn.ID())
	actuatorsIn := r.Actuators.Subscribe()
	defer r.Actuators.Unsubscribe(actuatorsIn.ID())

	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			if st, fresh := statusIn.TakeIfNewer(); fresh {
				err := r.DB.RecordRateStatus(r.SessionID, st.Timestamp,
					st.RollSpeed, st.PitchSpeed, st.YawSpeed,
					st.RollSpeedInteg, st.PitchSpeedInteg, st.YawSpeedInteg)
				if err != nil {
					monitoring.Logf("blackbox: %v", err)
				}
			}
			if out, fresh := actuatorsIn.TakeIfNewer(); fresh {
				if err := r.DB.RecordActuators(r.SessionID, out.Timestamp, out.Control); err != nil {
					monitoring.Logf("blackbox: %v", err)
				}
			}
		}
	}
}
