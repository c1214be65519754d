package imu

import (
	"context"
	"math"
	"time"

	"github.com/skyshift-uas/tiltctl/internal/bus"
	"github.com/skyshift-uas/tiltctl/internal/msg"
	"github.com/skyshift-uas/tiltctl/internal/timeutil"
)

// Synthetic publishes generated gyro samples at a fixed rate, standing in
// for the serial bridge on the bench. With a zero Amplitude it produces a
// perfectly still vehicle; otherwise a slow sinusoidal wobble on all three
// axes.
type Synthetic struct {
	Gyro  *bus.Topic[msg.GyroSample]
	Clock timeutil.Clock

	// Rate is the sample rate in Hz. Defaults to 250.
	Rate float64
	// Amplitude is the wobble peak rate in rad/s.
	Amplitude float64
	// Period is the wobble period. Defaults to 4s.
	Period time.Duration
}

// Run publishes samples until ctx is cancelled.
func (s *Synthetic) Run(ctx context.Context) error {
	if s.Clock == nil {
		s.Clock = timeutil.RealClock{}
	}
	rate := s.Rate
	if rate <= 0 {
		rate = 250
	}
	period := s.Period
	if period <= 0 {
		period = 4 * time.Second
	}

	tick := time.NewTicker(time.Duration(float64(time.Second) / rate))
	defer tick.Stop()

	start := s.Clock.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			now := s.Clock.Now()
			phase := 2 * math.Pi * float64(now.Sub(start)) / float64(period)
			s.Gyro.Publish(msg.GyroSample{
				X:         s.Amplitude * math.Sin(phase),
				Y:         s.Amplitude * math.Sin(phase+2*math.Pi/3),
				Z:         s.Amplitude * math.Sin(phase+4*math.Pi/3),
				Timestamp: now,
			})
		}
	}
}
