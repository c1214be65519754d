// Package imu feeds gyroscope data from a serial IMU bridge onto the
// message bus, with a synthetic source standing in for bench runs without
// hardware.
package imu

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/skyshift-uas/tiltctl/internal/bus"
	"github.com/skyshift-uas/tiltctl/internal/monitoring"
	"github.com/skyshift-uas/tiltctl/internal/msg"
	"github.com/skyshift-uas/tiltctl/internal/timeutil"
)

var ErrBadFrame = fmt.Errorf("malformed IMU frame")

// Reader consumes newline-delimited frames from an IMU bridge and publishes
// the decoded samples. Frame format, one record per line:
//
//	GYR,<instance>,<x>,<y>,<z>    angular rate, rad/s, sensor frame
//	BIA,<x>,<y>,<z>               estimated in-run gyro bias, rad/s
//
// Unknown record types are counted and dropped.
type Reader struct {
	Gyro  *bus.Topic[msg.GyroSample]
	Bias  *bus.Topic[msg.SensorBias]
	Clock timeutil.Clock

	dropped int
}

// Run reads frames from r until the stream ends or ctx is cancelled. A
// malformed frame is logged and skipped, not fatal: a glitched UART byte
// must not take down the gyro feed.
func (rd *Reader) Run(ctx context.Context, r io.Reader) error {
	if rd.Clock == nil {
		rd.Clock = timeutil.RealClock{}
	}
	scan := bufio.NewScanner(r)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// The blocking scan.Scan runs in its own goroutine so the outer loop
	// can await lines and context cancellation at the same time.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scan.Err(); err != nil {
			select {
			case scanErrChan <- err:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-scanErrChan:
			return err

		case line, ok := <-lineChan:
			if !ok {
				if err := scan.Err(); err != nil {
					return err
				}
				return nil
			}
			if err := rd.handleLine(line); err != nil {
				rd.dropped++
				monitoring.Logf("imu: dropping frame %q: %v", line, err)
			}
		}
	}
}

// Dropped returns the number of frames discarded so far. Not safe to call
// while Run is active.
func (rd *Reader) Dropped() int { return rd.dropped }

func (rd *Reader) handleLine(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	fields := strings.Split(line, ",")
	switch fields[0] {
	case "GYR":
		if len(fields) != 5 {
			return fmt.Errorf("%w: want 5 fields, got %d", ErrBadFrame, len(fields))
		}
		instance, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("%w: instance: %v", ErrBadFrame, err)
		}
		v, err := parseVec3(fields[2:])
		if err != nil {
			return err
		}
		rd.Gyro.Publish(msg.GyroSample{
			X:         v[0],
			Y:         v[1],
			Z:         v[2],
			Instance:  instance,
			Timestamp: rd.Clock.Now(),
		})
		return nil

	case "BIA":
		if len(fields) != 4 {
			return fmt.Errorf("%w: want 4 fields, got %d", ErrBadFrame, len(fields))
		}
		if rd.Bias == nil {
			return nil
		}
		v, err := parseVec3(fields[1:])
		if err != nil {
			return err
		}
		rd.Bias.Publish(msg.SensorBias{GyroX: v[0], GyroY: v[1], GyroZ: v[2]})
		return nil

	default:
		return fmt.Errorf("%w: unknown record type %q", ErrBadFrame, fields[0])
	}
}

func parseVec3(fields []string) ([3]float64, error) {
	var v [3]float64
	for i, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return v, fmt.Errorf("%w: component %d: %v", ErrBadFrame, i, err)
		}
		v[i] = x
	}
	return v, nil
}
