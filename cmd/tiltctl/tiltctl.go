// Command tiltctl runs the attitude and rate controller for a tilt-module
// multirotor: it bridges gyro data from a serial IMU (or a synthetic
// source) onto the message bus, drives the control loop at gyro rate and
// optionally records telemetry to a SQLite blackbox.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/skyshift-uas/tiltctl/internal/blackbox"
	"github.com/skyshift-uas/tiltctl/internal/config"
	"github.com/skyshift-uas/tiltctl/internal/control"
	"github.com/skyshift-uas/tiltctl/internal/imu"
	"github.com/skyshift-uas/tiltctl/internal/msg"
	"github.com/skyshift-uas/tiltctl/internal/version"
)

var (
	configPath   = flag.String("config", "", "Path to the tuning config JSON file (defaults apply if empty)")
	gyroDevice   = flag.String("gyro-dev", "", "Serial device for the IMU bridge (empty: synthetic gyro)")
	gyroBaud     = flag.Int("gyro-baud", 0, "IMU serial baud rate (0: driver default)")
	gyroRate     = flag.Float64("gyro-rate", 250, "Synthetic gyro sample rate in Hz")
	dbFile       = flag.String("db", "", "Path to the blackbox SQLite file (empty: recording disabled)")
	recordPeriod = flag.Duration("record-interval", 50*time.Millisecond, "Blackbox sampling interval")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

func loadConfig() (*config.TuningConfig, error) {
	if *configPath == "" {
		return config.EmptyTuningConfig(), nil
	}
	return config.LoadTuningConfig(*configPath)
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("tiltctl %s\n", version.Version)
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load tuning config: %v", err)
	}

	topics := control.NewTopics()
	controller := control.New(control.Options{
		Config: cfg,
		Reload: loadConfig,
		Topics: topics,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	// SIGHUP re-reads the tuning file through the parameter-update topic;
	// the controller applies it between loop iterations
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				log.Print("SIGHUP received, requesting tuning reload")
				topics.ParameterUpdate.Publish(msg.ParameterUpdate{Timestamp: time.Now()})
			}
		}
	}()

	// gyro source routine
	wg.Add(1)
	go func() {
		defer wg.Done()
		if *gyroDevice != "" {
			port, err := imu.OpenPort(*gyroDevice, imu.PortOptions{BaudRate: *gyroBaud})
			if err != nil {
				log.Printf("IMU port error: %v", err)
				stop()
				return
			}
			defer port.Close()

			reader := &imu.Reader{Gyro: topics.Gyro, Bias: topics.SensorBias}
			if err := reader.Run(ctx, port); err != nil && err != context.Canceled {
				log.Printf("IMU reader error: %v", err)
				stop()
			}
			log.Print("IMU reader routine terminated")
			return
		}

		log.Printf("No IMU device given, using synthetic gyro at %.0f Hz", *gyroRate)
		synth := &imu.Synthetic{Gyro: topics.Gyro, Rate: *gyroRate}
		if err := synth.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("Synthetic gyro error: %v", err)
		}
	}()

	// blackbox recorder routine
	if *dbFile != "" {
		db, err := blackbox.Open(*dbFile)
		if err != nil {
			log.Fatalf("Failed to open blackbox database: %v", err)
		}
		defer db.Close()

		sessionID, err := db.StartSession("tiltctl " + version.Version)
		if err != nil {
			log.Fatalf("Failed to start blackbox session: %v", err)
		}
		defer func() {
			if err := db.EndSession(sessionID); err != nil {
				log.Printf("Failed to close blackbox session: %v", err)
				return
			}
			if st, err := db.Stats(sessionID); err == nil {
				log.Printf("Blackbox: %s", st)
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := &blackbox.Recorder{
				DB:        db,
				SessionID: sessionID,
				Status:    topics.RateCtrlStatus,
				Actuators: topics.ActuatorControls,
				Interval:  *recordPeriod,
			}
			if err := rec.Run(ctx); err != nil && err != context.Canceled {
				log.Printf("Blackbox recorder error: %v", err)
			}
			log.Print("Blackbox recorder routine terminated")
		}()
	}

	log.Printf("tiltctl %s starting control loop", version.Version)
	if err := controller.Run(ctx); err != nil && err != context.Canceled {
		log.Printf("Control loop error: %v", err)
	}

	wg.Wait()
	log.Print("tiltctl stopped")
}
