// Command bridge runs a standalone FDM bridge against ArduPilot SITL using a
// stationary stand-in vehicle. It exercises the full wire exchange (servo
// packets in, JSON state out) without a physics engine, which is useful for
// soak-testing SITL configurations and for protocol debugging.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/helios-sim/fdm.bridge/internal/config"
	"github.com/helios-sim/fdm.bridge/internal/fdm"
	"github.com/helios-sim/fdm.bridge/internal/fdm/control"
	"github.com/helios-sim/fdm.bridge/internal/fdm/frame"
	"github.com/helios-sim/fdm.bridge/internal/fdm/network"
	"github.com/helios-sim/fdm.bridge/internal/flightlog"
	"github.com/helios-sim/fdm.bridge/internal/rangefinder"
)

var (
	configPath = flag.String("config", "", "Path to bridge config JSON (required)")
	tickRate   = flag.Int("rate", 250, "Bridge tick rate in Hz")
)

// staticVehicle is a stand-in vehicle parked at the world origin. Gravity
// shows up in the accelerometer reading so SITL sees a plausible stationary
// aircraft.
type staticVehicle struct{}

func (staticVehicle) AngularVelocity() r3.Vec    { return r3.Vec{} }
func (staticVehicle) LinearAcceleration() r3.Vec { return r3.Vec{Z: -9.80665} }
func (staticVehicle) WorldPose() frame.Pose      { return frame.Identity() }
func (staticVehicle) WorldLinearVelocity() r3.Vec {
	return r3.Vec{}
}

// nullJoint accepts commands and discards them.
type nullJoint struct{}

func (nullJoint) Position() float64   { return 0 }
func (nullJoint) Velocity() float64   { return 0 }
func (nullJoint) SetForce(float64)    {}
func (nullJoint) SetVelocity(float64) {}
func (nullJoint) SetPosition(float64) {}

func main() {
	flag.Parse()

	if *configPath == "" {
		log.Fatal("-config is required")
	}
	if *tickRate <= 0 {
		log.Fatalf("invalid tick rate %d", *tickRate)
	}

	cfg, err := config.LoadBridgeConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	conn, err := network.Listen(cfg.GetFDMAddr(), cfg.GetFDMPortIn(), nil)
	if err != nil {
		log.Fatalf("failed to bind FDM socket: %v", err)
	}
	defer conn.Close()
	log.Printf("flight dynamics model @ %s:%d", cfg.GetFDMAddr(), cfg.GetFDMPortIn())

	var recorder fdm.Recorder
	if cfg.FlightLogPath != nil {
		fl, err := flightlog.Open(*cfg.FlightLogPath, config.DefaultFlightLogSamplePer)
		if err != nil {
			log.Fatalf("failed to open flight log: %v", err)
		}
		defer fl.Close()
		log.Printf("flight log %s run %s", *cfg.FlightLogPath, fl.RunID())
		recorder = fl
	}

	controls := cfg.BuildControls(func(string) (control.Joint, bool) {
		return nullJoint{}, true
	})

	bridge := fdm.New(fdm.Config{
		Controls:        controls,
		ModelOffset:     cfg.GetModelOffset(),
		NEDOffset:       cfg.GetNEDOffset(),
		TimeoutMaxCount: cfg.GetTimeoutMaxCount(),
		OnlineRecvWait:  cfg.GetOnlineRecvWait(),
		RangeCount:      cfg.GetRangeSensorCount(),
		Recorder:        recorder,
	}, conn, staticVehicle{})

	if cfg.MQTT != nil {
		rfCfg := rangefinder.Config{
			Broker: cfg.MQTT.Broker,
			Count:  cfg.GetRangeSensorCount(),
		}
		if cfg.MQTT.ClientID != nil {
			rfCfg.ClientID = *cfg.MQTT.ClientID
		}
		if cfg.MQTT.TopicPrefix != nil {
			rfCfg.TopicPrefix = *cfg.MQTT.TopicPrefix
		}
		sub, err := rangefinder.Subscribe(rfCfg, bridge)
		if err != nil {
			log.Fatalf("failed to subscribe to rangefinders: %v", err)
		}
		defer sub.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(time.Second / time.Duration(*tickRate))
	defer ticker.Stop()
	start := time.Now()

	log.Printf("bridge ticking at %d Hz", *tickRate)
	for {
		select {
		case <-ctx.Done():
			log.Print("bridge stopping")
			return
		case <-ticker.C:
			bridge.Update(time.Since(start).Seconds())
		}
	}
}
