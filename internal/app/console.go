package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/flight_computer/internal/command"
	"github.com/relabs-tech/flight_computer/internal/config"
	"github.com/relabs-tech/flight_computer/internal/gps"
	"github.com/relabs-tech/flight_computer/internal/imu"
	"github.com/relabs-tech/flight_computer/internal/loop"
)

// RunConsole subscribes to the telemetry topics and prints every message as a
// one-line record. Useful over SSH when the web UI is not up.
func RunConsole(cfg config.Config) error {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	// Subscribe to flight state
	stateToken := client.Subscribe(cfg.TopicState, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var t loop.Telemetry
		if err := json.Unmarshal(msg.Payload(), &t); err != nil {
			log.Printf("console: state unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[STATE] phase=%-9s alt=%6.2f vz=%6.2f x=%6.2f y=%6.2f batt=%5.2fV\n",
			t.Phase, t.Altitude, t.Velocity, t.X, t.Y, t.BatteryV,
		)
	})
	stateToken.Wait()
	if stateToken.Error() != nil {
		return stateToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicState)

	// Subscribe to actuator commands
	cmdToken := client.Subscribe(cfg.TopicCommand, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var c command.Command
		if err := json.Unmarshal(msg.Payload(), &c); err != nil {
			log.Printf("console: command unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[CMD ]  throttle=%7.2f roll=%7.2f pitch=%7.2f\n",
			c.Throttle, c.Roll, c.Pitch,
		)
	})
	cmdToken.Wait()
	if cmdToken.Error() != nil {
		return cmdToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicCommand)

	// Subscribe to IMU samples
	imuToken := client.Subscribe(cfg.TopicIMU, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s imu.Sample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("console: imu unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[IMU ]  roll=%6.2f pitch=%6.2f yaw=%6.2f  ax=%6.3f ay=%6.3f az=%6.3f\n",
			s.Attitude.Roll, s.Attitude.Pitch, s.Attitude.Yaw,
			s.Accel[0], s.Accel[1], s.Accel[2],
		)
	})
	imuToken.Wait()
	if imuToken.Error() != nil {
		return imuToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicIMU)

	// Subscribe to GPS
	gpsToken := client.Subscribe(cfg.TopicGPS, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f gps.Fix
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			log.Printf("console: gps unmarshal error: %v", err)
			return
		}

		fmt.Printf(
			"[GPS ]  time=%s date=%s lat=%.6f lon=%.6f speed=%.1fkn course=%.1f° validity=%s\n",
			f.Time, f.Date, f.Latitude, f.Longitude, f.SpeedKnots, f.CourseDeg, f.Validity,
		)
	})
	gpsToken.Wait()
	if gpsToken.Error() != nil {
		return gpsToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicGPS)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
