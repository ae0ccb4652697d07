package app

import (
	"encoding/json"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/flight_computer/internal/config"
	"github.com/relabs-tech/flight_computer/internal/flow"
	"github.com/relabs-tech/flight_computer/internal/imu"
	"github.com/relabs-tech/flight_computer/internal/loop"
	"github.com/relabs-tech/flight_computer/internal/rangefinder"
)

// RunFlightCore wires the control loop to MQTT: inbound sample topics feed
// the loop's mailboxes, the outbound command and telemetry mailboxes are
// drained onto their topics, and the per-tick pacing tokens are forwarded to
// the triggered producers.
func RunFlightCore(cfg config.Config) error {
	log.Println("starting flight core (estimation + control loop)")

	mb := loop.NewMailboxes()
	l := loop.New(cfg, mb)

	// --- connect to MQTT ---
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDCore)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("flight core: connected to MQTT broker at %s", cfg.MQTTBroker)

	// --- inbound: samples and mode signal into the latest-wins mailboxes ---
	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{cfg.TopicIMU, func(_ mqtt.Client, msg mqtt.Message) {
			var s imu.Sample
			if err := json.Unmarshal(msg.Payload(), &s); err != nil {
				log.Printf("flight core: imu unmarshal error: %v", err)
				return
			}
			mb.IMU.Put(s)
		}},
		{cfg.TopicRange, func(_ mqtt.Client, msg mqtt.Message) {
			var s rangefinder.Sample
			if err := json.Unmarshal(msg.Payload(), &s); err != nil {
				log.Printf("flight core: range unmarshal error: %v", err)
				return
			}
			mb.Range.Put(s)
		}},
		{cfg.TopicFlow, func(_ mqtt.Client, msg mqtt.Message) {
			var s flow.Sample
			if err := json.Unmarshal(msg.Payload(), &s); err != nil {
				log.Printf("flight core: flow unmarshal error: %v", err)
				return
			}
			mb.Flow.Put(s)
		}},
		{cfg.TopicMode, func(_ mqtt.Client, msg mqtt.Message) {
			var hold bool
			if err := json.Unmarshal(msg.Payload(), &hold); err != nil {
				log.Printf("flight core: mode unmarshal error: %v", err)
				return
			}
			mb.Mode.Put(hold)
		}},
	}
	for _, s := range subs {
		token := client.Subscribe(s.topic, 0, s.handler)
		if token.Wait(); token.Error() != nil {
			return token.Error()
		}
		log.Printf("flight core: subscribed to %s", s.topic)
	}

	// --- outbound: commands, telemetry and pacing tokens ---
	go func() {
		// Drain at twice the loop rate so the one-pending-command rule
		// is exercised by real backpressure, not by this bridge.
		interval := time.Duration(cfg.LoopPeriodMS) * time.Millisecond / 2
		if interval <= 0 {
			interval = time.Millisecond
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			if cmd, ok := mb.Command.Take(); ok {
				if payload, err := json.Marshal(cmd); err != nil {
					log.Printf("flight core: command marshal error: %v", err)
				} else {
					client.Publish(cfg.TopicCommand, 0, false, payload)
				}
			}
			if snap, ok := mb.Telemetry.Take(); ok {
				if payload, err := json.Marshal(snap); err != nil {
					log.Printf("flight core: telemetry marshal error: %v", err)
				} else {
					client.Publish(cfg.TopicState, 0, true, payload)
				}
			}
			if _, ok := mb.RangeRequest.Take(); ok {
				client.Publish(cfg.TopicRangeRequest, 0, false, []byte("r"))
			}
			if _, ok := mb.FlowRequest.Take(); ok {
				client.Publish(cfg.TopicFlowRequest, 0, false, []byte("r"))
			}
		}
	}()

	// The loop owns the calling goroutine until the process is killed.
	l.Run()
	return nil
}
