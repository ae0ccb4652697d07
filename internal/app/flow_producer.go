package app

import (
	"bufio"
	"encoding/json"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/flight_computer/internal/config"
	"github.com/relabs-tech/flight_computer/internal/flow"
)

// RunFlowProducer reads UPFLOW-style frames from the optical flow module and
// publishes one displacement sample per pacing token from the core.
func RunFlowProducer(cfg config.Config) error {
	log.Println("starting optical flow producer (serial → MQTT)")

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDFlow)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("flow producer: connected to MQTT broker at %s", cfg.MQTTBroker)

	serialOpts := serial.OpenOptions{
		PortName:        cfg.FlowSerialPort,
		BaudRate:        cfg.FlowBaudRate,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	}
	port, err := serial.Open(serialOpts)
	if err != nil {
		return err
	}
	defer port.Close()
	log.Printf("flow producer: serial port %s open at %d baud", cfg.FlowSerialPort, cfg.FlowBaudRate)

	var (
		mu         sync.Mutex
		latest     flow.Sample
		haveSample bool
	)

	go func() {
		reader := bufio.NewReader(port)
		for {
			dx, dy, err := readFlowFrame(reader)
			if err != nil {
				log.Printf("flow producer: read error: %v", err)
				return
			}
			mu.Lock()
			latest = flow.Sample{
				Dx:        dx,
				Dy:        dy,
				Timestamp: float64(time.Now().UnixNano()) / 1e9,
			}
			haveSample = true
			mu.Unlock()
		}
	}()

	token := client.Subscribe(cfg.TopicFlowRequest, 0, func(_ mqtt.Client, _ mqtt.Message) {
		mu.Lock()
		sample := latest
		ok := haveSample
		mu.Unlock()
		if !ok {
			return
		}
		payload, err := json.Marshal(sample)
		if err != nil {
			log.Printf("flow producer: marshal error: %v", err)
			return
		}
		client.Publish(cfg.TopicFlow, 0, false, payload)
	})
	if token.Wait(); token.Error() != nil {
		return token.Error()
	}
	log.Printf("flow producer: paced by %s", cfg.TopicFlowRequest)

	select {} // serve until killed
}

// readFlowFrame scans for one valid UPFLOW frame and returns the ground
// displacement in radians. Frame: 0xFE 0x04 dxL dxH dyL dyH quality sum 0xAA;
// dx/dy are int16 in 1e-4 rad.
func readFlowFrame(reader *bufio.Reader) (dx, dy float64, err error) {
	for {
		b, err := reader.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		if b != 0xFE {
			continue
		}
		b2, err := reader.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		if b2 != 0x04 {
			continue
		}

		var rest [7]byte
		for i := range rest {
			rest[i], err = reader.ReadByte()
			if err != nil {
				return 0, 0, err
			}
		}
		if rest[6] != 0xAA {
			continue
		}

		sum := byte(0)
		for _, v := range rest[:4] {
			sum += v
		}
		if sum != rest[5] {
			continue
		}

		rawDx := int16(uint16(rest[0]) | uint16(rest[1])<<8)
		rawDy := int16(uint16(rest[2]) | uint16(rest[3])<<8)
		return float64(rawDx) / 10000.0, float64(rawDy) / 10000.0, nil
	}
}
