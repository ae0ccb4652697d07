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
	"github.com/relabs-tech/flight_computer/internal/rangefinder"
)

// RunRangeProducer reads TFmini-style 9-byte frames from the rangefinder
// serial port and publishes one sample per pacing token from the core. The
// sensor streams at its own cadence; the reader keeps only the latest frame.
func RunRangeProducer(cfg config.Config) error {
	log.Println("starting rangefinder producer (serial → MQTT)")

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDRange)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("range producer: connected to MQTT broker at %s", cfg.MQTTBroker)

	serialOpts := serial.OpenOptions{
		PortName:        cfg.RangeSerialPort,
		BaudRate:        cfg.RangeBaudRate,
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
	log.Printf("range producer: serial port %s open at %d baud", cfg.RangeSerialPort, cfg.RangeBaudRate)

	var (
		mu         sync.Mutex
		latest     rangefinder.Sample
		haveSample bool
	)

	// Reader: latest frame wins.
	go func() {
		reader := bufio.NewReader(port)
		for {
			distance, err := readTFMiniFrame(reader)
			if err != nil {
				log.Printf("range producer: read error: %v", err)
				return
			}
			mu.Lock()
			latest = rangefinder.Sample{
				Distance:  distance,
				Timestamp: float64(time.Now().UnixNano()) / 1e9,
			}
			haveSample = true
			mu.Unlock()
		}
	}()

	// Each pacing token publishes the latest sample.
	token := client.Subscribe(cfg.TopicRangeRequest, 0, func(_ mqtt.Client, _ mqtt.Message) {
		mu.Lock()
		sample := latest
		ok := haveSample
		mu.Unlock()
		if !ok {
			return
		}
		payload, err := json.Marshal(sample)
		if err != nil {
			log.Printf("range producer: marshal error: %v", err)
			return
		}
		client.Publish(cfg.TopicRange, 0, false, payload)
	})
	if token.Wait(); token.Error() != nil {
		return token.Error()
	}
	log.Printf("range producer: paced by %s", cfg.TopicRangeRequest)

	select {} // serve until killed
}

// readTFMiniFrame scans for one valid TFmini frame and returns the distance
// in meters. Frame: 0x59 0x59 distL distH strengthL strengthH temp temp sum.
func readTFMiniFrame(reader *bufio.Reader) (float64, error) {
	for {
		b, err := reader.ReadByte()
		if err != nil {
			return 0, err
		}
		if b != 0x59 {
			continue
		}
		b2, err := reader.ReadByte()
		if err != nil {
			return 0, err
		}
		if b2 != 0x59 {
			continue
		}

		var rest [7]byte
		for i := range rest {
			rest[i], err = reader.ReadByte()
			if err != nil {
				return 0, err
			}
		}

		sum := byte(0x59 + 0x59)
		for _, v := range rest[:6] {
			sum += v
		}
		if sum != rest[6] {
			continue // corrupt frame, resync on the next header
		}

		distanceCM := int(rest[0]) | int(rest[1])<<8
		return float64(distanceCM) / 100.0, nil
	}
}
