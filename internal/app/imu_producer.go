package app

import (
	"encoding/json"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/flight_computer/internal/config"
	"github.com/relabs-tech/flight_computer/internal/imu"
	"github.com/relabs-tech/flight_computer/internal/orientation"
	"github.com/relabs-tech/flight_computer/internal/sensors"
)

// RunIMUProducer reads the MPU9250 and the INA219 battery monitor at the
// configured interval, fuses attitude, and publishes imu.Sample messages for
// the flight core.
func RunIMUProducer(cfg config.Config) error {
	log.Println("starting IMU producer (MPU9250 + INA219 → MQTT)")

	// --- Choose attitude source (mock vs real IMU) ---
	var mockSrc orientation.Source
	var src imu.RawSource
	var convert func(imu.Raw) ([3]float64, [3]float64)

	if cfg.IMUUseMock {
		log.Println("using mock attitude source")
		mockSrc = orientation.NewMockSource()
	} else {
		dev, err := sensors.NewIMUSource(cfg)
		if err != nil {
			return err
		}
		src = dev
		convert = dev.Convert
	}

	// Battery monitor is optional on the bench: without it the core falls
	// back to the configured takeoff thrust constant.
	battery, err := sensors.NewBatteryMonitor(cfg)
	if err != nil {
		log.Printf("WARNING: battery monitor unavailable: %v", err)
		battery = nil
	} else {
		defer battery.Close()
	}

	// --- connect to MQTT ---
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDIMU)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)

	log.Println("IMU producer: connected to MQTT, starting publish loop")

	var prevPose orientation.Pose
	var lastTickTime time.Time

	ticker := time.NewTicker(time.Duration(cfg.IMUSampleInterval) * time.Millisecond)
	defer ticker.Stop()

	for t := range ticker.C {
		var deltaTime float64
		if lastTickTime.IsZero() {
			deltaTime = float64(cfg.IMUSampleInterval) / 1000.0
		} else {
			deltaTime = t.Sub(lastTickTime).Seconds()
		}
		lastTickTime = t

		pose, accel, gyro, err := tickSample(mockSrc, src, convert, prevPose, deltaTime)
		if err != nil {
			log.Printf("IMU producer: read error: %v", err)
			continue
		}
		prevPose = pose

		var voltage float64
		if battery != nil {
			if v, err := battery.Voltage(); err != nil {
				log.Printf("IMU producer: battery read error: %v", err)
			} else {
				voltage = v
			}
		}

		sample := imu.Sample{
			Accel: accel,
			Gyro:  gyro,
			Attitude: imu.Attitude{
				Roll:  pose.Roll,
				Pitch: pose.Pitch,
				Yaw:   pose.Yaw,
			},
			BatteryVoltage: voltage,
			Timestamp:      float64(t.UnixNano()) / 1e9,
		}

		payload, err := json.Marshal(sample)
		if err != nil {
			log.Printf("IMU producer: marshal error: %v", err)
			continue
		}
		if token := client.Publish(cfg.TopicIMU, 0, true, payload); token.Wait() && token.Error() != nil {
			log.Printf("IMU producer: publish error: %v", token.Error())
			continue
		}

		log.Printf("%s imu: R=%.2f P=%.2f Y=%.2f | a=[%.2f %.2f %.2f]g | batt=%.2fV",
			t.Format(time.RFC3339), pose.Roll, pose.Pitch, pose.Yaw,
			accel[0], accel[1], accel[2], voltage)
	}
	return nil
}

// tickSample produces one tick's attitude and body motion from whichever
// source is active. The mock path reports level gravity and zero rates so
// downstream tilt math behaves on the bench.
func tickSample(mockSrc orientation.Source, src imu.RawSource,
	convert func(imu.Raw) ([3]float64, [3]float64),
	prev orientation.Pose, deltaTime float64,
) (orientation.Pose, [3]float64, [3]float64, error) {
	if mockSrc != nil {
		pose, err := mockSrc.Next()
		return pose, [3]float64{0, 0, 1}, [3]float64{}, err
	}

	raw, err := src.ReadRaw()
	if err != nil {
		return orientation.Pose{}, [3]float64{}, [3]float64{}, err
	}
	accel, gyro := convert(raw)
	pose := orientation.FusePose(
		accel[0], accel[1], accel[2],
		gyro[0], gyro[1], gyro[2],
		prev, deltaTime,
	)
	return pose, accel, gyro, nil
}
