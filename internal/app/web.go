package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/flight_computer/internal/config"
	"github.com/relabs-tech/flight_computer/internal/loop"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// RunWeb serves the ground-station dashboard: a JSON snapshot endpoint, a
// websocket that pushes every state update, and a switch to arm or disarm
// altitude hold.
func RunWeb(cfg config.Config) error {
	var (
		mu        sync.RWMutex
		lastState loop.Telemetry
		haveState bool
	)

	// 1) Connect to MQTT broker on the Pi
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("connected to MQTT broker at %s", cfg.MQTTBroker)

	// Websocket subscribers get a copy of every state update.
	var (
		subMu sync.Mutex
		subs  = make(map[*websocket.Conn]chan loop.Telemetry)
	)

	// 2) Subscribe to the state topic; keep the latest and fan out
	token := client.Subscribe(cfg.TopicState, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var t loop.Telemetry
		if err := json.Unmarshal(msg.Payload(), &t); err != nil {
			log.Printf("MQTT payload unmarshal error: %v", err)
			return
		}
		mu.Lock()
		lastState = t
		haveState = true
		mu.Unlock()

		subMu.Lock()
		for _, ch := range subs {
			select {
			case ch <- t:
			default: // slow client, skip this update
			}
		}
		subMu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("subscribed to MQTT topic %s", cfg.TopicState)

	// 3) JSON API endpoint: latest state
	http.HandleFunc("/api/state", func(w http.ResponseWriter, r *http.Request) {
		mu.RLock()
		defer mu.RUnlock()

		if !haveState {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(lastState); err != nil {
			log.Printf("json encode error: %v", err)
		}
	})

	// 4) Arm/disarm endpoint: publishes the mode flag
	http.HandleFunc("/api/mode", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST only", http.StatusMethodNotAllowed)
			return
		}

		var body struct {
			Hold bool `json:"hold"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		payload, _ := json.Marshal(body.Hold)
		pubToken := client.Publish(cfg.TopicMode, 0, false, payload)
		pubToken.Wait()
		if pubToken.Error() != nil {
			log.Printf("mode publish error: %v", pubToken.Error())
			http.Error(w, "publish failed", http.StatusInternalServerError)
			return
		}
		log.Printf("mode set to hold=%v", body.Hold)
		w.WriteHeader(http.StatusNoContent)
	})

	// 5) Websocket endpoint: push every state update
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket upgrade error: %v", err)
			return
		}
		defer conn.Close()

		ch := make(chan loop.Telemetry, 8)
		subMu.Lock()
		subs[conn] = ch
		subMu.Unlock()
		defer func() {
			subMu.Lock()
			delete(subs, conn)
			subMu.Unlock()
		}()

		// Drain reads so close frames are handled.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case t := <-ch:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteJSON(t); err != nil {
					log.Printf("websocket write error: %v", err)
					return
				}
			case <-done:
				return
			}
		}
	})

	// 6) Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
