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

	"github.com/relabs-tech/inertial_initializer/internal/config"
	"github.com/relabs-tech/inertial_initializer/internal/initializer"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// webData mirrors the latest MQTT payloads for the HTTP and websocket
// surfaces.
type webData struct {
	mu         sync.RWMutex
	status     initializer.Status
	haveStatus bool
	state      initializer.State
	haveState  bool
}

// RunWeb subscribes to the initializer topics and serves them over HTTP:
// JSON snapshots at /api/status and /api/state, a live status stream at
// /ws, and static files from ./web.
func RunWeb() error {
	cfg := config.Get()
	data := &webData{}

	// 1) Connect to MQTT broker
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDWeb)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: connected to MQTT broker at %s", cfg.MQTTBroker)

	// 2) Track the latest status and state
	token := client.Subscribe(cfg.TopicInitStatus, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var st initializer.Status
		if err := json.Unmarshal(msg.Payload(), &st); err != nil {
			log.Printf("web: status unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.status = st
		data.haveStatus = true
		data.mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}

	token = client.Subscribe(cfg.TopicInitState, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s initializer.State
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("web: state unmarshal error: %v", err)
			return
		}
		data.mu.Lock()
		data.state = s
		data.haveState = true
		data.mu.Unlock()
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("web: subscribed to %s and %s", cfg.TopicInitStatus, cfg.TopicInitState)

	// 3) JSON API endpoints
	http.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		data.mu.RLock()
		defer data.mu.RUnlock()

		if !data.haveStatus {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(data.status); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	http.HandleFunc("/api/state", func(w http.ResponseWriter, r *http.Request) {
		data.mu.RLock()
		defer data.mu.RUnlock()

		if !data.haveState {
			http.Error(w, "not initialized yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(data.state); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	// 4) Websocket: push the latest status once a second
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("web: websocket upgrade error: %v", err)
			return
		}
		defer conn.Close()

		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for range ticker.C {
			data.mu.RLock()
			st, ok := data.status, data.haveStatus
			data.mu.RUnlock()
			if !ok {
				continue
			}
			if err := conn.WriteJSON(st); err != nil {
				log.Printf("web: websocket write error: %v", err)
				return
			}
		}
	})

	// 5) Static files from ./web as the root
	fs := http.FileServer(http.Dir("web"))
	http.Handle("/", fs)

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web server listening on %s", addr)
	return http.ListenAndServe(addr, nil)
}
