// Package main - loadgen
// Load generator for stress testing: starts many concurrent sessions over
// the REST API and spams equipment commands over WebSocket.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Config for the load generator.
type Config struct {
	ServerURL       string
	NumClients      int
	CommandInterval time.Duration
	TestDuration    time.Duration
	ScenarioID      string
}

// Stats tracks performance counters across all clients.
type Stats struct {
	SessionsStarted  int64
	MessagesSent     int64
	MessagesReceived int64
	Errors           int64
	Latencies        []time.Duration
	mu               sync.Mutex
}

func (s *Stats) recordLatency(d time.Duration) {
	s.mu.Lock()
	s.Latencies = append(s.Latencies, d)
	s.mu.Unlock()
}

// Equipment types cheap enough that a fresh default-funds session can place
// a stream of them before going broke.
var equipmentTypes = []string{
	"pulse_oximeter",
	"arterial_line",
	"iv_pump",
	"hfnc",
}

func main() {
	serverURL := flag.String("url", "http://localhost:8080", "Server base URL")
	numClients := flag.Int("clients", 50, "Number of concurrent clients")
	interval := flag.Duration("interval", 500*time.Millisecond, "Command interval per client")
	duration := flag.Duration("duration", 60*time.Second, "Test duration")
	scenarioID := flag.String("scenario", "septic-shock-01", "Scenario ID to run")
	flag.Parse()

	config := Config{
		ServerURL:       *serverURL,
		NumClients:      *numClients,
		CommandInterval: *interval,
		TestDuration:    *duration,
		ScenarioID:      *scenarioID,
	}

	fmt.Println("=========================================")
	fmt.Println("MEDSIM LOADGEN - Stress Test Tool")
	fmt.Println("=========================================")
	fmt.Printf("Server:   %s\n", config.ServerURL)
	fmt.Printf("Clients:  %d\n", config.NumClients)
	fmt.Printf("Interval: %v\n", config.CommandInterval)
	fmt.Printf("Duration: %v\n", config.TestDuration)
	fmt.Printf("Scenario: %s\n", config.ScenarioID)
	fmt.Println("=========================================")

	ctx, cancel := context.WithTimeout(context.Background(), config.TestDuration)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		fmt.Println("\ninterrupt received, stopping...")
		cancel()
	}()

	stats := runStressTest(ctx, config)
	printResults(stats, config)
}

func runStressTest(ctx context.Context, config Config) *Stats {
	stats := &Stats{
		Latencies: make([]time.Duration, 0, 10000),
	}

	var wg sync.WaitGroup

	fmt.Println("\nstarting clients...")

	for i := 0; i < config.NumClients; i++ {
		wg.Add(1)
		go func(clientID int) {
			defer wg.Done()
			runClient(ctx, clientID, config, stats)
		}(i)

		// Stagger client starts to avoid thundering herd
		time.Sleep(10 * time.Millisecond)
	}

	fmt.Printf("all %d clients started\n\n", config.NumClients)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sent := atomic.LoadInt64(&stats.MessagesSent)
				recv := atomic.LoadInt64(&stats.MessagesReceived)
				errs := atomic.LoadInt64(&stats.Errors)
				fmt.Printf("progress: sent=%d recv=%d errors=%d\n", sent, recv, errs)
			}
		}
	}()

	wg.Wait()
	return stats
}

// createSession starts a run over REST and returns the session ID.
func createSession(ctx context.Context, config Config, clientID int) (string, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"scenario_id": config.ScenarioID,
		"player_id":   fmt.Sprintf("LOADGEN_%03d", clientID),
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.ServerURL+"/api/sessions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("create session returned %d", resp.StatusCode)
	}

	var parsed struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	return parsed.SessionID, nil
}

func runClient(ctx context.Context, clientID int, config Config, stats *Stats) {
	sessionID, err := createSession(ctx, config, clientID)
	if err != nil {
		log.Printf("client %d: session create failed: %v", clientID, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	atomic.AddInt64(&stats.SessionsStarted, 1)

	wsURL, err := url.Parse(config.ServerURL)
	if err != nil {
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	wsURL.Scheme = "ws"
	wsURL.Path = "/ws"
	q := wsURL.Query()
	q.Set("session_id", sessionID)
	wsURL.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		log.Printf("client %d: connection failed: %v", clientID, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	defer conn.Close()

	// Receiver goroutine counts broadcast frames.
	go func() {
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
			atomic.AddInt64(&stats.MessagesReceived, 1)
		}
	}()

	ticker := time.NewTicker(config.CommandInterval)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(int64(clientID)))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cmd := map[string]interface{}{
				"type":      "PLACE_EQUIPMENT",
				"equipment": equipmentTypes[rng.Intn(len(equipmentTypes))],
			}
			start := time.Now()
			if err := conn.WriteJSON(cmd); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				return
			}
			stats.recordLatency(time.Since(start))
			atomic.AddInt64(&stats.MessagesSent, 1)
		}
	}
}

func printResults(stats *Stats, config Config) {
	fmt.Println("\n=========================================")
	fmt.Println("RESULTS")
	fmt.Println("=========================================")
	fmt.Printf("Sessions started:  %d\n", atomic.LoadInt64(&stats.SessionsStarted))
	fmt.Printf("Messages sent:     %d\n", atomic.LoadInt64(&stats.MessagesSent))
	fmt.Printf("Messages received: %d\n", atomic.LoadInt64(&stats.MessagesReceived))
	fmt.Printf("Errors:            %d\n", atomic.LoadInt64(&stats.Errors))

	stats.mu.Lock()
	defer stats.mu.Unlock()
	if len(stats.Latencies) == 0 {
		return
	}
	sort.Slice(stats.Latencies, func(i, j int) bool { return stats.Latencies[i] < stats.Latencies[j] })
	p50 := stats.Latencies[len(stats.Latencies)/2]
	p99 := stats.Latencies[len(stats.Latencies)*99/100]
	fmt.Printf("Write latency p50: %v\n", p50)
	fmt.Printf("Write latency p99: %v\n", p99)
}
