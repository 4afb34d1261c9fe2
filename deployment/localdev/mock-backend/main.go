package main

import (
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

type experimentRequest struct {
	Strategy           string `json:"strategy"`
	DataItems          int    `json:"data_items"`
	CheckpointInterval int    `json:"checkpoint_interval"`
	ReplicationFactor  int    `json:"replication_factor"`
	TriggerCheckpoint  bool   `json:"trigger_checkpoint"`
}

type failureRequest struct {
	FailureType string `json:"failure_type"`
	NodeCount   int    `json:"node_count"`
}

type configureRequest struct {
	Strategy           string `json:"strategy"`
	CheckpointInterval int    `json:"checkpoint_interval"`
	ReplicationFactor  int    `json:"replication_factor"`
}

// backendState imitates the strategy manager: one active strategy that can be failed and recovered.
type backendState struct {
	mu           sync.Mutex
	strategy     string
	failed       bool
	lastRecovery float64
	experiments  int
}

// recoveryProfile returns a plausible recovery time and data recovery rate per strategy.
func recoveryProfile(strategy string, interval, factor int) (float64, float64) {
	jitter := rand.Float64() * 0.2
	switch strategy {
	case "checkpointing":
		return 0.4 + float64(interval)/120 + jitter, 100 - float64(interval)/6
	case "replication":
		return 0.05 + 0.1/float64(max(factor, 1)) + jitter/4, 100
	case "hybrid":
		return 0.1 + float64(interval)/600 + jitter/2, 100
	default:
		return 0.01 + jitter/10, 0
	}
}

func main() {
	addr := flag.String("addr", ":8000", "listen address")
	delay := flag.Duration("experiment-delay", 3*time.Second, "simulated experiment duration")
	flag.Parse()

	state := &backendState{strategy: "baseline"}
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		state.mu.Lock()
		failed := state.failed
		state.mu.Unlock()
		status, database := "healthy", "connected"
		if failed {
			status, database = "degraded", "disconnected"
		}
		writeJSON(w, map[string]any{
			"status":     status,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
			"components": map[string]string{"database": database, "api": "running"},
		})
	})

	mux.HandleFunc("/api/fault-tolerance/status", func(w http.ResponseWriter, _ *http.Request) {
		state.mu.Lock()
		defer state.mu.Unlock()
		writeJSON(w, map[string]any{
			"strategy":         state.strategy,
			"strategy_details": state.strategy,
			"is_healthy":       !state.failed,
			"stats": map[string]any{
				"last_recovery_time_seconds": state.lastRecovery,
				"experiments":                state.experiments,
				"is_failed":                  state.failed,
			},
		})
	})

	mux.HandleFunc("/api/fault-tolerance/run-experiment", func(w http.ResponseWriter, r *http.Request) {
		var req experimentRequest
		if !decodePost(w, r, &req) {
			return
		}
		if req.DataItems <= 0 {
			writeDetail(w, http.StatusUnprocessableEntity, "data_items must be positive")
			return
		}
		time.Sleep(*delay)
		recovery, rate := recoveryProfile(req.Strategy, req.CheckpointInterval, req.ReplicationFactor)
		if req.TriggerCheckpoint && req.Strategy != "baseline" {
			rate = 100
		}

		state.mu.Lock()
		state.strategy = req.Strategy
		state.lastRecovery = recovery
		state.experiments++
		state.mu.Unlock()

		writeJSON(w, map[string]any{
			"strategy":                   req.Strategy,
			"data_items":                 req.DataItems,
			"store_time_seconds":         0.002 * float64(req.DataItems),
			"recovery_time_seconds":      recovery,
			"items_recovered":            int(float64(req.DataItems) * rate / 100),
			"data_recovery_rate_percent": rate,
		})
	})

	mux.HandleFunc("/api/fault-tolerance/simulate-failure", func(w http.ResponseWriter, r *http.Request) {
		var req failureRequest
		if !decodePost(w, r, &req) {
			return
		}
		state.mu.Lock()
		state.failed = true
		strategy := state.strategy
		state.mu.Unlock()
		writeJSON(w, map[string]any{
			"success":    true,
			"message":    "Failure simulated on " + strategy + " strategy",
			"is_healthy": false,
		})
	})

	mux.HandleFunc("/api/fault-tolerance/recover", func(w http.ResponseWriter, r *http.Request) {
		if !enforcePost(w, r) {
			return
		}
		state.mu.Lock()
		recovery, _ := recoveryProfile(state.strategy, 30, 3)
		state.failed = false
		state.lastRecovery = recovery
		strategy := state.strategy
		state.mu.Unlock()
		writeJSON(w, map[string]any{
			"success":               true,
			"recovery_time_seconds": recovery,
			"is_healthy":            true,
			"strategy":              strategy,
		})
	})

	mux.HandleFunc("/api/fault-tolerance/configure", func(w http.ResponseWriter, r *http.Request) {
		var req configureRequest
		if !decodePost(w, r, &req) {
			return
		}
		state.mu.Lock()
		state.strategy = req.Strategy
		state.mu.Unlock()
		writeJSON(w, map[string]any{
			"success":          true,
			"message":          "Switched to " + req.Strategy + " strategy",
			"current_strategy": req.Strategy,
		})
	})

	mux.HandleFunc("/api/fault-tolerance/experiment-presets", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]any{"presets": []map[string]any{
			{"name": "Baseline Control", "strategy": "baseline", "data_items": 100},
			{"name": "Checkpointing 30s", "strategy": "checkpointing", "checkpoint_interval": 30, "data_items": 100},
			{"name": "Replication Factor 3", "strategy": "replication", "replication_factor": 3, "data_items": 100},
			{"name": "Hybrid Standard", "strategy": "hybrid", "checkpoint_interval": 30, "replication_factor": 3, "data_items": 100},
		}})
	})

	logger := log.New(log.Writer(), "backend-mock ", log.LstdFlags|log.Lmicroseconds)
	srv := &http.Server{
		Addr:    *addr,
		Handler: logRequests(logger, mux),
	}

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}

func enforcePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func decodePost(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !enforcePost(w, r) {
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}

// writeDetail mimics FastAPI's {"detail": ...} error body.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode error: %v", err)
	}
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Printf("%s %s %d %s", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
