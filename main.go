package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"ownworld/pkg/engine"
	"ownworld/pkg/locks"
	"ownworld/pkg/store"
	"ownworld/pkg/types"
	"ownworld/pkg/world"
)

var (
	infoLog  *log.Logger
	errorLog *log.Logger
)

func setupLogging() {
	logDir := "./logs"
	if _, err := os.Stat(logDir); os.IsNotExist(err) {
		os.Mkdir(logDir, 0755)
	}
	fInfo, _ := os.OpenFile(filepath.Join(logDir, "server.log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	fErr, _ := os.OpenFile(filepath.Join(logDir, "error.log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	infoLog = log.New(fInfo, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	errorLog = log.New(fErr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDurationMS(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Millisecond
		}
	}
	return def
}

func loadConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.GameSpeed = envFloat("GAME_SPEED", cfg.GameSpeed)
	cfg.LockTimeout = envDurationMS("LOCK_TIMEOUT_MS", cfg.LockTimeout)
	cfg.TickPeriod = envDurationMS("TICK_PERIOD_MS", cfg.TickPeriod)
	cfg.PersistenceEveryTicks = int64(envInt("PERSISTENCE_EVERY_TICKS", int(cfg.PersistenceEveryTicks)))
	cfg.ScoreSnapshotEveryTick = int64(envInt("SCORE_SNAPSHOT_EVERY_TICK", int(cfg.ScoreSnapshotEveryTick)))
	return cfg
}

func dbPath() string {
	if v := os.Getenv("DB_PATH"); v != "" {
		return v
	}
	return "./data/ownworld.db"
}

func saveDebounce() time.Duration {
	return envDurationMS("SAVE_DEBOUNCE_MS", 200*time.Millisecond)
}

// loadWorld restores every persisted entity into a fresh World. An
// unreadable database is fatal to boot, per spec.md §4.2's failure
// semantics.
func loadWorld(st *store.Store) *world.World {
	w := world.New()
	loaded, err := st.Load()
	if err != nil {
		errorLog.Fatalf("boot: load: %v", err)
	}
	for _, a := range loaded.Agents {
		w.PutAgent(a)
	}
	for _, p := range loaded.Planets {
		w.PutPlanet(p)
	}
	for _, f := range loaded.Fleets {
		w.PutFleet(f)
	}
	for _, d := range loaded.Debris {
		w.PutDebris(d)
	}
	for _, sys := range loaded.Systems {
		w.PutSystem(sys)
	}
	w.SetTick(loaded.Tick)
	return w
}

// runSaveWriter is the single debounced writer goroutine: it coalesces
// markDirty signals behind a minimum save interval so a storm of command
// handlers never triggers a save-per-mutation.
func runSaveWriter(e *engine.Engine, interval time.Duration, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-e.Dirty():
			e.FlushSave()
			time.Sleep(interval)
		}
	}
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeEngineErr(w http.ResponseWriter, err *engine.Error) {
	status := http.StatusInternalServerError
	switch err.Kind {
	case engine.KindNotFound:
		status = http.StatusNotFound
	case engine.KindForbidden:
		status = http.StatusForbidden
	case engine.KindInvalidArgument:
		status = http.StatusBadRequest
	case engine.KindPrecondition:
		status = http.StatusPreconditionFailed
	case engine.KindInsufficient:
		status = http.StatusPaymentRequired
	case engine.KindConflict:
		status = http.StatusConflict
	case engine.KindCorruption, engine.KindInternal:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]any{"error": err.Code, "message": err.Message, "details": err.Details})
}

// registerHandlers exposes the command/query surface as thin JSON
// endpoints. This is NOT the spec's adapter layer (that is out of core
// scope) — it performs no auth or rate limiting beyond what the Engine
// itself enforces, purely to make the module runnable end to end.
func registerHandlers(mux *http.ServeMux, e *engine.Engine) {
	mux.HandleFunc("/api/register", func(w http.ResponseWriter, r *http.Request) {
		var req struct{ WalletID, DisplayName string }
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "badRequest"})
			return
		}
		agent, verr := e.Register(req.WalletID, req.DisplayName, clientIP(r))
		if verr != nil {
			writeEngineErr(w, verr)
			return
		}
		writeJSON(w, http.StatusOK, agent)
	})

	mux.HandleFunc("/api/build", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AgentID  string
			PlanetID types.PlanetID
			Building string
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "badRequest"})
			return
		}
		if verr := e.Build(req.AgentID, req.PlanetID, req.Building); verr != nil {
			writeEngineErr(w, verr)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
}

func main() {
	setupLogging()
	cfg := loadConfig()

	st, err := store.Open(dbPath(), errorLog)
	if err != nil {
		errorLog.Fatalf("boot: open store: %v", err)
	}
	defer st.Close()

	w := loadWorld(st)
	lm := locks.New()

	hooks := engine.NewWebhookDispatcher(4, 256, errorLog)
	defer hooks.Close()

	e := engine.New(cfg, w, st, lm, hooks, infoLog, errorLog)

	stop := make(chan struct{})
	go e.Run(stop)
	go runSaveWriter(e, saveDebounce(), stop)

	mux := http.NewServeMux()
	registerHandlers(mux, e)

	server := &http.Server{
		Addr:         ":8080",
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	infoLog.Println("OwnWorld boot sequence complete, listening on :8080")
	if err := server.ListenAndServe(); err != nil {
		close(stop)
		e.FlushSave()
		errorLog.Fatal(err)
	}
}
