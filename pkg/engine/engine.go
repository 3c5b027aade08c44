// Package engine implements the tick loop and command handlers: the
// simulation's only mutating surface. Every exported Engine method either
// returns a result or an *Error describing exactly why it did not.
package engine

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"ownworld/pkg/catalog"
	"ownworld/pkg/locks"
	"ownworld/pkg/rng"
	"ownworld/pkg/store"
	"ownworld/pkg/types"
	"ownworld/pkg/world"
)

// Config bundles the environment-level policy knobs. Field names mirror
// the env vars main.go loads them from.
type Config struct {
	GameSpeed              float64
	MaxDecisionLog         int
	LockTimeout            time.Duration
	TickPeriod             time.Duration
	PersistenceEveryTicks  int64
	ScoreSnapshotEveryTick int64
	NewbieScoreThreshold   int64
	NewbieAgeThreshold     time.Duration
	NewbieRatio            float64
}

// DefaultConfig matches the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		GameSpeed:              10,
		MaxDecisionLog:         types.DecisionLogCapacity,
		LockTimeout:            5 * time.Second,
		TickPeriod:             1 * time.Second,
		PersistenceEveryTicks:  10,
		ScoreSnapshotEveryTick: 100,
		NewbieScoreThreshold:   1000,
		NewbieAgeThreshold:     48 * time.Hour,
		NewbieRatio:            10,
	}
}

// EventSink receives best-effort broadcast events; a nil sink is valid and
// drops everything.
type EventSink interface {
	Emit(kind string, payload map[string]any)
}

type noopSink struct{}

func (noopSink) Emit(string, map[string]any) {}

// Engine owns the World, Store and Locks instances and is the sole mutator
// of simulation state. Constructed once at boot and passed by reference to
// every adapter.
type Engine struct {
	cfg    Config
	world  *world.World
	store  *store.Store
	locks  *locks.Manager
	sink   EventSink
	infoLog *log.Logger
	errLog  *log.Logger

	dirty chan struct{} // signals the save writer; buffered 1, coalescing
}

// New constructs an Engine over an already-loaded World.
func New(cfg Config, w *world.World, st *store.Store, lm *locks.Manager, sink EventSink, infoLog, errLog *log.Logger) *Engine {
	if sink == nil {
		sink = noopSink{}
	}
	return &Engine{
		cfg: cfg, world: w, store: st, locks: lm, sink: sink,
		infoLog: infoLog, errLog: errLog,
		dirty: make(chan struct{}, 1),
	}
}

func (e *Engine) now() time.Time { return time.Now() }

func (e *Engine) emit(kind string, payload map[string]any) { e.sink.Emit(kind, payload) }

// markDirty signals the save writer without blocking; redundant signals
// while one is already pending are dropped (coalescing).
func (e *Engine) markDirty() {
	select {
	case e.dirty <- struct{}{}:
	default:
	}
}

// Dirty exposes the coalescing channel so main's save-writer goroutine can
// select on it.
func (e *Engine) Dirty() <-chan struct{} { return e.dirty }

// FlushSave writes a full snapshot now. Failure is logged, never raised;
// callers (the debounced writer, graceful shutdown) retry on their own
// schedule.
func (e *Engine) FlushSave() {
	snap := e.world.Snapshot()
	err := e.store.Save(store.Snapshot{
		Tick: snap.Tick, Agents: snap.Agents, Planets: snap.Planets,
		Fleets: snap.Fleets, Debris: snap.Debris, Systems: snap.Systems,
	})
	if err != nil && e.errLog != nil {
		e.errLog.Printf("engine: save failed, will retry: %v", err)
	}
}

// --- identifier validation ---

func validBuilding(name string) bool {
	_, ok := catalog.Buildings[name]
	return ok && catalog.ValidIdentifier(name)
}
func validTech(name string) bool {
	_, ok := catalog.Technologies[name]
	return ok && catalog.ValidIdentifier(name)
}
func validShip(name string) bool {
	_, ok := catalog.Ships[name]
	return ok && catalog.ValidIdentifier(name)
}
func validDefense(name string) bool {
	_, ok := catalog.Defenses[name]
	return ok && catalog.ValidIdentifier(name)
}

// --- derived invariant helpers ---

func overseerBonus(a *types.Agent) int {
	if _, ok := a.Officers["engineer"]; ok {
		now := time.Now()
		if o := a.Officers["engineer"]; now.Before(o.ExpiresAt) {
			return 1
		}
	}
	return 0
}

func maxBuildQueue(a *types.Agent) int { return 1 + overseerBonus(a) }

func maxColonyCount(a *types.Agent) int {
	return 1 + int(math.Floor(float64(a.Tech["astrophysics"])/2))
}

func maxActiveFleets(a *types.Agent) int {
	bonus := 0
	if o, ok := a.Officers["admiral"]; ok && time.Now().Before(o.ExpiresAt) {
		bonus += int(catalog.Officers["admiral"]["fleetSlots"])
	}
	return 2 + a.Tech["computer"] + bonus
}

// appendDecision appends a bounded decision-log entry, evicting the oldest
// when the ring buffer is full.
func appendDecision(a *types.Agent, cap int, kind, detail string) {
	a.DecisionLog = append(a.DecisionLog, types.DecisionLogEntry{At: time.Now(), Kind: kind, Detail: detail})
	if len(a.DecisionLog) > cap {
		a.DecisionLog = a.DecisionLog[len(a.DecisionLog)-cap:]
	}
}

func newID() string { return uuid.NewString() }

// resourcesCover reports whether have covers cost component-wise.
func resourcesCover(have, cost types.Resources) bool {
	return have.Metal >= cost.Metal && have.Crystal >= cost.Crystal && have.Deuterium >= cost.Deuterium
}

func subtractResources(have, cost types.Resources) types.Resources {
	return types.Resources{
		Metal:     math.Max(0, have.Metal-cost.Metal),
		Crystal:   math.Max(0, have.Crystal-cost.Crystal),
		Deuterium: math.Max(0, have.Deuterium-cost.Deuterium),
	}
}

func addResources(have, delta types.Resources) types.Resources {
	return types.Resources{
		Metal:     have.Metal + delta.Metal,
		Crystal:   have.Crystal + delta.Crystal,
		Deuterium: have.Deuterium + delta.Deuterium,
	}
}

func floorResources(r types.Resources) types.Resources {
	return types.Resources{
		Metal:     math.Floor(r.Metal),
		Crystal:   math.Floor(r.Crystal),
		Deuterium: math.Floor(r.Deuterium),
	}
}

// planetRNG derives a deterministic combat/name seed from stable inputs;
// callers that need the seed preserved for replay should capture
// src.Seed() before use.
func (e *Engine) planetRNG(parts ...string) rng.Source {
	return rng.SeedFrom(parts...)
}

// withCtx builds a context bound to the configured lock timeout. The
// command handlers pass context.Background() to WithPlanetLock instead.
func (e *Engine) withCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), e.cfg.LockTimeout)
}
