// Package world holds the in-memory authoritative registries for agents,
// planets, fleets, debris fields and star systems, plus the invariants that
// every mutating path must preserve. Reads take an RLock; individual
// mutating operations hold the write lock only for their own duration, with
// cross-planet mutual exclusion left to pkg/locks at the caller layer.
package world

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"ownworld/pkg/catalog"
	"ownworld/pkg/rng"
	"ownworld/pkg/types"
)

// Bounds describes the galaxy/system/position coordinate space.
type Bounds struct {
	Galaxies        int
	SystemsPerGalaxy int
	PositionsPerSystem int
}

// DefaultBounds matches the environment's default galaxy/system/position
// bounds (5/200/15).
var DefaultBounds = Bounds{Galaxies: 5, SystemsPerGalaxy: 200, PositionsPerSystem: 15}

// SeededNames are the pre-populated system names that take priority over
// procedural generation. Kept small and hand-curated; a real deployment
// would load a larger table from config.
var SeededNames = map[types.SystemID]string{
	{Galaxy: 1, System: 1}: "Sol",
	{Galaxy: 1, System: 50}: "Aldebaran",
	{Galaxy: 2, System: 100}: "Vega Reach",
}

var (
	// ErrAgentNotFound, ErrPlanetNotFound etc. are sentinel lookup errors;
	// callers map these onto the engine's typed NotFound kind.
	ErrAgentNotFound    = fmt.Errorf("world: agent not found")
	ErrPlanetNotFound   = fmt.Errorf("world: planet not found")
	ErrWalletCapReached = fmt.Errorf("world: ip wallet cap reached")
	ErrNoFreePosition   = fmt.Errorf("world: no free position in bounds")
)

const (
	perIPWalletCap  = 3
	starterMetal    = 500.0
	starterCrystal  = 300.0
	starterDeut     = 100.0
)

// World is the concurrent in-memory registry set. Construct with New and
// populate via the Put* methods and SetTick before serving traffic.
type World struct {
	mu sync.RWMutex

	bounds Bounds

	agents  map[string]*types.Agent
	planets map[string]*types.Planet // keyed by PlanetID.String()
	fleets  map[string]*types.Fleet
	debris  map[string]*types.DebrisField // keyed by PlanetID.String()
	systems map[types.SystemID]*types.StarSystem

	walletsByIP map[string]map[string]bool // ip -> set of agent ids
	issuedNames map[string]bool            // global name-uniqueness set

	tick int64
}

// New returns an empty World using DefaultBounds.
func New() *World {
	return NewWithBounds(DefaultBounds)
}

// NewWithBounds returns an empty World with custom coordinate bounds.
func NewWithBounds(b Bounds) *World {
	return &World{
		bounds:      b,
		agents:      make(map[string]*types.Agent),
		planets:     make(map[string]*types.Planet),
		fleets:      make(map[string]*types.Fleet),
		debris:      make(map[string]*types.DebrisField),
		systems:     make(map[types.SystemID]*types.StarSystem),
		walletsByIP: make(map[string]map[string]bool),
		issuedNames: make(map[string]bool),
	}
}

// Tick returns the current tick counter.
func (w *World) Tick() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.tick
}

// AdvanceTick increments and returns the new tick counter.
func (w *World) AdvanceTick() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tick++
	return w.tick
}

// --- read accessors ---

// GetAgent returns a copy-free pointer to the agent; callers must not mutate
// it outside a locked path.
func (w *World) GetAgent(id string) (*types.Agent, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, ok := w.agents[id]
	return a, ok
}

func (w *World) GetPlanet(id types.PlanetID) (*types.Planet, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.planets[id.String()]
	return p, ok
}

func (w *World) GetFleet(id string) (*types.Fleet, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	f, ok := w.fleets[id]
	return f, ok
}

func (w *World) ListFleetsByOwner(ownerID string) []*types.Fleet {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []*types.Fleet
	for _, f := range w.fleets {
		if f.OwnerID == ownerID {
			out = append(out, f)
		}
	}
	return out
}

// ListAllFleets is used by the tick loop to scan for arrivals.
func (w *World) ListAllFleets() []*types.Fleet {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*types.Fleet, 0, len(w.fleets))
	for _, f := range w.fleets {
		out = append(out, f)
	}
	return out
}

func (w *World) ListSystemPlanets(g, s int) []*types.Planet {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var out []*types.Planet
	for _, p := range w.planets {
		if p.ID.Galaxy == g && p.ID.System == s {
			out = append(out, p)
		}
	}
	return out
}

func (w *World) GetDebris(id types.PlanetID) (*types.DebrisField, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	d, ok := w.debris[id.String()]
	return d, ok
}

func (w *World) GetSystemName(id types.SystemID) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s, ok := w.systems[id]
	if !ok {
		return "", false
	}
	return s.Name, true
}

// --- mutation primitives used by store.Load and the engine ---

// PutAgent installs or replaces an agent record verbatim (used when
// restoring a loaded snapshot).
func (w *World) PutAgent(a *types.Agent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.agents[a.ID] = a
}

// PutPlanet installs or replaces a planet record verbatim.
func (w *World) PutPlanet(p *types.Planet) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.planets[p.ID.String()] = p
}

// PutFleet installs or replaces a fleet record verbatim.
func (w *World) PutFleet(f *types.Fleet) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fleets[f.ID] = f
}

// DeleteFleet removes a fleet, e.g. on arrival-and-consumed or annihilation.
func (w *World) DeleteFleet(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.fleets, id)
}

// PutDebris installs or replaces a debris field; a zero-amount field is
// deleted instead of stored.
func (w *World) PutDebris(d *types.DebrisField) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if d.Metal <= 0 && d.Crystal <= 0 {
		delete(w.debris, d.Position.String())
		return
	}
	w.debris[d.Position.String()] = d
}

// PutSystem installs a star system record and marks its name as issued.
func (w *World) PutSystem(s *types.StarSystem) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.systems[s.ID] = s
	w.issuedNames[s.Name] = true
}

// SetTick is used by store.Load to restore the persisted counter.
func (w *World) SetTick(t int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tick = t
}

// NoteWalletForIP records that agentID has registered from ip, for the
// per-IP cap check. RegisterAgent updates the same set directly.
func (w *World) NoteWalletForIP(ip, agentID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	set, ok := w.walletsByIP[ip]
	if !ok {
		set = make(map[string]bool)
		w.walletsByIP[ip] = set
	}
	set[agentID] = true
}

// --- higher-level operations with invariants ---

// RegisterAgent creates a new agent at a randomly chosen empty position, or
// returns the existing agent if walletID was already registered. Enforces
// the per-IP wallet cap for genuinely new registrations.
func (w *World) RegisterAgent(walletID, displayName, ip string, now time.Time) (*types.Agent, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if existing, ok := w.agents[walletID]; ok {
		return existing, nil
	}

	if set := w.walletsByIP[ip]; len(set) >= perIPWalletCap {
		return nil, ErrWalletCapReached
	}

	pos, ok := w.pickFreePositionLocked()
	if !ok {
		return nil, ErrNoFreePosition
	}

	temp := temperatureForPosition(pos.Position)
	planet := &types.Planet{
		ID:          pos,
		OwnerID:     &walletID,
		Temperature: temp,
		Resources:   types.Resources{Metal: starterMetal, Crystal: starterCrystal, Deuterium: starterDeut},
		Buildings:   map[string]int{"metalMine": 1, "solarPlant": 1},
		Ships:       map[string]int{},
		Defense:     map[string]int{},
	}
	w.planets[pos.String()] = planet

	agent := &types.Agent{
		ID:          walletID,
		DisplayName: displayName,
		CreatedAt:   now,
		Planets:     []types.PlanetID{pos},
		Tech:        map[string]int{},
		Officers:    map[string]types.Officer{},
		Boosters:    map[string]types.Booster{},
	}
	for tech := range catalog.Technologies {
		agent.Tech[tech] = 0
	}
	w.agents[walletID] = agent

	set, ok := w.walletsByIP[ip]
	if !ok {
		set = make(map[string]bool)
		w.walletsByIP[ip] = set
	}
	set[walletID] = true

	return agent, nil
}

// pickFreePositionLocked scans for an unoccupied coordinate. Bounds are
// small enough (5x200x15 = 15000 slots by default) that repeated random
// draws with a bounded retry comfortably find a free slot until the
// universe is nearly full.
func (w *World) pickFreePositionLocked() (types.PlanetID, bool) {
	total := w.bounds.Galaxies * w.bounds.SystemsPerGalaxy * w.bounds.PositionsPerSystem
	for attempt := 0; attempt < 200 && attempt < total; attempt++ {
		pos := types.PlanetID{
			Galaxy:   1 + rand.Intn(w.bounds.Galaxies),
			System:   1 + rand.Intn(w.bounds.SystemsPerGalaxy),
			Position: 1 + rand.Intn(w.bounds.PositionsPerSystem),
		}
		if _, taken := w.planets[pos.String()]; !taken {
			return pos, true
		}
	}
	// Exhaustive fallback scan once random probing is unlikely to land.
	for g := 1; g <= w.bounds.Galaxies; g++ {
		for s := 1; s <= w.bounds.SystemsPerGalaxy; s++ {
			for p := 1; p <= w.bounds.PositionsPerSystem; p++ {
				pos := types.PlanetID{Galaxy: g, System: s, Position: p}
				if _, taken := w.planets[pos.String()]; !taken {
					return pos, true
				}
			}
		}
	}
	return types.PlanetID{}, false
}

// temperatureForPosition mirrors the hot-inner/cold-outer curve: lower
// position numbers orbit closer to the star.
func temperatureForPosition(position int) types.TemperatureRange {
	max := 120 - position*8
	if max > 120 {
		max = 120
	}
	min := max - 40
	return types.TemperatureRange{Min: min, Max: max}
}

// EnsureSystemNamed resolves the seeded table first, then lazily generates
// and stores a procedurally unique name. src should be derived from the
// system coordinates so repeated calls before a name is committed are
// deterministic; callers typically derive it via rng.SeedFrom(g, s, salt).
func (w *World) EnsureSystemNamed(id types.SystemID, src rng.Source) *types.StarSystem {
	w.mu.Lock()
	defer w.mu.Unlock()

	if existing, ok := w.systems[id]; ok {
		return existing
	}

	if seeded, ok := SeededNames[id]; ok {
		sys := &types.StarSystem{ID: id, Name: seeded, Provenance: types.NameSeeded}
		w.systems[id] = sys
		w.issuedNames[seeded] = true
		return sys
	}

	name := generateSystemName(src, w.issuedNames)
	sys := &types.StarSystem{ID: id, Name: name, Provenance: types.NameGenerated}
	w.systems[id] = sys
	w.issuedNames[name] = true
	return sys
}

// RenameSystem applies an agent-chosen name if it is globally unique.
// Returns false without mutating anything if the name is already taken.
func (w *World) RenameSystem(id types.SystemID, name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.issuedNames[name] {
		return false
	}
	if existing, ok := w.systems[id]; ok {
		delete(w.issuedNames, existing.Name)
	}
	w.issuedNames[name] = true
	w.systems[id] = &types.StarSystem{ID: id, Name: name, Provenance: types.NameByAgent}
	return true
}

// Snapshot returns shallow-copied slices of every registry, for store.Save
// to serialize without holding the world lock during I/O.
type Snapshot struct {
	Tick    int64
	Agents  []*types.Agent
	Planets []*types.Planet
	Fleets  []*types.Fleet
	Debris  []*types.DebrisField
	Systems []*types.StarSystem
}

func (w *World) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s := Snapshot{Tick: w.tick}
	for _, a := range w.agents {
		s.Agents = append(s.Agents, a)
	}
	for _, p := range w.planets {
		s.Planets = append(s.Planets, p)
	}
	for _, f := range w.fleets {
		s.Fleets = append(s.Fleets, f)
	}
	for _, d := range w.debris {
		s.Debris = append(s.Debris, d)
	}
	for _, sys := range w.systems {
		s.Systems = append(s.Systems, sys)
	}
	return s
}
