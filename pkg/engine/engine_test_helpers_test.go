package engine

import (
	"io"
	"log"
	"testing"

	"ownworld/pkg/locks"
	"ownworld/pkg/store"
	"ownworld/pkg/types"
	"ownworld/pkg/world"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	st, err := store.Open(":memory:", log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	w := world.New()
	lm := locks.New()
	cfg := DefaultConfig()
	silent := log.New(io.Discard, "", 0)
	return New(cfg, w, st, lm, nil, silent, silent)
}

// newOwnedPlanet registers an agent and returns its home planet id, giving
// the planet ample starting resources and a research lab/shipyard so
// command tests don't need to bootstrap buildings level by level.
func newOwnedPlanet(t *testing.T, e *Engine, agentID string) types.PlanetID {
	t.Helper()
	agent, err := e.Register(agentID, "Commander", "1.2.3.4")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	planetID := agent.Planets[0]
	p, ok := e.world.GetPlanet(planetID)
	if !ok {
		t.Fatalf("expected home planet to exist")
	}
	p.Resources = types.Resources{Metal: 1_000_000, Crystal: 1_000_000, Deuterium: 1_000_000}
	p.Buildings["researchLab"] = 5
	p.Buildings["shipyard"] = 5
	return planetID
}
