package store

import (
	"log"
	"testing"
	"time"

	"ownworld/pkg/types"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", log.New(testWriter{t}, "", 0))
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", p)
	return len(p), nil
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	s := setupTestStore(t)

	name := "Homeworld"
	snap := Snapshot{
		Tick: 42,
		Agents: []*types.Agent{
			{ID: "agent-1", DisplayName: "Commander", Currency: 100, Tech: map[string]int{}},
		},
		Planets: []*types.Planet{
			{ID: types.PlanetID{Galaxy: 1, System: 2, Position: 3}, Name: &name,
				Buildings: map[string]int{"metalMine": 5}, Ships: map[string]int{}, Defense: map[string]int{}},
		},
		Fleets: []*types.Fleet{
			{ID: "fleet-1", OwnerID: "agent-1", Composition: map[string]int{"smallCargo": 3}},
		},
		Debris: []*types.DebrisField{
			{Position: types.PlanetID{Galaxy: 1, System: 2, Position: 4}, Metal: 500},
		},
		Systems: []*types.StarSystem{
			{ID: types.SystemID{Galaxy: 1, System: 2}, Name: "Sol", Provenance: types.NameSeeded},
		},
	}

	if err := s.Save(snap); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if loaded.Tick != 42 {
		t.Fatalf("expected tick 42, got %d", loaded.Tick)
	}
	if len(loaded.Agents) != 1 || loaded.Agents[0].ID != "agent-1" {
		t.Fatalf("expected one round-tripped agent, got %+v", loaded.Agents)
	}
	if len(loaded.Planets) != 1 || loaded.Planets[0].Buildings["metalMine"] != 5 {
		t.Fatalf("expected one round-tripped planet with metalMine=5, got %+v", loaded.Planets)
	}
	if len(loaded.Fleets) != 1 || loaded.Fleets[0].Composition["smallCargo"] != 3 {
		t.Fatalf("expected one round-tripped fleet, got %+v", loaded.Fleets)
	}
	if len(loaded.Debris) != 1 || loaded.Debris[0].Metal != 500 {
		t.Fatalf("expected one round-tripped debris field, got %+v", loaded.Debris)
	}
	if len(loaded.Systems) != 1 || loaded.Systems[0].Name != "Sol" {
		t.Fatalf("expected one round-tripped system, got %+v", loaded.Systems)
	}
}

func TestSaveReconcilesStaleFleetsAndDebris(t *testing.T) {
	s := setupTestStore(t)

	first := Snapshot{
		Tick:   1,
		Fleets: []*types.Fleet{{ID: "fleet-1", OwnerID: "agent-1", Composition: map[string]int{}}},
		Debris: []*types.DebrisField{{Position: types.PlanetID{Galaxy: 1, System: 1, Position: 1}}},
	}
	if err := s.Save(first); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	second := Snapshot{Tick: 2}
	if err := s.Save(second); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(loaded.Fleets) != 0 {
		t.Fatalf("expected stale fleet to be reconciled away, got %+v", loaded.Fleets)
	}
	if len(loaded.Debris) != 0 {
		t.Fatalf("expected stale debris to be reconciled away, got %+v", loaded.Debris)
	}
}

func TestSaveUpsertsExistingAgent(t *testing.T) {
	s := setupTestStore(t)

	if err := s.Save(Snapshot{Agents: []*types.Agent{{ID: "agent-1", Currency: 10}}}); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	if err := s.Save(Snapshot{Agents: []*types.Agent{{ID: "agent-1", Currency: 99}}}); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(loaded.Agents) != 1 {
		t.Fatalf("expected exactly one agent after upsert, got %d", len(loaded.Agents))
	}
	if loaded.Agents[0].Currency != 99 {
		t.Fatalf("expected updated currency 99, got %d", loaded.Agents[0].Currency)
	}
}

func TestMigrateAgentFillsNilMapsAndTrimsLogs(t *testing.T) {
	s := setupTestStore(t)

	entries := make([]types.DecisionLogEntry, types.DecisionLogCapacity+5)
	if err := s.Save(Snapshot{Agents: []*types.Agent{{ID: "agent-1", DecisionLog: entries}}}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	a := loaded.Agents[0]
	if a.Officers == nil || a.Boosters == nil || a.Tech == nil {
		t.Fatalf("expected migrateAgent to fill nil maps, got %+v", a)
	}
	if len(a.DecisionLog) != types.DecisionLogCapacity {
		t.Fatalf("expected decision log trimmed to %d, got %d", types.DecisionLogCapacity, len(a.DecisionLog))
	}
}

func TestAppendAndListBattleReports(t *testing.T) {
	s := setupTestStore(t)
	now := time.Now()

	if err := s.AppendBattleReport("report-1", "agent-1", "agent-2", now, map[string]string{"outcome": "win"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := s.AppendBattleReport("report-2", "agent-3", "agent-4", now, map[string]string{"outcome": "loss"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	reports, err := s.ListBattleReportsFor("agent-1", 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected exactly one report for agent-1, got %d", len(reports))
	}
}
