package world

import (
	"testing"
	"time"

	"ownworld/pkg/rng"
	"ownworld/pkg/types"
)

func TestRegisterAgentIsIdempotent(t *testing.T) {
	w := New()
	now := time.Now()

	a1, err := w.RegisterAgent("wallet-1", "Commander", "1.2.3.4", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a2, err := w.RegisterAgent("wallet-1", "Commander Renamed", "1.2.3.4", now)
	if err != nil {
		t.Fatalf("unexpected error on re-registration: %v", err)
	}
	if a1 != a2 {
		t.Fatalf("re-registering the same wallet should return the existing agent, not create a new one")
	}
	if len(a1.Planets) != 1 {
		t.Fatalf("expected exactly one starter planet, got %d", len(a1.Planets))
	}
}

func TestRegisterAgentEnforcesPerIPCap(t *testing.T) {
	w := New()
	now := time.Now()

	for i := 0; i < perIPWalletCap; i++ {
		id := "wallet-" + string(rune('a'+i))
		if _, err := w.RegisterAgent(id, "Commander", "9.9.9.9", now); err != nil {
			t.Fatalf("unexpected error registering %s: %v", id, err)
		}
	}

	if _, err := w.RegisterAgent("wallet-overflow", "Commander", "9.9.9.9", now); err != ErrWalletCapReached {
		t.Fatalf("expected ErrWalletCapReached, got %v", err)
	}
}

func TestRegisterAgentPicksDistinctPositions(t *testing.T) {
	w := New()
	now := time.Now()

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id := "wallet-" + string(rune('A'+i))
		a, err := w.RegisterAgent(id, "Commander", "distinct-ip-"+string(rune('A'+i)), now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		key := a.Planets[0].String()
		if seen[key] {
			t.Fatalf("position %s was assigned to two different agents", key)
		}
		seen[key] = true
	}
}

func TestPutAndDeleteFleet(t *testing.T) {
	w := New()
	f := &types.Fleet{ID: "fleet-1", OwnerID: "agent-1", Composition: map[string]int{"smallCargo": 1}}
	w.PutFleet(f)

	if got, ok := w.GetFleet("fleet-1"); !ok || got != f {
		t.Fatalf("expected to retrieve the fleet just stored")
	}

	w.DeleteFleet("fleet-1")
	if _, ok := w.GetFleet("fleet-1"); ok {
		t.Fatalf("expected fleet to be gone after delete")
	}
}

func TestPutDebrisDeletesWhenEmptied(t *testing.T) {
	w := New()
	pos := types.PlanetID{Galaxy: 1, System: 1, Position: 1}
	w.PutDebris(&types.DebrisField{Position: pos, Metal: 100, Crystal: 50})
	if _, ok := w.GetDebris(pos); !ok {
		t.Fatalf("expected debris field to be stored")
	}

	w.PutDebris(&types.DebrisField{Position: pos, Metal: 0, Crystal: 0})
	if _, ok := w.GetDebris(pos); ok {
		t.Fatalf("expected zero-amount debris field to be removed rather than stored")
	}
}

func TestEnsureSystemNamedUsesSeededNameFirst(t *testing.T) {
	w := New()
	id := types.SystemID{Galaxy: 1, System: 1}
	sys := w.EnsureSystemNamed(id, rng.SeedFrom("1", "1"))
	if sys.Name != "Sol" || sys.Provenance != types.NameSeeded {
		t.Fatalf("expected seeded name Sol, got %+v", sys)
	}

	again := w.EnsureSystemNamed(id, rng.SeedFrom("1", "1"))
	if again != sys {
		t.Fatalf("expected the second call to return the already-committed record")
	}
}

func TestEnsureSystemNamedGeneratesUniqueNames(t *testing.T) {
	w := New()
	seen := map[string]bool{}
	for s := 10; s < 60; s++ {
		id := types.SystemID{Galaxy: 3, System: s}
		sys := w.EnsureSystemNamed(id, rng.SeedFrom("3", string(rune(s))))
		if seen[sys.Name] {
			t.Fatalf("generated system name %q collided with a previously issued name", sys.Name)
		}
		seen[sys.Name] = true
	}
}

func TestRenameSystemRejectsDuplicateNames(t *testing.T) {
	w := New()
	idA := types.SystemID{Galaxy: 1, System: 10}
	idB := types.SystemID{Galaxy: 1, System: 11}

	if !w.RenameSystem(idA, "Custom Name") {
		t.Fatalf("expected first rename to succeed")
	}
	if w.RenameSystem(idB, "Custom Name") {
		t.Fatalf("expected second rename to the same name to fail")
	}
}

func TestRenameSystemFreesThePreviousName(t *testing.T) {
	w := New()
	id := types.SystemID{Galaxy: 1, System: 20}

	if !w.RenameSystem(id, "First") {
		t.Fatalf("expected first rename to succeed")
	}
	if !w.RenameSystem(id, "Second") {
		t.Fatalf("expected renaming the same system again to succeed")
	}

	other := types.SystemID{Galaxy: 1, System: 21}
	if !w.RenameSystem(other, "First") {
		t.Fatalf("expected the freed name 'First' to be reusable by another system")
	}
}

func TestSnapshotReflectsAllRegistries(t *testing.T) {
	w := New()
	now := time.Now()
	if _, err := w.RegisterAgent("wallet-1", "Commander", "1.1.1.1", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w.PutFleet(&types.Fleet{ID: "fleet-1", OwnerID: "wallet-1", Composition: map[string]int{}})
	w.PutDebris(&types.DebrisField{Position: types.PlanetID{Galaxy: 1, System: 1, Position: 1}, Metal: 10})
	w.SetTick(7)

	snap := w.Snapshot()
	if snap.Tick != 7 {
		t.Fatalf("expected snapshot tick 7, got %d", snap.Tick)
	}
	if len(snap.Agents) != 1 {
		t.Fatalf("expected 1 agent in snapshot, got %d", len(snap.Agents))
	}
	if len(snap.Planets) != 1 {
		t.Fatalf("expected 1 planet in snapshot, got %d", len(snap.Planets))
	}
	if len(snap.Fleets) != 1 {
		t.Fatalf("expected 1 fleet in snapshot, got %d", len(snap.Fleets))
	}
	if len(snap.Debris) != 1 {
		t.Fatalf("expected 1 debris field in snapshot, got %d", len(snap.Debris))
	}
}
