package engine

import (
	"testing"
	"time"

	"ownworld/pkg/types"
)

func TestHandleTransportArrivalDeliversCargoAndReturns(t *testing.T) {
	e := newTestEngine(t)
	origin := newOwnedPlanet(t, e, "agent-1")
	dest := types.PlanetID{Galaxy: origin.Galaxy, System: origin.System, Position: origin.Position + 1}
	agent, _ := e.world.GetAgent("agent-1")
	e.world.PutPlanet(&types.Planet{ID: dest, OwnerID: &agent.ID, Buildings: map[string]int{}, Ships: map[string]int{}, Defense: map[string]int{}})

	f := &types.Fleet{
		ID: "fleet-1", OwnerID: "agent-1", Composition: map[string]int{"smallCargo": 1},
		Mission: types.MissionTransport, Origin: origin, Destination: dest,
		Cargo: types.Resources{Metal: 100}, DepartsAt: time.Now(), ArrivesAt: time.Now(),
	}
	e.world.PutFleet(f)

	e.handleTransportArrival(f, time.Now())

	destPlanet, _ := e.world.GetPlanet(dest)
	if destPlanet.Resources.Metal != 100 {
		t.Fatalf("expected destination to receive 100 metal, got %v", destPlanet.Resources.Metal)
	}
	if !f.Returning {
		t.Fatalf("expected the fleet to be flagged returning after delivering cargo")
	}
}

func TestHandleDeployArrivalRejectsUnownedDestination(t *testing.T) {
	e := newTestEngine(t)
	origin := newOwnedPlanet(t, e, "agent-1")
	dest := types.PlanetID{Galaxy: origin.Galaxy, System: origin.System, Position: origin.Position + 1}
	e.world.PutPlanet(&types.Planet{ID: dest, Buildings: map[string]int{}, Ships: map[string]int{}, Defense: map[string]int{}})

	f := &types.Fleet{
		ID: "fleet-1", OwnerID: "agent-1", Composition: map[string]int{"smallCargo": 1},
		Mission: types.MissionDeploy, Origin: origin, Destination: dest,
		DepartsAt: time.Now(), ArrivesAt: time.Now(),
	}
	e.world.PutFleet(f)

	e.handleDeployArrival(f, time.Now())

	if !f.Returning {
		t.Fatalf("expected deploy to an unowned destination to send the fleet back")
	}
}

func TestHandleColonizeArrivalClaimsUnownedPlanet(t *testing.T) {
	e := newTestEngine(t)
	origin := newOwnedPlanet(t, e, "agent-1")
	dest := types.PlanetID{Galaxy: origin.Galaxy, System: origin.System, Position: origin.Position + 1}
	e.world.PutPlanet(&types.Planet{ID: dest, Buildings: map[string]int{}, Ships: map[string]int{}, Defense: map[string]int{}})

	f := &types.Fleet{
		ID: "fleet-1", OwnerID: "agent-1", Composition: map[string]int{"colonyShip": 1},
		Mission: types.MissionColonize, Origin: origin, Destination: dest,
		DepartsAt: time.Now(), ArrivesAt: time.Now(),
	}
	e.world.PutFleet(f)

	e.handleColonizeArrival(f, time.Now())

	destPlanet, _ := e.world.GetPlanet(dest)
	if destPlanet.OwnerID == nil || *destPlanet.OwnerID != "agent-1" {
		t.Fatalf("expected agent-1 to now own the destination planet")
	}
	agent, _ := e.world.GetAgent("agent-1")
	if len(agent.Planets) != 2 {
		t.Fatalf("expected agent-1 to now have 2 planets, got %d", len(agent.Planets))
	}
	if _, ok := e.world.GetFleet("fleet-1"); ok {
		t.Fatalf("expected the colonize fleet to be consumed")
	}
}

func TestHandleColonizeArrivalConsumesExactlyOneColonyShip(t *testing.T) {
	e := newTestEngine(t)
	origin := newOwnedPlanet(t, e, "agent-1")
	dest := types.PlanetID{Galaxy: origin.Galaxy, System: origin.System, Position: origin.Position + 1}
	e.world.PutPlanet(&types.Planet{ID: dest, Buildings: map[string]int{}, Ships: map[string]int{}, Defense: map[string]int{}})

	f := &types.Fleet{
		ID: "fleet-1", OwnerID: "agent-1", Composition: map[string]int{"colonyShip": 2, "smallCargo": 3},
		Mission: types.MissionColonize, Origin: origin, Destination: dest,
		DepartsAt: time.Now(), ArrivesAt: time.Now(),
	}
	e.world.PutFleet(f)

	e.handleColonizeArrival(f, time.Now())

	destPlanet, _ := e.world.GetPlanet(dest)
	if destPlanet.Ships["colonyShip"] != 1 {
		t.Fatalf("expected exactly 1 surviving colony ship on the new colony, got %d", destPlanet.Ships["colonyShip"])
	}
	if destPlanet.Ships["smallCargo"] != 3 {
		t.Fatalf("expected the remaining 3 small cargos to transfer, got %d", destPlanet.Ships["smallCargo"])
	}
}

func TestHandleColonizeArrivalRejectsWhenDestinationOwned(t *testing.T) {
	e := newTestEngine(t)
	origin := newOwnedPlanet(t, e, "agent-1")
	dest := types.PlanetID{Galaxy: origin.Galaxy, System: origin.System, Position: origin.Position + 1}
	other := "agent-2"
	e.world.PutPlanet(&types.Planet{ID: dest, OwnerID: &other, Buildings: map[string]int{}, Ships: map[string]int{}, Defense: map[string]int{}})

	f := &types.Fleet{
		ID: "fleet-1", OwnerID: "agent-1", Composition: map[string]int{"colonyShip": 1},
		Mission: types.MissionColonize, Origin: origin, Destination: dest,
		DepartsAt: time.Now(), ArrivesAt: time.Now(),
	}
	e.world.PutFleet(f)

	e.handleColonizeArrival(f, time.Now())

	if !f.Returning {
		t.Fatalf("expected colonize attempt on an already-owned planet to send the fleet back")
	}
}

func TestHandleRecycleArrivalCollectsUpToCargoCapacity(t *testing.T) {
	e := newTestEngine(t)
	origin := newOwnedPlanet(t, e, "agent-1")
	dest := types.PlanetID{Galaxy: origin.Galaxy, System: origin.System, Position: origin.Position + 1}
	e.world.PutDebris(&types.DebrisField{Position: dest, Metal: 100000, Crystal: 100000})

	f := &types.Fleet{
		ID: "fleet-1", OwnerID: "agent-1", Composition: map[string]int{"smallCargo": 1},
		Mission: types.MissionRecycle, Origin: origin, Destination: dest,
		DepartsAt: time.Now(), ArrivesAt: time.Now(),
	}
	e.world.PutFleet(f)

	e.handleRecycleArrival(f, time.Now())

	total := f.Cargo.Metal + f.Cargo.Crystal
	if total > 5000.01 {
		t.Fatalf("expected recycled cargo bounded by smallCargo's capacity, got total %v", total)
	}
	if !f.Returning {
		t.Fatalf("expected the recycler to be returning after collection")
	}
}

func TestHandleReturningLegRestoresShipsAndCargo(t *testing.T) {
	e := newTestEngine(t)
	origin := newOwnedPlanet(t, e, "agent-1")

	f := &types.Fleet{
		ID: "fleet-1", OwnerID: "agent-1", Composition: map[string]int{"smallCargo": 2},
		Origin: origin, Returning: true, Cargo: types.Resources{Metal: 50},
	}
	e.world.PutFleet(f)

	p, _ := e.world.GetPlanet(origin)
	beforeShips := p.Ships["smallCargo"]
	beforeMetal := p.Resources.Metal

	e.handleReturningLeg(f, time.Now())

	p, _ = e.world.GetPlanet(origin)
	if p.Ships["smallCargo"] != beforeShips+2 {
		t.Fatalf("expected 2 ships returned to origin, got delta %d", p.Ships["smallCargo"]-beforeShips)
	}
	if p.Resources.Metal != beforeMetal+50 {
		t.Fatalf("expected 50 metal returned to origin, got delta %v", p.Resources.Metal-beforeMetal)
	}
	if _, ok := e.world.GetFleet("fleet-1"); ok {
		t.Fatalf("expected the fleet to be removed once it has returned home")
	}
}
