package catalog

import (
	"testing"
	"time"

	"ownworld/pkg/types"
)

func TestBuildingCostGrowsByFactor(t *testing.T) {
	lvl0, ok := BuildingCostAt("metalMine", 0)
	if !ok {
		t.Fatalf("metalMine should be a known building")
	}
	lvl1, _ := BuildingCostAt("metalMine", 1)
	if lvl1.Metal <= lvl0.Metal {
		t.Fatalf("cost should strictly increase with level: lvl0=%v lvl1=%v", lvl0, lvl1)
	}
}

func TestBuildingCostAtUnknownBuilding(t *testing.T) {
	_, ok := BuildingCostAt("doesNotExist", 0)
	if ok {
		t.Fatalf("expected unknown building to report false")
	}
}

func TestShipCostLinearInCount(t *testing.T) {
	one, _ := ShipCost("smallCargo", 1)
	ten, _ := ShipCost("smallCargo", 10)
	if ten.Metal != one.Metal*10 {
		t.Fatalf("ship cost should scale linearly: one=%v ten=%v", one, ten)
	}
}

func TestBuildTimeFloorsAtMinimum(t *testing.T) {
	d := BuildTime(types.Resources{Metal: 1, Crystal: 1}, 0, 0, 10)
	if d < 30*time.Second {
		t.Fatalf("build time should never fall below its 30s floor, got %v", d)
	}
}

func TestBuildTimeDecreasesWithRoboticsFactory(t *testing.T) {
	cost := types.Resources{Metal: 100000, Crystal: 50000}
	noBots := BuildTime(cost, 0, 0, 1)
	withBots := BuildTime(cost, 10, 0, 1)
	if withBots >= noBots {
		t.Fatalf("higher robotics factory level should shorten build time: no=%v with=%v", noBots, withBots)
	}
}

func TestStorageCapacityMonotonic(t *testing.T) {
	prev := StorageCapacity(0)
	for lvl := 1; lvl <= 10; lvl++ {
		cur := StorageCapacity(lvl)
		if cur <= prev {
			t.Fatalf("storage capacity must be strictly increasing, level %d: prev=%v cur=%v", lvl, prev, cur)
		}
		prev = cur
	}
}

func TestProductionZeroAtLevelZero(t *testing.T) {
	rates := Production(ProductionInput{GameSpeed: 10, MetalMultiplier: 1, CrystalMultiplier: 1, DeuteriumMultiplier: 1})
	if rates.MetalPerSecond != 0 || rates.CrystalPerSecond != 0 {
		t.Fatalf("zero-level mines should produce nothing, got %+v", rates)
	}
}

func TestProductionEnergyDeficitThrottles(t *testing.T) {
	starved := Production(ProductionInput{
		MetalMineLvl: 20, SolarPlantLvl: 0, GameSpeed: 10,
		MetalMultiplier: 1, CrystalMultiplier: 1, DeuteriumMultiplier: 1,
	})
	powered := Production(ProductionInput{
		MetalMineLvl: 20, SolarPlantLvl: 20, GameSpeed: 10,
		MetalMultiplier: 1, CrystalMultiplier: 1, DeuteriumMultiplier: 1,
	})
	if starved.Efficiency >= powered.Efficiency {
		t.Fatalf("energy-starved planet should have lower efficiency: starved=%v powered=%v", starved.Efficiency, powered.Efficiency)
	}
	if starved.MetalPerSecond >= powered.MetalPerSecond {
		t.Fatalf("energy-starved planet should produce less metal: starved=%v powered=%v", starved.MetalPerSecond, powered.MetalPerSecond)
	}
}

func TestTravelDistanceTiering(t *testing.T) {
	sameSystem := TravelDistance(types.PlanetID{Galaxy: 1, System: 1, Position: 1}, types.PlanetID{Galaxy: 1, System: 1, Position: 5})
	sameGalaxy := TravelDistance(types.PlanetID{Galaxy: 1, System: 1, Position: 1}, types.PlanetID{Galaxy: 1, System: 5, Position: 1})
	diffGalaxy := TravelDistance(types.PlanetID{Galaxy: 1, System: 1, Position: 1}, types.PlanetID{Galaxy: 3, System: 1, Position: 1})
	if !(sameSystem < sameGalaxy && sameGalaxy < diffGalaxy) {
		t.Fatalf("expected distance tiering same-system < same-galaxy < cross-galaxy, got %d, %d, %d", sameSystem, sameGalaxy, diffGalaxy)
	}
}

func TestFuelConsumptionIgnoresZeroAndUnknownShips(t *testing.T) {
	fuel := FuelConsumption(map[string]int{"smallCargo": 0, "notAShip": 5}, 1000)
	if fuel != 0 {
		t.Fatalf("expected zero fuel for zero-count and unknown ships, got %d", fuel)
	}
}

func TestProductionMultiplierStacksBoostersAndOfficer(t *testing.T) {
	now := time.Now()
	boosters := map[string]types.Booster{
		"metalBooster": {ActivatedAt: now, ExpiresAt: now.Add(time.Hour)},
	}
	officers := map[string]types.Officer{
		"prospector": {HiredAt: now, ExpiresAt: now.Add(time.Hour)},
	}
	mult := ProductionMultiplier(boosters, officers, now, "metal")
	if mult <= 1.0+Boosters["metalBooster"].Multiplier {
		t.Fatalf("expected booster + prospector bonus to stack above the booster alone, got %v", mult)
	}
}

func TestProductionMultiplierIgnoresExpiredBooster(t *testing.T) {
	now := time.Now()
	boosters := map[string]types.Booster{
		"metalBooster": {ActivatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)},
	}
	mult := ProductionMultiplier(boosters, nil, now, "metal")
	if mult != 1.0 {
		t.Fatalf("expired booster should not contribute, got %v", mult)
	}
}

func TestValidIdentifierRejectsReservedWords(t *testing.T) {
	if ValidIdentifier("__proto__") {
		t.Fatalf("__proto__ must be rejected")
	}
	if ValidIdentifier("") {
		t.Fatalf("empty identifier must be rejected")
	}
	if !ValidIdentifier("metalMine") {
		t.Fatalf("metalMine should be a valid identifier")
	}
}
