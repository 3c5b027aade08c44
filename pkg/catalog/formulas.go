package catalog

import (
	"math"
	"time"

	"ownworld/pkg/types"
)

func pow(base float64, exp int) float64 {
	return math.Pow(base, float64(exp))
}

// BuildingCostAt returns the cost to build the given building from
// currentLevel to currentLevel+1: base * factor^level.
func BuildingCostAt(building string, currentLevel int) (types.Resources, bool) {
	b, ok := Buildings[building]
	if !ok {
		return types.Resources{}, false
	}
	f := pow(b.effFactor(), currentLevel)
	return types.Resources{
		Metal:     math.Floor(b.Base.Metal * f),
		Crystal:   math.Floor(b.Base.Crystal * f),
		Deuterium: math.Floor(b.Base.Deuterium * f),
	}, true
}

// ResearchCostAt returns the cost to research tech from currentLevel to
// currentLevel+1.
func ResearchCostAt(tech string, currentLevel int) (types.Resources, bool) {
	t, ok := Technologies[tech]
	if !ok {
		return types.Resources{}, false
	}
	f := pow(t.effFactor(), currentLevel)
	return types.Resources{
		Metal:     math.Floor(t.Base.Metal * f),
		Crystal:   math.Floor(t.Base.Crystal * f),
		Deuterium: math.Floor(t.Base.Deuterium * f),
	}, true
}

// ShipCost returns the linear cost of `count` units of a ship type.
func ShipCost(shipType string, count int) (types.Resources, bool) {
	s, ok := Ships[shipType]
	if !ok {
		return types.Resources{}, false
	}
	n := float64(count)
	return types.Resources{
		Metal:     s.Cost.Metal * n,
		Crystal:   s.Cost.Crystal * n,
		Deuterium: s.Cost.Deuterium * n,
	}, true
}

// DefenseCost returns the linear cost of `count` units of a defense type.
func DefenseCost(defenseType string, count int) (types.Resources, bool) {
	d, ok := Defenses[defenseType]
	if !ok {
		return types.Resources{}, false
	}
	n := float64(count)
	return types.Resources{
		Metal:     d.Cost.Metal * n,
		Crystal:   d.Cost.Crystal * n,
		Deuterium: d.Cost.Deuterium * n,
	}, true
}

const secondsPerHour = 3600.0

// BuildTime computes the queue duration for a building-cost pair given the
// planet's robotics and nanite factory levels. Floor at 30s.
func BuildTime(cost types.Resources, roboticsLvl, naniteLvl int, gameSpeed float64) time.Duration {
	divisor := 2500.0 * (1 + float64(roboticsLvl)) * pow(2, naniteLvl)
	hours := (cost.Metal + cost.Crystal) / divisor
	secs := math.Floor(hours * secondsPerHour / gameSpeed)
	return clampSeconds(secs, 30)
}

// shipyardDivisor is the larger divisor used by ShipyardTime to land near a
// 15s minimum on cheap hulls, per the same formula family as BuildTime.
const shipyardDivisor = 250000.0 // see DESIGN.md: resolves the two-divisor ambiguity from §9

// ShipyardTime computes the per-unit-batch construction duration for ships
// and defenses.
func ShipyardTime(cost types.Resources, roboticsLvl, naniteLvl int, gameSpeed float64) time.Duration {
	divisor := shipyardDivisor * (1 + float64(roboticsLvl)) * pow(2, naniteLvl)
	hours := (cost.Metal + cost.Crystal) / divisor
	secs := math.Floor(hours * secondsPerHour / gameSpeed)
	return clampSeconds(secs, 15)
}

// ResearchTime computes queue duration for a research job.
func ResearchTime(cost types.Resources, labLvl, scienceLvl int, gameSpeed float64) time.Duration {
	divisor := 1000.0 * (1 + float64(labLvl))
	discount := 1 - math.Min(0.5, 0.05*float64(scienceLvl))
	hours := (cost.Metal+cost.Crystal)/divisor*discount
	secs := math.Floor(hours * secondsPerHour / gameSpeed)
	return clampSeconds(secs, 45)
}

func clampSeconds(secs float64, min int) time.Duration {
	if secs < float64(min) {
		secs = float64(min)
	}
	return time.Duration(secs) * time.Second
}

// StorageCapacity returns the storage cap for a storage building level.
func StorageCapacity(level int) float64 {
	return math.Floor(5000 * math.Floor(2.5*math.Exp((20.0/33.0)*float64(level))))
}

// ProductionInput bundles the planet/agent attributes Production needs so
// the function stays a pure closed form with no world/engine dependency.
type ProductionInput struct {
	MetalMineLvl      int
	CrystalMineLvl    int
	DeuteriumSynthLvl int
	SolarPlantLvl     int
	FusionReactorLvl  int
	MaxTemperature    int
	GameSpeed         float64
	// Multiplier is applied per-resource via ProductionMultiplier; callers
	// pass the already-computed factor for each of the three resources.
	MetalMultiplier     float64
	CrystalMultiplier   float64
	DeuteriumMultiplier float64
}

// ProductionRates is the per-second output of Production, before storage
// caps are applied by the engine's tick handler.
type ProductionRates struct {
	MetalPerSecond     float64
	CrystalPerSecond   float64
	DeuteriumPerSecond float64
	EnergyProduced     float64
	EnergyConsumed     float64
	Efficiency         float64 // min(1, produced/consumed), 1 when no consumers
	FusionDeuteriumCost float64 // per hour
}

// Production computes closed-form metal/crystal/deuterium per-second rates.
func Production(in ProductionInput) ProductionRates {
	metalBase := 30 * float64(in.MetalMineLvl) * pow(1.1, in.MetalMineLvl)
	crystalBase := 20 * float64(in.CrystalMineLvl) * pow(1.1, in.CrystalMineLvl)
	deutFactor := math.Max(0, 1.44-0.004*float64(in.MaxTemperature))
	deutBase := 10 * float64(in.DeuteriumSynthLvl) * pow(1.1, in.DeuteriumSynthLvl) * deutFactor

	energyProduced := 20*float64(in.SolarPlantLvl)*pow(1.1, in.SolarPlantLvl) +
		fusionEnergyOutput(in.FusionReactorLvl)
	energyConsumed := mineEnergyConsumption(in.MetalMineLvl) +
		mineEnergyConsumption(in.CrystalMineLvl) +
		mineEnergyConsumption(in.DeuteriumSynthLvl)

	efficiency := 1.0
	if energyConsumed > 0 {
		efficiency = math.Min(1, energyProduced/energyConsumed)
	}

	fusionDeutCost := 10 * float64(in.FusionReactorLvl) * pow(1.1, in.FusionReactorLvl)

	perHourToSec := in.GameSpeed / secondsPerHour
	return ProductionRates{
		MetalPerSecond:      metalBase * efficiency * in.MetalMultiplier * perHourToSec,
		CrystalPerSecond:    crystalBase * efficiency * in.CrystalMultiplier * perHourToSec,
		DeuteriumPerSecond:  deutBase * efficiency * in.DeuteriumMultiplier * perHourToSec,
		EnergyProduced:      energyProduced,
		EnergyConsumed:      energyConsumed,
		Efficiency:          efficiency,
		FusionDeuteriumCost: fusionDeutCost * perHourToSec,
	}
}

func mineEnergyConsumption(level int) float64 {
	if level == 0 {
		return 0
	}
	return 10 * float64(level) * pow(1.1, level)
}

func fusionEnergyOutput(level int) float64 {
	if level == 0 {
		return 0
	}
	return 30 * float64(level) * pow(1.05, level)
}

// TravelDistance computes the distance between two planet positions per the
// galaxy/system/position tiering.
func TravelDistance(a, b types.PlanetID) int {
	if a.Galaxy != b.Galaxy {
		return 20000 * absInt(a.Galaxy-b.Galaxy)
	}
	if a.System != b.System {
		return 2700 + 95*absInt(a.System-b.System)
	}
	return 1000 + 5*absInt(a.Position-b.Position)
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// TravelTime converts a distance into a travel duration at the given game
// speed. Ship speeds and fleet speed settings do not enter the result.
func TravelTime(distance int, gameSpeed float64) time.Duration {
	secs := math.Floor(float64(distance) / 100 / gameSpeed)
	return clampSeconds(secs, 10)
}

// FuelConsumption sums per-ship-type fuel cost for a composition traveling
// the given distance.
func FuelConsumption(composition map[string]int, distance int) int64 {
	var total float64
	for shipType, count := range composition {
		s, ok := Ships[shipType]
		if !ok || count <= 0 {
			continue
		}
		perUnit := math.Max(1, math.Ceil(s.Fuel*float64(distance)/35000))
		total += perUnit * float64(count)
	}
	return int64(total)
}

// OfficerBonus sums the named bonus across an agent's active officers at
// time `now`. Expired officers contribute nothing.
func OfficerBonus(officers map[string]types.Officer, now time.Time, bonusType string) float64 {
	var total float64
	for officerID, o := range officers {
		if now.After(o.ExpiresAt) {
			continue
		}
		if v, ok := Officers[officerID][bonusType]; ok {
			total += v
		}
	}
	return total
}

// ProductionMultiplier returns the combined active-booster and
// Prospector-officer multiplier for one resource, as a factor to multiply
// the base production rate by (1.0 = no bonus).
func ProductionMultiplier(boosters map[string]types.Booster, officers map[string]types.Officer, now time.Time, resource string) float64 {
	mult := 1.0
	for boosterID, b := range boosters {
		if now.After(b.ExpiresAt) {
			continue
		}
		def, ok := Boosters[boosterID]
		if !ok {
			continue
		}
		if def.Resource == resource || def.Resource == "allProduction" {
			mult += def.Multiplier
		}
	}
	if _, active := officers["prospector"]; active {
		mult += OfficerBonus(officers, now, "resourceMultiplier")
	}
	return mult
}
