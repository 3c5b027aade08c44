// Package catalog holds the immutable game-content tables and the pure
// formulas derived from them. Nothing here mutates and nothing here talks
// to the store or the world; every function is a deterministic closed form
// over its inputs.
package catalog

import "ownworld/pkg/types"

// BuildingCost describes the base cost and growth factor for one building.
type BuildingCost struct {
	Base   types.Resources
	Factor float64 // defaults to 1.5 when zero
}

// Buildings is the base-cost table. Factor overrides default to 1.5.
var Buildings = map[string]BuildingCost{
	"metalMine":        {Base: types.Resources{Metal: 60, Crystal: 15}},
	"crystalMine":      {Base: types.Resources{Metal: 48, Crystal: 24}},
	"deuteriumSynth":   {Base: types.Resources{Metal: 225, Crystal: 75}},
	"solarPlant":       {Base: types.Resources{Metal: 75, Crystal: 30}},
	"fusionReactor":    {Base: types.Resources{Metal: 900, Crystal: 360, Deuterium: 180}, Factor: 1.8},
	"metalStorage":     {Base: types.Resources{Metal: 1000}, Factor: 2.0},
	"crystalStorage":   {Base: types.Resources{Metal: 1000, Crystal: 500}, Factor: 2.0},
	"deuteriumTank":    {Base: types.Resources{Metal: 1000, Crystal: 1000}, Factor: 2.0},
	"roboticsFactory":  {Base: types.Resources{Metal: 400, Crystal: 120, Deuterium: 200}},
	"naniteFactory":    {Base: types.Resources{Metal: 1000000, Crystal: 500000, Deuterium: 100000}},
	"shipyard":         {Base: types.Resources{Metal: 400, Crystal: 200, Deuterium: 100}},
	"researchLab":      {Base: types.Resources{Metal: 200, Crystal: 400, Deuterium: 200}},
}

// defaultFactor is applied when a BuildingCost leaves Factor unset.
const defaultFactor = 1.5

// effFactor returns the configured growth factor for a building, defaulting to
// 1.5 when the entry didn't override it.
func (b BuildingCost) effFactor() float64 {
	if b.Factor == 0 {
		return defaultFactor
	}
	return b.Factor
}

// TechCost is the base cost and growth factor for one technology.
type TechCost struct {
	Base   types.Resources
	Factor float64 // defaults to 2.0 when zero
}

const defaultTechFactor = 2.0

func (t TechCost) effFactor() float64 {
	if t.Factor == 0 {
		return defaultTechFactor
	}
	return t.Factor
}

// TechPrereq names the building/tech levels required to start a technology.
type TechPrereq struct {
	Buildings map[string]int
	Techs     map[string]int
}

// Technologies is the fixed 15-entry tech table. Keys match types.Agent.Tech.
var Technologies = map[string]TechCost{
	"energy":           {Base: types.Resources{Metal: 0, Crystal: 800, Deuterium: 400}},
	"laser":             {Base: types.Resources{Metal: 200, Crystal: 100}},
	"ion":                {Base: types.Resources{Metal: 1000, Crystal: 300, Deuterium: 100}},
	"hyperspace":         {Base: types.Resources{Metal: 0, Crystal: 4000, Deuterium: 2000}},
	"plasma":             {Base: types.Resources{Metal: 2000, Crystal: 4000, Deuterium: 1000}},
	"combustionDrive":    {Base: types.Resources{Metal: 400, Crystal: 0, Deuterium: 600}},
	"impulseDrive":       {Base: types.Resources{Metal: 2000, Crystal: 4000, Deuterium: 600}},
	"hyperspaceDrive":    {Base: types.Resources{Metal: 10000, Crystal: 20000, Deuterium: 6000}},
	"espionage":          {Base: types.Resources{Metal: 200, Crystal: 1000, Deuterium: 200}},
	"computer":           {Base: types.Resources{Metal: 0, Crystal: 400, Deuterium: 600}},
	"astrophysics":       {Base: types.Resources{Metal: 4000, Crystal: 8000, Deuterium: 4000}},
	"graviton":           {Base: types.Resources{Metal: 0, Crystal: 0, Deuterium: 0}},
	"weapons":            {Base: types.Resources{Metal: 800, Crystal: 200}},
	"shielding":          {Base: types.Resources{Metal: 200, Crystal: 600}},
	"armour":             {Base: types.Resources{Metal: 1000}},
}

// TechPrereqs lists the recursive building/tech levels required before
// a tech's next level can be queued. Absent entries have none.
var TechPrereqs = map[string]TechPrereq{
	"ion":             {Buildings: map[string]int{"researchLab": 4}, Techs: map[string]int{"energy": 4}},
	"hyperspace":      {Buildings: map[string]int{"researchLab": 7}, Techs: map[string]int{"energy": 5}},
	"plasma":          {Techs: map[string]int{"laser": 10, "ion": 5}},
	"impulseDrive":    {Techs: map[string]int{"energy": 1}},
	"hyperspaceDrive": {Buildings: map[string]int{"researchLab": 7}, Techs: map[string]int{"hyperspace": 3}},
	"astrophysics":    {Techs: map[string]int{"impulseDrive": 3, "espionage": 4}},
	"graviton":        {Buildings: map[string]int{"researchLab": 12}},
}

// UnitStats describes the combat-relevant stats of a ship or defense
// before any technology multipliers are applied.
type UnitStats struct {
	Cost      types.Resources
	Attack    float64
	Shield    float64
	HullBase  float64 // engine.effectiveStats divides this by 10
	Cargo     int
	Fuel      float64 // per-unit consumption coefficient used by fuelConsumption
	Speed     int
	Rapidfire map[string]int // targetType -> r (r>1 means bonus shot chance (r-1)/r)
}

// Ships is the ship catalog. Cargo and Fuel are used by fuelConsumption and
// cargo-capacity checks; the rest feed combat.
var Ships = map[string]UnitStats{
	"smallCargo":     {Cost: types.Resources{Metal: 2000, Crystal: 2000}, Attack: 5, Shield: 10, HullBase: 4000, Cargo: 5000, Fuel: 10, Speed: 5000},
	"largeCargo":     {Cost: types.Resources{Metal: 6000, Crystal: 6000}, Attack: 5, Shield: 25, HullBase: 12000, Cargo: 25000, Fuel: 50, Speed: 7500},
	"lightFighter":   {Cost: types.Resources{Metal: 3000, Crystal: 1000}, Attack: 50, Shield: 10, HullBase: 4000, Cargo: 50, Fuel: 20, Speed: 12500, Rapidfire: map[string]int{"espionageProbe": 5, "solarSatellite": 5}},
	"heavyFighter":   {Cost: types.Resources{Metal: 6000, Crystal: 4000}, Attack: 150, Shield: 25, HullBase: 10000, Cargo: 100, Fuel: 75, Speed: 10000, Rapidfire: map[string]int{"espionageProbe": 5, "smallCargo": 3}},
	"cruiser":        {Cost: types.Resources{Metal: 20000, Crystal: 7000, Deuterium: 2000}, Attack: 400, Shield: 50, HullBase: 27000, Cargo: 800, Fuel: 300, Speed: 15000, Rapidfire: map[string]int{"lightFighter": 6, "rocketLauncher": 10}},
	"battleship":     {Cost: types.Resources{Metal: 45000, Crystal: 15000}, Attack: 1000, Shield: 200, HullBase: 60000, Cargo: 1500, Fuel: 500, Speed: 10000},
	"bomber":         {Cost: types.Resources{Metal: 50000, Crystal: 25000, Deuterium: 15000}, Attack: 1000, Shield: 500, HullBase: 75000, Cargo: 750, Fuel: 1000, Speed: 4000, Rapidfire: map[string]int{"rocketLauncher": 20, "lightLaser": 20, "heavyLaser": 10, "ionCannon": 10}},
	"destroyer":      {Cost: types.Resources{Metal: 60000, Crystal: 50000, Deuterium: 15000}, Attack: 2000, Shield: 500, HullBase: 110000, Cargo: 2000, Fuel: 1000, Speed: 5000, Rapidfire: map[string]int{"lightLaser": 5, "battlecruiser": 2}},
	"battlecruiser":  {Cost: types.Resources{Metal: 30000, Crystal: 40000, Deuterium: 15000}, Attack: 700, Shield: 400, HullBase: 70000, Cargo: 750, Fuel: 250, Speed: 10000, Rapidfire: map[string]int{"smallCargo": 3, "largeCargo": 3, "heavyFighter": 4, "cruiser": 4, "battleship": 7}},
	"recycler":       {Cost: types.Resources{Metal: 10000, Crystal: 6000, Deuterium: 2000}, Attack: 1, Shield: 10, HullBase: 16000, Cargo: 20000, Fuel: 300, Speed: 2000},
	"espionageProbe": {Cost: types.Resources{Metal: 0, Crystal: 1000}, Attack: 0, Shield: 0, HullBase: 100, Cargo: 5, Fuel: 1, Speed: 100000000},
	"colonyShip":     {Cost: types.Resources{Metal: 10000, Crystal: 20000, Deuterium: 10000}, Attack: 0, Shield: 100, HullBase: 30000, Cargo: 7500, Fuel: 1000, Speed: 2500},
}

// DefenseStats describes a static planetary defense. Capped, when > 0,
// limits the number of units of this type that may exist on one planet.
type DefenseStats struct {
	Cost     types.Resources
	Attack   float64
	Shield   float64
	HullBase float64
	Capped   int // 0 = uncapped
}

// Defenses is the planetary defense catalog.
var Defenses = map[string]DefenseStats{
	"rocketLauncher":   {Cost: types.Resources{Metal: 2000}, Attack: 80, Shield: 20, HullBase: 2000},
	"lightLaser":       {Cost: types.Resources{Metal: 1500, Crystal: 500}, Attack: 100, Shield: 25, HullBase: 2000},
	"heavyLaser":       {Cost: types.Resources{Metal: 6000, Crystal: 2000}, Attack: 250, Shield: 100, HullBase: 8000},
	"gaussCannon":      {Cost: types.Resources{Metal: 20000, Crystal: 15000, Deuterium: 2000}, Attack: 1100, Shield: 200, HullBase: 35000},
	"ionCannon":        {Cost: types.Resources{Metal: 2000, Crystal: 6000}, Attack: 150, Shield: 500, HullBase: 8000},
	"plasmaTurret":     {Cost: types.Resources{Metal: 50000, Crystal: 50000, Deuterium: 30000}, Attack: 3000, Shield: 300, HullBase: 100000},
	"smallShieldDome":  {Cost: types.Resources{Metal: 10000, Crystal: 10000}, Attack: 1, Shield: 2000, HullBase: 20000, Capped: 1},
	"largeShieldDome":  {Cost: types.Resources{Metal: 50000, Crystal: 50000}, Attack: 1, Shield: 10000, HullBase: 100000, Capped: 1},
}

// RapidfireAgainst returns the rapidfire multiplier unitType has against
// targetType, or 0 (no bonus shots) when absent.
func RapidfireAgainst(unitType, targetType string) int {
	if s, ok := Ships[unitType]; ok {
		return s.Rapidfire[targetType]
	}
	return 0
}

// Officers enumerates the premium officer bonus kinds and their per-officer
// bonus value. bonusType is the key looked up by OfficerBonus.
var Officers = map[string]map[string]float64{
	"admiral":    {"fleetSlots": 2},
	"engineer":   {"buildQueueSlots": 1},
	"geologist":  {"allProduction": 0.10},
	"technocrat": {"researchSpeed": 0.15},
	"commander":  {"overseerBonus": 1},
	"prospector": {"resourceMultiplier": 0.05}, // ProductionMultiplier adds this to every resource alike
}

// Boosters enumerates activatable production multipliers. Resource is the
// resource they apply to, or "allProduction" as a wildcard.
var Boosters = map[string]struct {
	Resource   string
	Multiplier float64
}{
	"metalBooster":      {Resource: "metal", Multiplier: 0.5},
	"crystalBooster":    {Resource: "crystal", Multiplier: 0.5},
	"deuteriumBooster":  {Resource: "deuterium", Multiplier: 0.5},
	"allBooster":        {Resource: "allProduction", Multiplier: 0.25},
}

// StakingPool describes one premium-currency staking pool's APY-equivalent
// reward rate, expressed as a fraction paid out per second.
var StakingPools = map[string]struct{ RatePerSecond float64 }{
	"bronze": {RatePerSecond: 0.05 / (365 * 24 * 3600)},
	"silver": {RatePerSecond: 0.08 / (365 * 24 * 3600)},
	"gold":   {RatePerSecond: 0.12 / (365 * 24 * 3600)},
}

// ReservedIdentifiers may never be used as a catalog key lookup argument,
// closing off prototype-style collisions in any target with a dynamic
// object model.
var ReservedIdentifiers = map[string]bool{
	"__proto__":   true,
	"constructor": true,
	"prototype":   true,
}

// ValidIdentifier reports whether name is safe to use as a catalog lookup
// key: non-empty and not reserved. It does not check membership in any
// table; callers still must check table membership separately;
// this only guards against the reserved-word class of bug.
func ValidIdentifier(name string) bool {
	if name == "" {
		return false
	}
	return !ReservedIdentifiers[name]
}
