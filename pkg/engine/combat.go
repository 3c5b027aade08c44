package engine

import (
	"ownworld/pkg/catalog"
	"ownworld/pkg/rng"
	"ownworld/pkg/types"
)

// simulateCombatTrials is the sample size SimulateCombat runs per call.
const simulateCombatTrials = 200

const (
	maxCombatRounds     = 6
	hullDamageThreshold = 0.70 // below this fraction of initial hull, extra per-strike destruction chance applies
	bounceThreshold     = 0.01 // damage under 1% of target shield bounces
	debrisRatio         = 0.30
	lootCapRatio        = 0.50
	defenseRebuildRatio = 0.70
)

// combatUnit is one alive stack of a given unit type on one side. Count
// tracks surviving members; shield/hull are per-member current values so a
// partially-damaged stack degrades member by member.
type combatUnit struct {
	typeName   string
	isDefense  bool
	count      int
	attack     float64
	shield     float64 // current, reset to max each round
	maxShield  float64
	hull       float64 // current hull of the "front" member
	maxHull    float64
	losses     int
}

// FightOutcome is the terminal state of a resolved battle.
type FightOutcome string

const (
	Victory FightOutcome = "victory"
	Loss    FightOutcome = "loss"
	Draw    FightOutcome = "draw"
)

// FightResult is everything a battle report needs.
type FightResult struct {
	Outcome          FightOutcome
	Rounds           int
	AttackerSurvivors map[string]int
	AttackerLosses    map[string]int
	DefenderSurvivors map[string]int
	DefenderLosses    map[string]int
	DefenseSurvivors  map[string]int
	DefenseLosses     map[string]int
	DebrisMetal       float64
	DebrisCrystal     float64
	Seed              int64
}

func effectiveStats(base catalog.UnitStats, weapons, shielding, armour int) (attack, shield, hull float64) {
	attack = base.Attack * (1 + 0.1*float64(weapons))
	shield = base.Shield * (1 + 0.1*float64(shielding))
	hull = (base.HullBase / 10) * (1 + 0.1*float64(armour))
	return
}

func effectiveDefenseStats(base catalog.DefenseStats, weapons, shielding, armour int) (attack, shield, hull float64) {
	attack = base.Attack * (1 + 0.1*float64(weapons))
	shield = base.Shield * (1 + 0.1*float64(shielding))
	hull = (base.HullBase / 10) * (1 + 0.1*float64(armour))
	return
}

func buildShipUnits(composition map[string]int, weapons, shielding, armour int) []*combatUnit {
	var units []*combatUnit
	for typeName, count := range composition {
		if count <= 0 {
			continue
		}
		base, ok := catalog.Ships[typeName]
		if !ok {
			continue
		}
		a, s, h := effectiveStats(base, weapons, shielding, armour)
		units = append(units, &combatUnit{
			typeName: typeName, count: count,
			attack: a, shield: s, maxShield: s, hull: h, maxHull: h,
		})
	}
	return units
}

func buildDefenseUnits(composition map[string]int, weapons, shielding, armour int) []*combatUnit {
	var units []*combatUnit
	for typeName, count := range composition {
		if count <= 0 {
			continue
		}
		base, ok := catalog.Defenses[typeName]
		if !ok {
			continue
		}
		a, s, h := effectiveDefenseStats(base, weapons, shielding, armour)
		units = append(units, &combatUnit{
			typeName: typeName, isDefense: true, count: count,
			attack: a, shield: s, maxShield: s, hull: h, maxHull: h,
		})
	}
	return units
}

func aliveUnits(units []*combatUnit) []*combatUnit {
	var out []*combatUnit
	for _, u := range units {
		if u.count > 0 {
			out = append(out, u)
		}
	}
	return out
}

func totalCount(units []*combatUnit) int {
	n := 0
	for _, u := range units {
		n += u.count
	}
	return n
}

// fireOnce resolves one shot from a single member of `attacker` against a
// uniformly random alive member of `targets`, mutating target state and
// returning the target type struck (for rapidfire chaining) or "" if there
// was no alive target to fire at.
func fireOnce(src rng.Source, attacker *combatUnit, targets []*combatUnit) string {
	alive := aliveUnits(targets)
	if len(alive) == 0 {
		return ""
	}
	target := alive[src.Intn(len(alive))]
	targetType := target.typeName

	dmg := attacker.attack
	if target.shield > 0 {
		if dmg < target.shield*bounceThreshold {
			return targetType // bounced off shield, no effect
		}
		if dmg <= target.shield {
			target.shield -= dmg
			return targetType
		}
		dmg -= target.shield
		target.shield = 0
	} else if dmg < target.maxHull*bounceThreshold {
		return targetType
	}

	target.hull -= dmg
	destroyed := target.hull <= 0
	if !destroyed && target.hull < target.maxHull*hullDamageThreshold {
		destructionChance := 1 - target.hull/target.maxHull
		if src.Bool(destructionChance) {
			destroyed = true
		}
	}
	if destroyed {
		target.count--
		target.losses++
		target.hull = target.maxHull // next member starts fresh
	}
	return targetType
}

func fireSide(src rng.Source, attackers, defenders []*combatUnit) {
	for _, a := range aliveUnits(attackers) {
		shots := a.count
		for shot := 0; shot < shots; shot++ {
			targetType := fireOnce(src, a, defenders)
			if len(aliveUnits(defenders)) == 0 {
				return
			}
			// Rapidfire: if the type just struck grants a bonus-shot chance,
			// keep firing (each shot may hit a new random target and chain
			// further) with probability (r-1)/r until a roll misses.
			for targetType != "" {
				r := catalog.RapidfireAgainst(a.typeName, targetType)
				if r <= 1 || !src.Bool(float64(r-1)/float64(r)) {
					break
				}
				targetType = fireOnce(src, a, defenders)
				if len(aliveUnits(defenders)) == 0 {
					return
				}
			}
		}
	}
}

func resetShields(units []*combatUnit) {
	for _, u := range units {
		if u.count > 0 {
			u.shield = u.maxShield
		}
	}
}

// Fight runs the deterministic combat resolution described in the tick
// loop's combat section: up to 6 rounds, shield-then-hull damage,
// rapidfire bonus shots, hull-below-70% destruction chance, defense
// rebuild, and debris creation.
func Fight(src rng.Source, attackerComposition map[string]int, attackerTech map[string]int,
	defenderShips, defenderDefense map[string]int, defenderTech map[string]int) FightResult {

	attackers := buildShipUnits(attackerComposition, attackerTech["weapons"], attackerTech["shielding"], attackerTech["armour"])
	defShips := buildShipUnits(defenderShips, defenderTech["weapons"], defenderTech["shielding"], defenderTech["armour"])
	defDefense := buildDefenseUnits(defenderDefense, defenderTech["weapons"], defenderTech["shielding"], defenderTech["armour"])

	initialDefenseCount := map[string]int{}
	for _, d := range defDefense {
		initialDefenseCount[d.typeName] = d.count
	}

	defenders := append(append([]*combatUnit{}, defShips...), defDefense...)

	round := 0
	for ; round < maxCombatRounds; round++ {
		if totalCount(attackers) == 0 || totalCount(defenders) == 0 {
			break
		}
		resetShields(attackers)
		resetShields(defenders)

		fireSide(src, attackers, defenders)
		if totalCount(defenders) == 0 {
			round++
			break
		}
		fireSide(src, defenders, attackers)
		if totalCount(attackers) == 0 {
			round++
			break
		}
	}

	attackerAlive := totalCount(attackers) > 0
	defenderAlive := totalCount(defShips)+totalCount(defDefense) > 0

	var outcome FightOutcome
	switch {
	case attackerAlive && !defenderAlive:
		outcome = Victory
	case !attackerAlive && defenderAlive:
		outcome = Loss
	default:
		outcome = Draw
	}

	result := FightResult{
		Outcome:           outcome,
		Rounds:            round,
		AttackerSurvivors: map[string]int{},
		AttackerLosses:    map[string]int{},
		DefenderSurvivors: map[string]int{},
		DefenderLosses:    map[string]int{},
		DefenseSurvivors:  map[string]int{},
		DefenseLosses:     map[string]int{},
		Seed:              src.Seed(),
	}

	for _, u := range attackers {
		result.AttackerSurvivors[u.typeName] = u.count
		result.AttackerLosses[u.typeName] = u.losses
	}
	for _, u := range defShips {
		result.DefenderSurvivors[u.typeName] = u.count
		result.DefenderLosses[u.typeName] = u.losses
	}
	for _, u := range defDefense {
		result.DefenseSurvivors[u.typeName] = u.count
		lost := initialDefenseCount[u.typeName] - u.count
		rebuilt := rebuildDefenses(src, lost)
		result.DefenseSurvivors[u.typeName] += rebuilt
		result.DefenseLosses[u.typeName] = lost - rebuilt
	}

	metalDebris, crystalDebris := 0.0, 0.0
	for _, u := range attackers {
		m, c := shipLossCost(u)
		metalDebris += m
		crystalDebris += c
	}
	for _, u := range defShips {
		m, c := shipLossCost(u)
		metalDebris += m
		crystalDebris += c
	}
	result.DebrisMetal = debrisRatio * metalDebris
	result.DebrisCrystal = debrisRatio * crystalDebris

	return result
}

// CombatSimulation is the probabilistic summary SimulateCombat returns:
// outcome frequencies and average survivors over simulateCombatTrials
// independent resolutions, each seeded off the caller's seed.
type CombatSimulation struct {
	Trials               int
	Wins                 int
	Losses               int
	Draws                int
	WinProbability       float64
	AvgRounds            float64
	AvgAttackerSurvivors map[string]float64
	AvgDefenderSurvivors map[string]float64
}

// SimulateCombat runs the same resolution as a real attack arrival, but
// replays it simulateCombatTrials times under derived seeds instead of once,
// and never touches the world: the defending planet and both agents' tech
// are only read, never mutated. Pure and lock-free, per the query surface.
func (e *Engine) SimulateCombat(agentID string, defenderPlanetID types.PlanetID, attackerShips map[string]int, seed int64) (*CombatSimulation, *Error) {
	attacker, ok := e.world.GetAgent(agentID)
	if !ok {
		return nil, notFound("agentNotFound", "agent not found")
	}
	dest, ok := e.world.GetPlanet(defenderPlanetID)
	if !ok {
		return nil, notFound("planetNotFound", "planet not found")
	}
	var defender *types.Agent
	if dest.OwnerID != nil {
		defender, _ = e.world.GetAgent(*dest.OwnerID)
	}

	sim := &CombatSimulation{
		Trials:               simulateCombatTrials,
		AvgAttackerSurvivors: map[string]float64{},
		AvgDefenderSurvivors: map[string]float64{},
	}
	var roundsSum int
	for i := 0; i < simulateCombatTrials; i++ {
		src := rng.New(seed + int64(i))
		result := Fight(src, attackerShips, attackerTechOf(attacker), dest.Ships, dest.Defense, defenderTechOf(defender))
		switch result.Outcome {
		case Victory:
			sim.Wins++
		case Loss:
			sim.Losses++
		default:
			sim.Draws++
		}
		roundsSum += result.Rounds
		for t, c := range result.AttackerSurvivors {
			sim.AvgAttackerSurvivors[t] += float64(c)
		}
		for t, c := range result.DefenderSurvivors {
			sim.AvgDefenderSurvivors[t] += float64(c)
		}
	}
	sim.WinProbability = float64(sim.Wins) / float64(simulateCombatTrials)
	sim.AvgRounds = float64(roundsSum) / float64(simulateCombatTrials)
	for t := range sim.AvgAttackerSurvivors {
		sim.AvgAttackerSurvivors[t] /= float64(simulateCombatTrials)
	}
	for t := range sim.AvgDefenderSurvivors {
		sim.AvgDefenderSurvivors[t] /= float64(simulateCombatTrials)
	}
	return sim, nil
}

func shipLossCost(u *combatUnit) (metal, crystal float64) {
	base, ok := catalog.Ships[u.typeName]
	if !ok {
		return 0, 0
	}
	return base.Cost.Metal * float64(u.losses), base.Cost.Crystal * float64(u.losses)
}

// rebuildDefenses runs one independent Bernoulli trial per destroyed unit
// at defenseRebuildRatio and returns the count that came back.
func rebuildDefenses(src rng.Source, lost int) int {
	rebuilt := 0
	for i := 0; i < lost; i++ {
		if src.Bool(defenseRebuildRatio) {
			rebuilt++
		}
	}
	return rebuilt
}

// ComputeLoot applies the 50%-of-defender-resources cap and the surviving
// cargo capacity bound, distributing proportionally across the three
// resources and filling remainders against the cap.
func ComputeLoot(defenderMetal, defenderCrystal, defenderDeuterium, cargoCapacity float64) (metal, crystal, deuterium float64) {
	capMetal := defenderMetal * lootCapRatio
	capCrystal := defenderCrystal * lootCapRatio
	capDeut := defenderDeuterium * lootCapRatio
	total := capMetal + capCrystal + capDeut
	if total <= cargoCapacity {
		return capMetal, capCrystal, capDeut
	}
	if total == 0 {
		return 0, 0, 0
	}
	ratio := cargoCapacity / total
	return capMetal * ratio, capCrystal * ratio, capDeut * ratio
}
