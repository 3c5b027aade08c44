package engine

import (
	"context"
	"math"
	"time"

	"ownworld/pkg/catalog"
	"ownworld/pkg/locks"
	"ownworld/pkg/types"
)

// dispatchArrival routes an arrived fleet to its mission handler under the
// correct lock(s). Returning legs only ever touch the origin; outbound legs
// only ever touch the destination (the spec's two-lock cases are deploy's
// and transport's eventual returning re-entry, handled identically as a
// "returning leg" arrival at origin).
func (e *Engine) dispatchArrival(fleetID string, now time.Time) {
	f, ok := e.world.GetFleet(fleetID)
	if !ok {
		return
	}

	var planetKey string
	if f.Returning {
		planetKey = f.Origin.String()
	} else {
		planetKey = f.Destination.String()
	}

	err := locks.WithPlanetLock(context.Background(), e.locks, planetKey, e.cfg.LockTimeout, func() error {
		f, ok := e.world.GetFleet(fleetID)
		if !ok {
			return nil
		}
		if f.Returning {
			e.handleReturningLeg(f, now)
			return nil
		}
		switch f.Mission {
		case types.MissionTransport:
			e.handleTransportArrival(f, now)
		case types.MissionDeploy:
			e.handleDeployArrival(f, now)
		case types.MissionAttack:
			e.handleAttackArrival(f, now)
		case types.MissionRecycle:
			e.handleRecycleArrival(f, now)
		case types.MissionEspionage:
			e.handleEspionageArrival(f, now)
		case types.MissionColonize:
			e.handleColonizeArrival(f, now)
		}
		return nil
	})
	if err != nil && e.errLog != nil {
		e.errLog.Printf("engine: dispatch arrival %s: %v", fleetID, err)
	}
}

func (e *Engine) handleReturningLeg(f *types.Fleet, now time.Time) {
	origin, ok := e.world.GetPlanet(f.Origin)
	if !ok {
		e.world.DeleteFleet(f.ID)
		return
	}
	for shipType, count := range f.Composition {
		origin.Ships[shipType] += count
	}
	origin.Resources = addResources(origin.Resources, f.Cargo)
	e.world.DeleteFleet(f.ID)

	e.emit("fleetReturned", map[string]any{"fleet": f.ID, "owner": f.OwnerID})
	e.appendFleetReport(f.ID, f.OwnerID, "returned", now, map[string]any{
		"fleetId": f.ID, "origin": f.Origin.String(), "composition": f.Composition, "cargo": f.Cargo,
	})
}

func (e *Engine) appendFleetReport(fleetID, ownerID, kind string, at time.Time, payload map[string]any) {
	if err := e.store.AppendFleetReport(newID(), ownerID, kind, at, payload); err != nil && e.errLog != nil {
		e.errLog.Printf("engine: fleet report %s: %v", fleetID, err)
	}
}

func (e *Engine) sendFleetBackToOrigin(f *types.Fleet, now time.Time) {
	distance := catalog.TravelDistance(f.Origin, f.Destination)
	travel := catalog.TravelTime(distance, e.cfg.GameSpeed)
	f.Returning = true
	f.Cargo = types.Resources{}
	f.DepartsAt = now
	f.ArrivesAt = now.Add(travel)
}

func (e *Engine) handleTransportArrival(f *types.Fleet, now time.Time) {
	dest, ok := e.world.GetPlanet(f.Destination)
	if !ok {
		e.world.DeleteFleet(f.ID)
		return
	}
	dest.Resources = addResources(dest.Resources, f.Cargo)
	e.sendFleetBackToOrigin(f, now)
	e.appendFleetReport(f.ID, f.OwnerID, "arrived", now, map[string]any{
		"fleetId": f.ID, "destination": f.Destination.String(), "cargo": f.Cargo,
	})
	e.emit("fleetArrived", map[string]any{"fleet": f.ID, "owner": f.OwnerID})
}

func (e *Engine) handleDeployArrival(f *types.Fleet, now time.Time) {
	dest, ok := e.world.GetPlanet(f.Destination)
	if !ok || dest.OwnerID == nil || *dest.OwnerID != f.OwnerID {
		e.sendFleetBackToOrigin(f, now)
		e.emit("fleetReturning", map[string]any{"fleet": f.ID, "reason": "destinationNotOwned"})
		return
	}
	for shipType, count := range f.Composition {
		dest.Ships[shipType] += count
	}
	dest.Resources = addResources(dest.Resources, f.Cargo)
	e.world.DeleteFleet(f.ID)
	e.emit("fleetDeployed", map[string]any{"fleet": f.ID, "owner": f.OwnerID})
	e.appendFleetReport(f.ID, f.OwnerID, "deployed", now, map[string]any{
		"fleetId": f.ID, "destination": f.Destination.String(),
	})
}

func (e *Engine) handleAttackArrival(f *types.Fleet, now time.Time) {
	dest, ok := e.world.GetPlanet(f.Destination)
	if !ok || dest.OwnerID == nil {
		e.world.DeleteFleet(f.ID)
		return
	}
	attackerAgent, _ := e.world.GetAgent(f.OwnerID)
	defenderAgent, _ := e.world.GetAgent(*dest.OwnerID)

	seed := e.planetRNG(f.ID, dest.ID.String(), formatTick(e.world.Tick()))
	result := Fight(seed, f.Composition, attackerTechOf(attackerAgent), dest.Ships, dest.Defense, defenderTechOf(defenderAgent))

	for shipType, survivors := range result.DefenderSurvivors {
		dest.Ships[shipType] = survivors
	}
	for defType, survivors := range result.DefenseSurvivors {
		dest.Defense[defType] = survivors
	}

	if result.DebrisMetal > 0 || result.DebrisCrystal > 0 {
		field, existed := e.world.GetDebris(dest.ID)
		if !existed {
			field = &types.DebrisField{Position: dest.ID}
		}
		field.Metal += result.DebrisMetal
		field.Crystal += result.DebrisCrystal
		e.world.PutDebris(field)
		e.emit("debrisCreated", map[string]any{"position": dest.ID.String()})
	}

	switch result.Outcome {
	case Victory:
		cargoCap := cargoCapacityOf(result.AttackerSurvivors)
		metal, crystal, deut := ComputeLoot(dest.Resources.Metal, dest.Resources.Crystal, dest.Resources.Deuterium, cargoCap)
		dest.Resources.Metal -= metal
		dest.Resources.Crystal -= crystal
		dest.Resources.Deuterium -= deut

		f.Composition = result.AttackerSurvivors
		f.Cargo = types.Resources{Metal: metal, Crystal: crystal, Deuterium: deut}
		e.sendFleetBackToOrigin(f, now)
	case Loss:
		e.world.DeleteFleet(f.ID)
	default: // Draw
		f.Composition = result.AttackerSurvivors
		f.Cargo = types.Resources{}
		e.sendFleetBackToOrigin(f, now)
	}

	e.emit("battleReport", map[string]any{"attacker": f.OwnerID, "defender": *dest.OwnerID, "outcome": result.Outcome})
	report := map[string]any{
		"outcome": result.Outcome, "rounds": result.Rounds,
		"attackerSurvivors": result.AttackerSurvivors, "attackerLosses": result.AttackerLosses,
		"defenderSurvivors": result.DefenderSurvivors, "defenderLosses": result.DefenderLosses,
		"defenseSurvivors": result.DefenseSurvivors, "defenseLosses": result.DefenseLosses,
		"seed": result.Seed, "at": now,
	}
	if err := e.store.AppendBattleReport(newID(), f.OwnerID, *dest.OwnerID, now, report); err != nil && e.errLog != nil {
		e.errLog.Printf("engine: battle report: %v", err)
	}
}

func attackerTechOf(a *types.Agent) map[string]int {
	if a == nil {
		return map[string]int{}
	}
	return a.Tech
}
func defenderTechOf(a *types.Agent) map[string]int { return attackerTechOf(a) }

func cargoCapacityOf(composition map[string]int) float64 {
	var total float64
	for shipType, count := range composition {
		if s, ok := catalog.Ships[shipType]; ok {
			total += float64(s.Cargo * count)
		}
	}
	return total
}

func (e *Engine) handleRecycleArrival(f *types.Fleet, now time.Time) {
	field, ok := e.world.GetDebris(f.Destination)
	if !ok {
		e.sendFleetBackToOrigin(f, now)
		return
	}
	capacity := cargoCapacityOf(f.Composition)
	total := field.Metal + field.Crystal
	var metal, crystal float64
	if total <= capacity {
		metal, crystal = field.Metal, field.Crystal
	} else if total > 0 {
		ratio := capacity / total
		metal, crystal = field.Metal*ratio, field.Crystal*ratio
	}
	field.Metal -= metal
	field.Crystal -= crystal
	e.world.PutDebris(field)
	if field.Metal <= 0 && field.Crystal <= 0 {
		e.emit("debrisCollected", map[string]any{"position": f.Destination.String()})
	}

	f.Cargo = types.Resources{Metal: metal, Crystal: crystal}
	e.sendFleetBackToOrigin(f, now)
}

func (e *Engine) handleEspionageArrival(f *types.Fleet, now time.Time) {
	dest, ok := e.world.GetPlanet(f.Destination)
	if !ok || dest.OwnerID == nil {
		e.world.DeleteFleet(f.ID)
		return
	}
	attacker, _ := e.world.GetAgent(f.OwnerID)
	defender, _ := e.world.GetAgent(*dest.OwnerID)

	probes := f.Composition["espionageProbe"]
	attackerEsp := attackerTechOf(attacker)["espionage"]
	defenderEsp := defenderTechOf(defender)["espionage"]
	techDelta := attackerEsp - defenderEsp

	infoLevel := 2 + probes/2 + techDelta
	if infoLevel < 1 {
		infoLevel = 1
	}
	if infoLevel > 5 {
		infoLevel = 5
	}

	defenderProbes := dest.Ships["espionageProbe"]
	lossChance := math.Min(0.95, float64(defenderProbes)*0.02*float64(probes)*math.Pow(1.1, float64(-techDelta)))

	seed := e.planetRNG(f.ID, dest.ID.String(), "espionage")
	lost := 0
	for i := 0; i < probes; i++ {
		if seed.Bool(lossChance) {
			lost++
		}
	}
	survivors := probes - lost

	resourcesCopy := dest.Resources
	report := types.SpyReport{
		ID: newID(), AttackerFleetID: f.ID, Target: dest.ID, InfoLevel: infoLevel, CreatedAt: now,
		Resources: &resourcesCopy,
	}
	if infoLevel >= 2 {
		report.Fleet = copyIntMap(dest.Ships)
	}
	if infoLevel >= 3 {
		report.Defense = copyIntMap(dest.Defense)
	}
	if infoLevel >= 4 {
		report.Buildings = copyIntMap(dest.Buildings)
	}
	if infoLevel >= 5 {
		report.Tech = copyIntMap(defenderTechOf(defender))
	}

	if attacker != nil {
		attacker.SpyReports = append([]types.SpyReport{report}, attacker.SpyReports...)
		if len(attacker.SpyReports) > types.SpyReportCapacity {
			attacker.SpyReports = attacker.SpyReports[:types.SpyReportCapacity]
		}
	}

	if survivors <= 0 {
		e.world.DeleteFleet(f.ID)
		return
	}
	f.Composition["espionageProbe"] = survivors
	e.sendFleetBackToOrigin(f, now)
}

func (e *Engine) handleColonizeArrival(f *types.Fleet, now time.Time) {
	dest, destOk := e.world.GetPlanet(f.Destination)
	attacker, _ := e.world.GetAgent(f.OwnerID)

	unowned := destOk && dest.OwnerID == nil
	headroom := attacker != nil && len(attacker.Planets)-1 < maxColonyCount(attacker)

	if !unowned || !headroom {
		e.sendFleetBackToOrigin(f, now)
		e.emit("fleetReturning", map[string]any{"fleet": f.ID, "reason": "colonizeRejected"})
		return
	}

	newOwner := f.OwnerID
	dest.OwnerID = &newOwner
	dest.Resources = addResources(types.Resources{Metal: starterMetalConst, Crystal: starterCrystalConst, Deuterium: starterDeutConst}, f.Cargo)
	dest.Buildings = map[string]int{}
	dest.Ships = map[string]int{}
	dest.Defense = map[string]int{}
	dest.BuildQueue = nil
	dest.ShipyardQueue = nil

	remaining := map[string]int{}
	for shipType, count := range f.Composition {
		if shipType == "colonyShip" {
			if count > 1 {
				remaining[shipType] = count - 1
			}
			continue
		}
		remaining[shipType] = count
	}
	dest.Ships = remaining

	if attacker != nil {
		attacker.Planets = append(attacker.Planets, dest.ID)
	}

	sysID := types.SystemID{Galaxy: dest.ID.Galaxy, System: dest.ID.System}
	seed := e.planetRNG(sysID.String(), "name")
	e.world.EnsureSystemNamed(sysID, seed)

	e.world.DeleteFleet(f.ID)
	e.emit("planetColonized", map[string]any{"planet": dest.ID.String(), "owner": f.OwnerID})
}

func copyIntMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

const (
	starterMetalConst   = 500.0
	starterCrystalConst = 300.0
	starterDeutConst    = 100.0
)

func formatTick(tick int64) string {
	if tick == 0 {
		return "0"
	}
	neg := tick < 0
	if neg {
		tick = -tick
	}
	var buf [20]byte
	i := len(buf)
	for tick > 0 {
		i--
		buf[i] = byte('0' + tick%10)
		tick /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
