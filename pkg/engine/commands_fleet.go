package engine

import (
	"context"
	"math"
	"time"

	"ownworld/pkg/catalog"
	"ownworld/pkg/locks"
	"ownworld/pkg/types"
)

// SendFleet validates and dispatches a new fleet. Only the origin planet is
// locked at dispatch time (the destination is merely read, per the spec's
// "fleet dispatch reads origin" note); the destination is locked again,
// separately, when the fleet arrives.
func (e *Engine) SendFleet(agentID string, originID, destID types.PlanetID, ships map[string]int, mission types.MissionKind, cargo types.Resources) (*types.Fleet, *Error) {
	if originID == destID && mission != types.MissionRecycle {
		return nil, forbidden("samePlanet", "origin and destination must differ", nil)
	}
	for shipType, count := range ships {
		if count < 0 {
			return nil, invalidArg("negativeCount", "ship counts must be non-negative", map[string]any{"ship": shipType})
		}
		if !validShip(shipType) {
			return nil, invalidArg("unknownShip", "unknown ship type", map[string]any{"ship": shipType})
		}
	}
	if !financeOK(cargo.Metal) || !financeOK(cargo.Crystal) || !financeOK(cargo.Deuterium) {
		return nil, invalidArg("nonNumberCargo", "cargo must be finite numbers", nil)
	}

	var fleet *types.Fleet
	var outErr *Error
	err := locks.WithPlanetLock(context.Background(), e.locks, originID.String(), e.cfg.LockTimeout, func() error {
		origin, agent, verr := e.ownedPlanet(agentID, originID)
		if verr != nil {
			outErr = verr
			return nil
		}
		dest, destOk := e.world.GetPlanet(destID)

		if countPositive(ships) == 0 {
			outErr = invalidArg("emptyFleet", "fleet must contain at least one ship", nil)
			return nil
		}
		for shipType, count := range ships {
			if origin.Ships[shipType] < count {
				outErr = insufficient("ships", "not enough ships at origin", map[string]any{"ship": shipType})
				return nil
			}
		}

		active := e.world.ListFleetsByOwner(agentID)
		if len(active) >= maxActiveFleets(agent) {
			outErr = precondition("fleetSlots", "no fleet slots available", map[string]any{"max": maxActiveFleets(agent)})
			return nil
		}

		if verr := e.validateMission(mission, agent, origin, dest, destOk, ships); verr != nil {
			outErr = verr
			return nil
		}

		distance := catalog.TravelDistance(originID, destID)
		travel := catalog.TravelTime(distance, e.cfg.GameSpeed)
		fuel := catalog.FuelConsumption(ships, distance)
		if origin.Resources.Deuterium < float64(fuel) {
			outErr = insufficient("deuterium", "insufficient deuterium for fuel", map[string]any{"need": fuel})
			return nil
		}
		if !resourcesCover(origin.Resources, cargo) {
			outErr = insufficient("resources", "insufficient cargo resources", map[string]any{"cargo": cargo})
			return nil
		}

		for shipType, count := range ships {
			origin.Ships[shipType] -= count
		}
		origin.Resources.Deuterium -= float64(fuel)
		origin.Resources = subtractResources(origin.Resources, cargo)

		now := time.Now()
		fleet = &types.Fleet{
			ID: newID(), OwnerID: agentID, Composition: ships, Mission: mission,
			Origin: originID, Destination: destID, Cargo: cargo, FuelConsumed: fuel,
			DepartsAt: now, ArrivesAt: now.Add(travel),
		}
		e.world.PutFleet(fleet)
		appendDecision(agent, e.cfg.MaxDecisionLog, "sendFleet", string(mission))
		e.emit("fleetLaunched", map[string]any{"fleet": fleet.ID, "mission": string(mission)})
		e.appendFleetReport(fleet.ID, agentID, "dispatched", now, map[string]any{
			"fleetId": fleet.ID, "mission": string(mission), "origin": originID.String(), "destination": destID.String(),
		})
		return nil
	})
	if err != nil {
		return nil, conflict("planetBusy", "planet is busy")
	}
	if outErr == nil {
		e.markDirty()
	}
	return fleet, outErr
}

func countPositive(m map[string]int) int {
	n := 0
	for _, v := range m {
		if v > 0 {
			n += v
		}
	}
	return n
}

func (e *Engine) validateMission(mission types.MissionKind, agent *types.Agent, origin, dest *types.Planet, destOk bool, ships map[string]int) *Error {
	switch mission {
	case types.MissionTransport, types.MissionDeploy:
		if !destOk || dest.OwnerID == nil || *dest.OwnerID != agent.ID {
			return precondition("destinationNotOwned", "destination must be owned by sender", nil)
		}
	case types.MissionAttack:
		if !destOk || dest.OwnerID == nil {
			return invalidArg("invalidTarget", "attack requires an owned enemy planet", nil)
		}
		if *dest.OwnerID == agent.ID {
			return forbidden("sameOwner", "cannot attack your own planet", nil)
		}
		defender, ok := e.world.GetAgent(*dest.OwnerID)
		if !ok {
			return notFound("defenderNotFound", "defender agent not found")
		}
		if verr := e.checkNewbieProtection(agent, defender); verr != nil {
			return verr
		}
	case types.MissionColonize:
		if ships["colonyShip"] < 1 {
			return precondition("noColonyShip", "colonize requires a colony ship", nil)
		}
		if destOk && dest.OwnerID != nil {
			return precondition("destinationOwned", "destination already owned", nil)
		}
		if len(agent.Planets)-1 >= maxColonyCount(agent) {
			return precondition("colonyLimit", "colony limit reached", map[string]any{"max": maxColonyCount(agent)})
		}
	case types.MissionRecycle:
		if countPositive(ships) == 0 {
			return precondition("noRecyclers", "recycle requires recyclers", nil)
		}
		field, ok := e.world.GetDebris(dest.ID)
		if !ok || (field.Metal <= 0 && field.Crystal <= 0) {
			return precondition("noDebris", "no debris field at destination", nil)
		}
	case types.MissionEspionage:
		if ships["espionageProbe"] < 1 {
			return precondition("noProbes", "espionage requires probes", nil)
		}
		if destOk && dest.OwnerID != nil && *dest.OwnerID == agent.ID {
			return forbidden("sameOwner", "cannot spy on your own planet", nil)
		}
	default:
		return invalidArg("invalidMission", "unknown mission kind", map[string]any{"mission": string(mission)})
	}
	return nil
}

func (e *Engine) checkNewbieProtection(attacker, defender *types.Agent) *Error {
	if defender.Score < e.cfg.NewbieScoreThreshold {
		return forbidden("scoreShield", "defender is protected by score shield", map[string]any{"defenderScore": defender.Score})
	}
	if age := time.Since(defender.CreatedAt); age < e.cfg.NewbieAgeThreshold {
		remaining := e.cfg.NewbieAgeThreshold - age
		return forbidden("timeShield", "defender is protected by time shield", map[string]any{
			"hoursRemaining": int(math.Ceil(remaining.Hours())),
		})
	}
	if float64(attacker.Score) > e.cfg.NewbieRatio*float64(defender.Score) {
		return forbidden("bashShield", "attacker score exceeds the bash ratio against defender", map[string]any{
			"attackerScore": attacker.Score,
			"defenderScore": defender.Score,
			"ratio":         e.cfg.NewbieRatio,
		})
	}
	return nil
}

// RecallFleet flips a fleet to returning. Pre-midpoint recalls refund
// (1-progress)*0.5 of the consumed fuel, where progress is the fraction of
// the outbound trip already flown, and set arrivesAt to now+elapsed (mirroring the
// outbound travel time already spent); post-midpoint recalls just set the
// returning flag without changing arrivesAt.
func (e *Engine) RecallFleet(agentID, fleetID string) *Error {
	f, ok := e.world.GetFleet(fleetID)
	if !ok {
		return notFound("fleetNotFound", "fleet not found")
	}
	if f.OwnerID != agentID {
		return forbidden("notOwner", "agent does not own this fleet", nil)
	}
	if f.Returning {
		return precondition("alreadyReturning", "fleet is already returning", nil)
	}

	var outErr *Error
	err := locks.WithPlanetLock(context.Background(), e.locks, f.Origin.String(), e.cfg.LockTimeout, func() error {
		now := time.Now()
		total := f.ArrivesAt.Sub(f.DepartsAt)
		elapsed := now.Sub(f.DepartsAt)
		progress := 0.0
		if total > 0 {
			progress = float64(elapsed) / float64(total)
		}

		if progress < 0.5 {
			f.Returning = true
			f.ArrivesAt = now.Add(elapsed)
			refund := int64(float64(f.FuelConsumed) * (1 - progress) * 0.5)
			if origin, ok := e.world.GetPlanet(f.Origin); ok {
				origin.Resources.Deuterium += float64(refund)
			}
		} else {
			f.Returning = true
		}
		e.emit("fleetRecalled", map[string]any{"fleet": fleetID})
		return nil
	})
	if err != nil {
		return conflict("planetBusy", "planet is busy")
	}
	if outErr == nil {
		e.markDirty()
	}
	return outErr
}

// ActionStatus is the per-index result of QueueActions.
type ActionStatus string

const (
	ActionSuccess     ActionStatus = "success"
	ActionSkipped     ActionStatus = "skipped"
	ActionError       ActionStatus = "error"
	ActionNotExecuted ActionStatus = "not_executed"
)

// ActionVerb enumerates the command verbs QueueActions may batch. Only the
// planet-scoped, single-lock commands are eligible; SendFleet and premium
// commands are not batchable per the spec's closed "queue_actions" surface.
type ActionVerb string

const (
	VerbBuild        ActionVerb = "build"
	VerbCancelBuild  ActionVerb = "cancelBuild"
	VerbResearch     ActionVerb = "research"
	VerbBuildShip    ActionVerb = "buildShip"
	VerbBuildDefense ActionVerb = "buildDefense"
)

// QueuedAction is one entry of a QueueActions batch.
type QueuedAction struct {
	Verb     ActionVerb
	Building string
	Tech     string
	ItemType string
	Count    int
}

// QueueActions executes up to 10 actions in order under a single planet
// lock, stopping at the first error. Each action is dispatched to the
// lock-free inner implementation directly (never through the public,
// self-locking Build/Research/etc. methods) since sync.Mutex is not
// reentrant.
func (e *Engine) QueueActions(agentID string, planetID types.PlanetID, actions []QueuedAction) []ActionStatus {
	if len(actions) > 10 {
		actions = actions[:10]
	}
	statuses := make([]ActionStatus, len(actions))

	err := locks.WithPlanetLock(context.Background(), e.locks, planetID.String(), e.cfg.LockTimeout, func() error {
		stopped := false
		for i, a := range actions {
			if stopped {
				statuses[i] = ActionNotExecuted
				continue
			}
			var verr *Error
			switch a.Verb {
			case VerbBuild:
				verr = e.buildLocked(agentID, planetID, a.Building)
			case VerbCancelBuild:
				verr = e.cancelBuildLocked(agentID, planetID)
			case VerbResearch:
				verr = e.researchLocked(agentID, planetID, a.Tech)
			case VerbBuildShip:
				verr = e.buildShipyardLocked(agentID, planetID, a.ItemType, a.Count, false)
			case VerbBuildDefense:
				verr = e.buildShipyardLocked(agentID, planetID, a.ItemType, a.Count, true)
			default:
				verr = invalidArg("unknownVerb", "unknown action verb", map[string]any{"verb": string(a.Verb)})
			}
			if verr != nil {
				statuses[i] = ActionError
				stopped = true
				continue
			}
			statuses[i] = ActionSuccess
		}
		return nil
	})
	if err != nil {
		for i := range statuses {
			statuses[i] = ActionSkipped
		}
		return statuses
	}
	e.markDirty()
	return statuses
}
