package engine

import (
	"context"
	"errors"
	"math"
	"time"

	"ownworld/pkg/catalog"
	"ownworld/pkg/locks"
	"ownworld/pkg/types"
	"ownworld/pkg/world"
)

// Register creates or returns the existing agent for walletID.
func (e *Engine) Register(walletID, displayName, ip string) (*types.Agent, *Error) {
	if walletID == "" {
		return nil, invalidArg("emptyWallet", "wallet id must not be empty", nil)
	}
	agent, err := e.world.RegisterAgent(walletID, displayName, ip, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, world.ErrWalletCapReached):
			return nil, precondition("walletCapReached", "per-IP wallet cap reached", nil)
		case errors.Is(err, world.ErrNoFreePosition):
			return nil, internalErr("noFreePosition", "no free coordinate in bounds")
		default:
			return nil, internalErr("registerFailed", err.Error())
		}
	}
	e.markDirty()
	return agent, nil
}

// Build queues a building upgrade on planet.
func (e *Engine) Build(agentID string, planetID types.PlanetID, building string) *Error {
	outErr := e.withLock(planetID, func() *Error { return e.buildLocked(agentID, planetID, building) })
	if outErr == nil {
		e.markDirty()
	}
	return outErr
}

// buildLocked is Build's body, callable only while planetID's lock is
// already held (by Build itself, or by QueueActions).
func (e *Engine) buildLocked(agentID string, planetID types.PlanetID, building string) *Error {
	if !validBuilding(building) {
		return invalidArg("unknownBuilding", "unknown building type", map[string]any{"building": building})
	}
	p, agent, verr := e.ownedPlanet(agentID, planetID)
	if verr != nil {
		return verr
	}
	if len(p.BuildQueue) >= maxBuildQueue(agent) {
		return precondition("queueFull", "build queue is full", map[string]any{"max": maxBuildQueue(agent)})
	}
	level := p.Buildings[building]
	cost, _ := catalog.BuildingCostAt(building, level)
	if !resourcesCover(p.Resources, cost) {
		return insufficient("resources", "insufficient resources", map[string]any{"cost": cost, "have": p.Resources})
	}
	dur := catalog.BuildTime(cost, p.Buildings["roboticsFactory"], p.Buildings["naniteFactory"], e.cfg.GameSpeed)
	now := time.Now()
	p.Resources = subtractResources(p.Resources, cost)
	p.BuildQueue = append(p.BuildQueue, types.QueueJob{
		Kind: types.JobBuild, Building: building, TargetLevel: level + 1, Cost: cost,
		StartedAt: now, CompletesAt: now.Add(dur), BuildTime: dur,
	})
	appendDecision(agent, e.cfg.MaxDecisionLog, "build", building)
	e.emit("buildStarted", map[string]any{"planet": planetID.String(), "building": building})
	return nil
}

// CancelBuild refunds a fraction of the head build job's cost and pops it.
func (e *Engine) CancelBuild(agentID string, planetID types.PlanetID) *Error {
	outErr := e.withLock(planetID, func() *Error { return e.cancelBuildLocked(agentID, planetID) })
	if outErr == nil {
		e.markDirty()
	}
	return outErr
}

func (e *Engine) cancelBuildLocked(agentID string, planetID types.PlanetID) *Error {
	p, _, verr := e.ownedPlanet(agentID, planetID)
	if verr != nil {
		return verr
	}
	if len(p.BuildQueue) == 0 {
		return precondition("queueEmpty", "build queue is empty", nil)
	}
	head := p.BuildQueue[0]
	refund := refundFor(head, time.Now())
	p.Resources = addResources(p.Resources, refund)
	p.BuildQueue = p.BuildQueue[1:]
	return nil
}

// withLock runs fn with planetID locked, translating a lock timeout into
// Conflict. fn reports its own validation/precondition errors.
func (e *Engine) withLock(planetID types.PlanetID, fn func() *Error) *Error {
	var outErr *Error
	err := locks.WithPlanetLock(context.Background(), e.locks, planetID.String(), e.cfg.LockTimeout, func() error {
		outErr = fn()
		return nil
	})
	if err != nil {
		return conflict("planetBusy", "planet is busy")
	}
	return outErr
}

// refundFor computes floor(originalCost * (1-progress) * 0.5) per resource.
func refundFor(job types.QueueJob, now time.Time) types.Resources {
	elapsed := now.Sub(job.StartedAt)
	progress := 0.0
	if job.BuildTime > 0 {
		progress = float64(elapsed) / float64(job.BuildTime)
	}
	if progress > 1 {
		progress = 1
	}
	if progress < 0 {
		progress = 0
	}
	factor := (1 - progress) * 0.5
	return types.Resources{
		Metal:     math.Floor(job.Cost.Metal * factor),
		Crystal:   math.Floor(job.Cost.Crystal * factor),
		Deuterium: math.Floor(job.Cost.Deuterium * factor),
	}
}

// Research queues a technology upgrade, deducting cost from planet's home.
func (e *Engine) Research(agentID string, planetID types.PlanetID, tech string) *Error {
	outErr := e.withLock(planetID, func() *Error { return e.researchLocked(agentID, planetID, tech) })
	if outErr == nil {
		e.markDirty()
	}
	return outErr
}

func (e *Engine) researchLocked(agentID string, planetID types.PlanetID, tech string) *Error {
	if !validTech(tech) {
		return invalidArg("unknownTech", "unknown technology", map[string]any{"tech": tech})
	}
	p, agent, verr := e.ownedPlanet(agentID, planetID)
	if verr != nil {
		return verr
	}
	if p.Buildings["researchLab"] < 1 {
		return precondition("noResearchLab", "research lab required", nil)
	}
	if len(agent.ResearchQueue) >= 1 {
		return precondition("researchBusy", "research already in progress", nil)
	}
	if missing := unmetPrereqs(tech, p.Buildings, agent.Tech); missing != "" {
		return precondition("prereqNotMet", "technology prerequisite not met", map[string]any{"missing": missing})
	}
	level := agent.Tech[tech]
	cost, _ := catalog.ResearchCostAt(tech, level)
	if !resourcesCover(p.Resources, cost) {
		return insufficient("resources", "insufficient resources", map[string]any{"cost": cost, "have": p.Resources})
	}
	science := agent.Tech["computer"]
	dur := catalog.ResearchTime(cost, p.Buildings["researchLab"], science, e.cfg.GameSpeed)
	now := time.Now()
	p.Resources = subtractResources(p.Resources, cost)
	agent.ResearchQueue = append(agent.ResearchQueue, types.QueueJob{
		Kind: types.JobResearch, Tech: tech, TargetLevel: level + 1, Cost: cost,
		StartedAt: now, CompletesAt: now.Add(dur), BuildTime: dur,
	})
	e.emit("researchStarted", map[string]any{"agent": agentID, "tech": tech})
	return nil
}

func unmetPrereqs(tech string, buildings, techs map[string]int) string {
	prereq, ok := catalog.TechPrereqs[tech]
	if !ok {
		return ""
	}
	for b, lvl := range prereq.Buildings {
		if buildings[b] < lvl {
			return b
		}
	}
	for t, lvl := range prereq.Techs {
		if techs[t] < lvl {
			return t
		}
	}
	return ""
}

// CancelResearch refunds to the agent's first planet.
func (e *Engine) CancelResearch(agentID string) *Error {
	agent, ok := e.world.GetAgent(agentID)
	if !ok {
		return notFound("agentNotFound", "agent not found")
	}
	if len(agent.Planets) == 0 {
		return internalErr("noPlanets", "agent has no planets")
	}
	homeID := agent.Planets[0]
	outErr := e.withLock(homeID, func() *Error {
		if len(agent.ResearchQueue) == 0 {
			return precondition("queueEmpty", "research queue is empty", nil)
		}
		home, ok := e.world.GetPlanet(homeID)
		if !ok {
			return notFound("planetNotFound", "home planet not found")
		}
		head := agent.ResearchQueue[0]
		refund := refundFor(head, time.Now())
		home.Resources = addResources(home.Resources, refund)
		agent.ResearchQueue = agent.ResearchQueue[1:]
		return nil
	})
	if outErr == nil {
		e.markDirty()
	}
	return outErr
}

// BuildShip queues `count` ships at planet's shipyard.
func (e *Engine) BuildShip(agentID string, planetID types.PlanetID, shipType string, count int) *Error {
	return e.buildShipyard(agentID, planetID, shipType, count, false)
}

// BuildDefense queues `count` defenses at planet's shipyard.
func (e *Engine) BuildDefense(agentID string, planetID types.PlanetID, defenseType string, count int) *Error {
	return e.buildShipyard(agentID, planetID, defenseType, count, true)
}

func (e *Engine) buildShipyard(agentID string, planetID types.PlanetID, itemType string, count int, isDefense bool) *Error {
	outErr := e.withLock(planetID, func() *Error {
		return e.buildShipyardLocked(agentID, planetID, itemType, count, isDefense)
	})
	if outErr == nil {
		e.markDirty()
	}
	return outErr
}

func (e *Engine) buildShipyardLocked(agentID string, planetID types.PlanetID, itemType string, count int, isDefense bool) *Error {
	if count <= 0 {
		return invalidArg("invalidCount", "count must be positive", nil)
	}
	if isDefense {
		if !validDefense(itemType) {
			return invalidArg("unknownDefense", "unknown defense type", map[string]any{"defense": itemType})
		}
	} else if !validShip(itemType) {
		return invalidArg("unknownShip", "unknown ship type", map[string]any{"ship": itemType})
	}

	p, _, verr := e.ownedPlanet(agentID, planetID)
	if verr != nil {
		return verr
	}
	if p.Buildings["shipyard"] < 1 {
		return precondition("noShipyard", "shipyard required", nil)
	}
	if len(p.ShipyardQueue) >= 1 {
		return precondition("shipyardBusy", "shipyard already building", nil)
	}
	if isDefense {
		if capAt, ok := catalog.Defenses[itemType]; ok && capAt.Capped > 0 {
			if p.Defense[itemType]+count > capAt.Capped {
				return precondition("capped", "defense is capped on this planet", map[string]any{"cap": capAt.Capped})
			}
		}
	}

	var cost types.Resources
	if isDefense {
		cost, _ = catalog.DefenseCost(itemType, count)
	} else {
		cost, _ = catalog.ShipCost(itemType, count)
	}
	if !resourcesCover(p.Resources, cost) {
		return insufficient("resources", "insufficient resources", map[string]any{"cost": cost, "have": p.Resources})
	}
	dur := catalog.ShipyardTime(cost, p.Buildings["roboticsFactory"], p.Buildings["naniteFactory"], e.cfg.GameSpeed)
	now := time.Now()
	p.Resources = subtractResources(p.Resources, cost)
	p.ShipyardQueue = append(p.ShipyardQueue, types.QueueJob{
		Kind: types.JobShipyard, ShipOrDefense: itemType, IsDefense: isDefense, Count: count, Cost: cost,
		StartedAt: now, CompletesAt: now.Add(dur), BuildTime: dur,
	})
	return nil
}

// NameSystem lets an agent with a planet in galaxy:system rename that star
// system, subject to global name uniqueness. No planet lock is taken: the
// system registry has its own mutex and the check below only reads the
// agent's planet list.
func (e *Engine) NameSystem(agentID string, galaxy, system int, name string) *Error {
	if name == "" {
		return invalidArg("emptyName", "system name must not be empty", nil)
	}
	agent, ok := e.world.GetAgent(agentID)
	if !ok {
		return notFound("agentNotFound", "agent not found")
	}
	present := false
	for _, pid := range agent.Planets {
		if pid.Galaxy == galaxy && pid.System == system {
			present = true
			break
		}
	}
	if !present {
		return forbidden("notPresent", "agent has no planet in this system", map[string]any{"galaxy": galaxy, "system": system})
	}
	id := types.SystemID{Galaxy: galaxy, System: system}
	if !e.world.RenameSystem(id, name) {
		return conflict("nameTaken", "system name is already in use")
	}
	e.emit("systemNamed", map[string]any{"system": id.String(), "name": name, "agent": agentID})
	return nil
}

// ownedPlanet resolves planet+agent and verifies ownership. Must be called
// while holding planetID's lock.
func (e *Engine) ownedPlanet(agentID string, planetID types.PlanetID) (*types.Planet, *types.Agent, *Error) {
	p, ok := e.world.GetPlanet(planetID)
	if !ok {
		return nil, nil, notFound("planetNotFound", "planet not found")
	}
	if p.OwnerID == nil || *p.OwnerID != agentID {
		return nil, nil, forbidden("notOwner", "agent does not own this planet", nil)
	}
	agent, ok := e.world.GetAgent(agentID)
	if !ok {
		return nil, nil, notFound("agentNotFound", "agent not found")
	}
	return p, agent, nil
}
