package engine

import (
	"context"
	"time"

	"ownworld/pkg/catalog"
	"ownworld/pkg/locks"
	"ownworld/pkg/types"
)

// Run blocks, ticking once per cfg.TickPeriod until stop is closed. main
// launches it as the single tick goroutine.
func (e *Engine) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(e.cfg.TickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

// Tick runs one simulation pass: per-planet production/queues, fleet
// arrivals, per-agent research, and periodic persistence/score snapshots.
// Each planet's work runs under that planet's lock; a lock timeout for one
// planet is logged and skipped rather than aborting the pass.
func (e *Engine) Tick() int64 {
	now := e.now()
	tick := e.world.AdvanceTick()

	for _, p := range e.world.Snapshot().Planets {
		e.tickPlanet(p.ID, now)
	}

	for _, f := range e.world.ListAllFleets() {
		if !f.ArrivesAt.After(now) {
			e.dispatchArrival(f.ID, now)
		}
	}

	for _, a := range e.listAgentsAll() {
		e.tickResearch(a.ID, now)
	}

	if tick%e.cfg.PersistenceEveryTicks == 0 {
		e.markDirty()
	}
	if tick%e.cfg.ScoreSnapshotEveryTick == 0 {
		e.snapshotScores(now)
	}

	e.locks.Sweep()
	e.emit("tick", map[string]any{"tick": tick})
	return tick
}

func (e *Engine) listAgentsAll() []*types.Agent {
	return e.world.Snapshot().Agents
}

func (e *Engine) tickPlanet(id types.PlanetID, now time.Time) {
	key := id.String()
	err := locks.WithPlanetLock(context.Background(), e.locks, key, e.cfg.LockTimeout, func() error {
		p, ok := e.world.GetPlanet(id)
		if !ok {
			return nil
		}
		e.applyProduction(p, now)
		e.advanceBuildQueue(p, now)
		e.advanceShipyardQueue(p, now)
		return nil
	})
	if err != nil && e.errLog != nil {
		e.errLog.Printf("engine: tick planet %s: %v", key, err)
	}
}

func (e *Engine) applyProduction(p *types.Planet, now time.Time) {
	if p.OwnerID == nil {
		return
	}
	agent, ok := e.world.GetAgent(*p.OwnerID)
	if !ok {
		return
	}

	in := catalog.ProductionInput{
		MetalMineLvl:      p.Buildings["metalMine"],
		CrystalMineLvl:    p.Buildings["crystalMine"],
		DeuteriumSynthLvl: p.Buildings["deuteriumSynth"],
		SolarPlantLvl:     p.Buildings["solarPlant"],
		FusionReactorLvl:  p.Buildings["fusionReactor"],
		MaxTemperature:    p.Temperature.Max,
		GameSpeed:         e.cfg.GameSpeed,
		MetalMultiplier:     catalog.ProductionMultiplier(agent.Boosters, agent.Officers, now, "metal"),
		CrystalMultiplier:   catalog.ProductionMultiplier(agent.Boosters, agent.Officers, now, "crystal"),
		DeuteriumMultiplier: catalog.ProductionMultiplier(agent.Boosters, agent.Officers, now, "deuterium"),
	}
	rates := catalog.Production(in)

	metalCap := catalog.StorageCapacity(p.Buildings["metalStorage"])
	crystalCap := catalog.StorageCapacity(p.Buildings["crystalStorage"])
	deutCap := catalog.StorageCapacity(p.Buildings["deuteriumTank"])

	p.Resources.Metal = applyCappedProduction(p.Resources.Metal, rates.MetalPerSecond, metalCap)
	p.Resources.Crystal = applyCappedProduction(p.Resources.Crystal, rates.CrystalPerSecond, crystalCap)
	p.Resources.Deuterium = applyCappedProduction(p.Resources.Deuterium, rates.DeuteriumPerSecond, deutCap)
	clamped, cerr := clampResource(p.Resources.Deuterium - rates.FusionDeuteriumCost)
	if cerr != nil {
		if e.errLog != nil {
			e.errLog.Printf("engine: planet %s deuterium corrupted: %v", p.ID.String(), cerr)
		}
		clamped = 0
	}
	p.Resources.Deuterium = clamped
}

// applyCappedProduction adds production only while current is strictly
// below cap, clamping the addition at the cap; if current already exceeds
// cap (loot/purchase overflow), production is suppressed entirely.
func applyCappedProduction(current, perSecond, cap float64) float64 {
	if current >= cap {
		return current
	}
	next := current + perSecond
	if next > cap {
		return cap
	}
	return next
}

func (e *Engine) advanceBuildQueue(p *types.Planet, now time.Time) {
	if len(p.BuildQueue) == 0 {
		return
	}
	head := p.BuildQueue[0]
	if head.CompletesAt.After(now) {
		return
	}
	p.Buildings[head.Building] = head.TargetLevel
	p.BuildQueue = p.BuildQueue[1:]

	if p.OwnerID != nil {
		if agent, ok := e.world.GetAgent(*p.OwnerID); ok {
			agent.Score += int64(head.Cost.Metal + head.Cost.Crystal + head.Cost.Deuterium)
		}
	}
	e.emit("buildComplete", map[string]any{"planet": p.ID.String(), "building": head.Building, "level": head.TargetLevel})
}

func (e *Engine) advanceShipyardQueue(p *types.Planet, now time.Time) {
	if len(p.ShipyardQueue) == 0 {
		return
	}
	head := p.ShipyardQueue[0]
	if head.CompletesAt.After(now) {
		return
	}
	if head.IsDefense {
		p.Defense[head.ShipOrDefense] += head.Count
		e.emit("defenseComplete", map[string]any{"planet": p.ID.String(), "defense": head.ShipOrDefense, "count": head.Count})
	} else {
		p.Ships[head.ShipOrDefense] += head.Count
		e.emit("shipComplete", map[string]any{"planet": p.ID.String(), "ship": head.ShipOrDefense, "count": head.Count})
	}
	p.ShipyardQueue = p.ShipyardQueue[1:]
}

func (e *Engine) tickResearch(agentID string, now time.Time) {
	agent, ok := e.world.GetAgent(agentID)
	if !ok || len(agent.ResearchQueue) == 0 {
		return
	}
	head := agent.ResearchQueue[0]
	if head.CompletesAt.After(now) {
		return
	}
	agent.Tech[head.Tech] = head.TargetLevel
	agent.ResearchQueue = agent.ResearchQueue[1:]
	agent.Score += int64(head.Cost.Metal + head.Cost.Crystal + head.Cost.Deuterium)
	e.emit("researchComplete", map[string]any{"agent": agentID, "tech": head.Tech, "level": head.TargetLevel})
}

func (e *Engine) snapshotScores(now time.Time) {
	for _, a := range e.listAgentsAll() {
		payload := map[string]any{"score": a.Score, "planetCount": len(a.Planets), "at": now}
		if err := e.store.AppendScoreSnapshot(newID(), a.ID, now, payload); err != nil && e.errLog != nil {
			e.errLog.Printf("engine: score snapshot for %s: %v", a.ID, err)
		}
	}
}
