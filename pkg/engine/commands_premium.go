package engine

import (
	"math"
	"time"

	"ownworld/pkg/catalog"
	"ownworld/pkg/types"
)

// officerHireCost and officerDuration are fixed per-officer-type constants;
// the catalog only carries the bonus magnitude, not the price, since price
// is a premium-currency concern rather than a game-content one.
var officerHireCost = map[string]int64{
	"admiral":    500,
	"engineer":   400,
	"geologist":  600,
	"technocrat": 600,
	"commander":  800,
	"prospector": 500,
}

const officerDuration = 7 * 24 * time.Hour

var boosterCost = map[string]int64{
	"metalBooster":     150,
	"crystalBooster":   150,
	"deuteriumBooster": 200,
	"allBooster":       500,
}

const boosterDuration = 24 * time.Hour

// speedupRatePerHour is the premium-currency cost of compressing one
// remaining hour of a given queue kind.
var speedupRatePerHour = map[types.JobKind]float64{
	types.JobBuild:    10,
	types.JobResearch: 12,
	types.JobShipyard: 8,
}

// resourcePackRate converts premium currency into resources at a fixed
// exchange rate, uniform across the three resource kinds.
const resourcePackRate = 0.5 // 1 currency buys 2 units of a resource

// HireOfficer spends currency to hire or extend an officer. Re-hiring a
// still-active officer extends from its current expiry rather than from
// now, so back-to-back hires never waste unused time.
func (e *Engine) HireOfficer(agentID, officerType string) *Error {
	cost, ok := officerHireCost[officerType]
	if !ok {
		return invalidArg("unknownOfficer", "unknown officer type", map[string]any{"officer": officerType})
	}
	agent, ok := e.world.GetAgent(agentID)
	if !ok {
		return notFound("agentNotFound", "agent not found")
	}
	newBalance, verr := safeDeduct(agent.Currency, cost)
	if verr != nil {
		return verr
	}
	now := time.Now()
	base := now
	if existing, has := agent.Officers[officerType]; has && existing.ExpiresAt.After(now) {
		base = existing.ExpiresAt
	}
	agent.Currency = newBalance
	if agent.Officers == nil {
		agent.Officers = map[string]types.Officer{}
	}
	agent.Officers[officerType] = types.Officer{HiredAt: now, ExpiresAt: base.Add(officerDuration)}
	appendDecision(agent, e.cfg.MaxDecisionLog, "hireOfficer", officerType)
	e.emit("officerHired", map[string]any{"agent": agentID, "officer": officerType})
	e.markDirty()
	return nil
}

// ActivateBooster spends currency to start a production booster. Boosters
// may not stack on themselves: an already-active booster of the same type
// is rejected rather than extended or refunded.
func (e *Engine) ActivateBooster(agentID, boosterType string) *Error {
	cost, ok := boosterCost[boosterType]
	if !ok {
		return invalidArg("unknownBooster", "unknown booster type", map[string]any{"booster": boosterType})
	}
	agent, ok := e.world.GetAgent(agentID)
	if !ok {
		return notFound("agentNotFound", "agent not found")
	}
	now := time.Now()
	if existing, has := agent.Boosters[boosterType]; has && existing.ExpiresAt.After(now) {
		return precondition("boosterActive", "booster already active", map[string]any{"booster": boosterType})
	}
	newBalance, verr := safeDeduct(agent.Currency, cost)
	if verr != nil {
		return verr
	}
	agent.Currency = newBalance
	if agent.Boosters == nil {
		agent.Boosters = map[string]types.Booster{}
	}
	agent.Boosters[boosterType] = types.Booster{ActivatedAt: now, ExpiresAt: now.Add(boosterDuration)}
	appendDecision(agent, e.cfg.MaxDecisionLog, "activateBooster", boosterType)
	e.emit("boosterActivated", map[string]any{"agent": agentID, "booster": boosterType})
	e.markDirty()
	return nil
}

// Speedup spends currency to complete the head job of planetID's queue of
// kind immediately. Cost is ceil(remainingHours * rate); a job already due
// costs nothing but is rejected as a precondition since there's nothing to
// speed up.
func (e *Engine) Speedup(agentID string, planetID types.PlanetID, kind types.JobKind) *Error {
	rate, ok := speedupRatePerHour[kind]
	if !ok {
		return invalidArg("unknownQueueKind", "unknown queue kind", map[string]any{"kind": string(kind)})
	}
	return e.withLock(planetID, func() *Error {
		p, agent, verr := e.ownedPlanet(agentID, planetID)
		if verr != nil {
			return verr
		}
		now := time.Now()
		switch kind {
		case types.JobBuild:
			if len(p.BuildQueue) == 0 {
				return precondition("queueEmpty", "build queue is empty", nil)
			}
			head := &p.BuildQueue[0]
			if err := e.paySpeedup(agent, head, now, rate); err != nil {
				return err
			}
			head.CompletesAt = now
		case types.JobResearch:
			if len(agent.ResearchQueue) == 0 {
				return precondition("queueEmpty", "research queue is empty", nil)
			}
			head := &agent.ResearchQueue[0]
			if err := e.paySpeedup(agent, head, now, rate); err != nil {
				return err
			}
			head.CompletesAt = now
		case types.JobShipyard:
			if len(p.ShipyardQueue) == 0 {
				return precondition("queueEmpty", "shipyard queue is empty", nil)
			}
			head := &p.ShipyardQueue[0]
			if err := e.paySpeedup(agent, head, now, rate); err != nil {
				return err
			}
			head.CompletesAt = now
		}
		e.emit("speedup", map[string]any{"agent": agentID, "planet": planetID.String(), "kind": string(kind)})
		e.markDirty()
		return nil
	})
}

func (e *Engine) paySpeedup(agent *types.Agent, job *types.QueueJob, now time.Time, ratePerHour float64) *Error {
	remaining := job.CompletesAt.Sub(now)
	if remaining <= 0 {
		return precondition("alreadyDue", "job is already due this tick", nil)
	}
	cost := int64(math.Ceil(remaining.Hours() * ratePerHour))
	newBalance, verr := safeDeduct(agent.Currency, cost)
	if verr != nil {
		return verr
	}
	agent.Currency = newBalance
	return nil
}

// BuyResources converts currency into planet resources at a fixed rate.
func (e *Engine) BuyResources(agentID string, planetID types.PlanetID, resource string, amount float64) *Error {
	if amount <= 0 || !financeOK(amount) {
		return invalidArg("invalidAmount", "amount must be a positive finite number", nil)
	}
	switch resource {
	case "metal", "crystal", "deuterium":
	default:
		return invalidArg("unknownResource", "unknown resource", map[string]any{"resource": resource})
	}
	return e.withLock(planetID, func() *Error {
		p, agent, verr := e.ownedPlanet(agentID, planetID)
		if verr != nil {
			return verr
		}
		cost := int64(math.Ceil(amount * resourcePackRate))
		newBalance, cerr := safeDeduct(agent.Currency, cost)
		if cerr != nil {
			return cerr
		}
		agent.Currency = newBalance
		switch resource {
		case "metal":
			p.Resources.Metal += amount
		case "crystal":
			p.Resources.Crystal += amount
		case "deuterium":
			p.Resources.Deuterium += amount
		}
		e.emit("resourcesPurchased", map[string]any{"agent": agentID, "planet": planetID.String(), "resource": resource, "amount": amount})
		e.markDirty()
		return nil
	})
}

// GrantCurrency is the admin-only top-up path (console tooling), bypassing
// any cost check but still subject to the safe-integer cap.
func (e *Engine) GrantCurrency(agentID string, amount int64) *Error {
	if amount <= 0 {
		return invalidArg("invalidAmount", "amount must be positive", nil)
	}
	agent, ok := e.world.GetAgent(agentID)
	if !ok {
		return notFound("agentNotFound", "agent not found")
	}
	newBalance, verr := safeAdd(agent.Currency, amount)
	if verr != nil {
		return verr
	}
	agent.Currency = newBalance
	appendDecision(agent, e.cfg.MaxDecisionLog, "grantCurrency", "")
	e.markDirty()
	return nil
}

// Stake locks `amount` currency into poolID. The staked amount leaves the
// spendable balance immediately.
func (e *Engine) Stake(agentID, poolID string, amount int64) *Error {
	if _, ok := catalog.StakingPools[poolID]; !ok {
		return invalidArg("unknownPool", "unknown staking pool", map[string]any{"pool": poolID})
	}
	if amount <= 0 {
		return invalidArg("invalidAmount", "amount must be positive", nil)
	}
	agent, ok := e.world.GetAgent(agentID)
	if !ok {
		return notFound("agentNotFound", "agent not found")
	}
	newBalance, verr := safeDeduct(agent.Currency, amount)
	if verr != nil {
		return verr
	}
	agent.Currency = newBalance
	now := time.Now()
	agent.Stakes = append(agent.Stakes, types.Stake{
		ID: newID(), PoolID: poolID, Amount: amount, StakedAt: now, LastClaimAt: now,
	})
	e.emit("staked", map[string]any{"agent": agentID, "pool": poolID, "amount": amount})
	e.markDirty()
	return nil
}

// Claim pays out accrued rewards on a stake without withdrawing principal.
func (e *Engine) Claim(agentID, stakeID string) *Error {
	agent, ok := e.world.GetAgent(agentID)
	if !ok {
		return notFound("agentNotFound", "agent not found")
	}
	idx := findStake(agent.Stakes, stakeID)
	if idx < 0 {
		return notFound("stakeNotFound", "stake not found")
	}
	stake := &agent.Stakes[idx]
	pool, ok := catalog.StakingPools[stake.PoolID]
	if !ok {
		return internalErr("unknownPool", "stake references an unknown pool")
	}
	now := time.Now()
	elapsed := now.Sub(stake.LastClaimAt).Seconds()
	reward := int64(math.Floor(float64(stake.Amount) * pool.RatePerSecond * elapsed))
	if reward <= 0 {
		return precondition("nothingToClaim", "no reward has accrued yet", nil)
	}
	newBalance, verr := safeAdd(agent.Currency, reward)
	if verr != nil {
		return verr
	}
	agent.Currency = newBalance
	stake.LastClaimAt = now
	e.emit("staked.claimed", map[string]any{"agent": agentID, "stake": stakeID, "reward": reward})
	e.markDirty()
	return nil
}

// Unstake claims any outstanding reward, then returns the full principal
// and removes the stake.
func (e *Engine) Unstake(agentID, stakeID string) *Error {
	agent, ok := e.world.GetAgent(agentID)
	if !ok {
		return notFound("agentNotFound", "agent not found")
	}
	idx := findStake(agent.Stakes, stakeID)
	if idx < 0 {
		return notFound("stakeNotFound", "stake not found")
	}
	stake := agent.Stakes[idx]
	pool, ok := catalog.StakingPools[stake.PoolID]
	if !ok {
		return internalErr("unknownPool", "stake references an unknown pool")
	}
	now := time.Now()
	elapsed := now.Sub(stake.LastClaimAt).Seconds()
	reward := int64(math.Floor(float64(stake.Amount) * pool.RatePerSecond * elapsed))
	payout := stake.Amount + reward
	newBalance, verr := safeAdd(agent.Currency, payout)
	if verr != nil {
		return verr
	}
	agent.Currency = newBalance
	agent.Stakes = append(agent.Stakes[:idx], agent.Stakes[idx+1:]...)
	e.emit("unstaked", map[string]any{"agent": agentID, "stake": stakeID, "payout": payout})
	e.markDirty()
	return nil
}

// Compound claims a stake's accrued reward and re-stakes it as additional
// principal in the same pool, rather than crediting the spendable balance.
func (e *Engine) Compound(agentID, stakeID string) *Error {
	agent, ok := e.world.GetAgent(agentID)
	if !ok {
		return notFound("agentNotFound", "agent not found")
	}
	idx := findStake(agent.Stakes, stakeID)
	if idx < 0 {
		return notFound("stakeNotFound", "stake not found")
	}
	stake := &agent.Stakes[idx]
	pool, ok := catalog.StakingPools[stake.PoolID]
	if !ok {
		return internalErr("unknownPool", "stake references an unknown pool")
	}
	now := time.Now()
	elapsed := now.Sub(stake.LastClaimAt).Seconds()
	reward := int64(math.Floor(float64(stake.Amount) * pool.RatePerSecond * elapsed))
	if reward <= 0 {
		return precondition("nothingToClaim", "no reward has accrued yet", nil)
	}
	newAmount, verr := safeAdd(stake.Amount, reward)
	if verr != nil {
		return verr
	}
	stake.Amount = newAmount
	stake.LastClaimAt = now
	e.emit("staked.compounded", map[string]any{"agent": agentID, "stake": stakeID, "reward": reward})
	e.markDirty()
	return nil
}

func findStake(stakes []types.Stake, id string) int {
	for i, s := range stakes {
		if s.ID == id {
			return i
		}
	}
	return -1
}
