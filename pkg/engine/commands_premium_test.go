package engine

import (
	"testing"
	"time"
)

func TestHireOfficerDeductsCostAndGrantsDuration(t *testing.T) {
	e := newTestEngine(t)
	newOwnedPlanet(t, e, "agent-1")
	agent, _ := e.world.GetAgent("agent-1")
	agent.Currency = 1000

	if err := e.HireOfficer("agent-1", "admiral"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agent.Currency != 500 {
		t.Fatalf("expected currency 500 after hiring admiral (cost 500), got %d", agent.Currency)
	}
	o, ok := agent.Officers["admiral"]
	if !ok {
		t.Fatalf("expected admiral officer to be recorded")
	}
	if o.ExpiresAt.Before(time.Now().Add(6 * 24 * time.Hour)) {
		t.Fatalf("expected roughly a 7-day expiry, got %v", o.ExpiresAt)
	}
}

func TestHireOfficerExtendsFromCurrentExpiryIfStillActive(t *testing.T) {
	e := newTestEngine(t)
	newOwnedPlanet(t, e, "agent-1")
	agent, _ := e.world.GetAgent("agent-1")
	agent.Currency = 2000

	if err := e.HireOfficer("agent-1", "admiral"); err != nil {
		t.Fatalf("first hire failed: %v", err)
	}
	firstExpiry := agent.Officers["admiral"].ExpiresAt

	if err := e.HireOfficer("agent-1", "admiral"); err != nil {
		t.Fatalf("second hire failed: %v", err)
	}
	secondExpiry := agent.Officers["admiral"].ExpiresAt

	if !secondExpiry.After(firstExpiry) {
		t.Fatalf("expected re-hiring to extend from the current expiry, first=%v second=%v", firstExpiry, secondExpiry)
	}
}

func TestHireOfficerRejectsInsufficientCurrency(t *testing.T) {
	e := newTestEngine(t)
	newOwnedPlanet(t, e, "agent-1")
	agent, _ := e.world.GetAgent("agent-1")
	agent.Currency = 10

	err := e.HireOfficer("agent-1", "admiral")
	if err == nil || err.Kind != KindInsufficient {
		t.Fatalf("expected insufficient currency error, got %v", err)
	}
}

func TestActivateBoosterRejectsStackingSameType(t *testing.T) {
	e := newTestEngine(t)
	newOwnedPlanet(t, e, "agent-1")
	agent, _ := e.world.GetAgent("agent-1")
	agent.Currency = 1000

	if err := e.ActivateBooster("agent-1", "metalBooster"); err != nil {
		t.Fatalf("first activation failed: %v", err)
	}
	err := e.ActivateBooster("agent-1", "metalBooster")
	if err == nil || err.Kind != KindPrecondition {
		t.Fatalf("expected precondition boosterActive error, got %v", err)
	}
}

func TestActivateBoosterAllowsReactivationAfterExpiry(t *testing.T) {
	e := newTestEngine(t)
	newOwnedPlanet(t, e, "agent-1")
	agent, _ := e.world.GetAgent("agent-1")
	agent.Currency = 1000

	if err := e.ActivateBooster("agent-1", "metalBooster"); err != nil {
		t.Fatalf("first activation failed: %v", err)
	}
	b := agent.Boosters["metalBooster"]
	b.ExpiresAt = time.Now().Add(-time.Minute)
	agent.Boosters["metalBooster"] = b

	if err := e.ActivateBooster("agent-1", "metalBooster"); err != nil {
		t.Fatalf("expected reactivation after expiry to succeed, got %v", err)
	}
}

func TestGrantCurrencyClampsAtSafeMax(t *testing.T) {
	e := newTestEngine(t)
	newOwnedPlanet(t, e, "agent-1")
	agent, _ := e.world.GetAgent("agent-1")
	agent.Currency = SafeMax - 5

	if err := e.GrantCurrency("agent-1", 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agent.Currency != SafeMax {
		t.Fatalf("expected currency clamped to SafeMax, got %d", agent.Currency)
	}
}

func TestStakeThenClaimPaysProportionalReward(t *testing.T) {
	e := newTestEngine(t)
	newOwnedPlanet(t, e, "agent-1")
	agent, _ := e.world.GetAgent("agent-1")
	agent.Currency = 1000

	if err := e.Stake("agent-1", "gold", 500); err != nil {
		t.Fatalf("stake failed: %v", err)
	}
	if agent.Currency != 500 {
		t.Fatalf("expected 500 currency remaining after staking 500, got %d", agent.Currency)
	}

	stakeID := agent.Stakes[0].ID
	agent.Stakes[0].LastClaimAt = time.Now().Add(-365 * 24 * time.Hour)

	if err := e.Claim("agent-1", stakeID); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if agent.Currency <= 500 {
		t.Fatalf("expected claim to increase currency above 500, got %d", agent.Currency)
	}
}

func TestClaimRejectsWhenNothingAccrued(t *testing.T) {
	e := newTestEngine(t)
	newOwnedPlanet(t, e, "agent-1")
	agent, _ := e.world.GetAgent("agent-1")
	agent.Currency = 1000

	if err := e.Stake("agent-1", "gold", 500); err != nil {
		t.Fatalf("stake failed: %v", err)
	}
	stakeID := agent.Stakes[0].ID

	err := e.Claim("agent-1", stakeID)
	if err == nil || err.Kind != KindPrecondition {
		t.Fatalf("expected precondition nothingToClaim error for a freshly staked position, got %v", err)
	}
}

func TestUnstakeReturnsPrincipalAndRemovesStake(t *testing.T) {
	e := newTestEngine(t)
	newOwnedPlanet(t, e, "agent-1")
	agent, _ := e.world.GetAgent("agent-1")
	agent.Currency = 1000

	if err := e.Stake("agent-1", "bronze", 300); err != nil {
		t.Fatalf("stake failed: %v", err)
	}
	stakeID := agent.Stakes[0].ID

	if err := e.Unstake("agent-1", stakeID); err != nil {
		t.Fatalf("unstake failed: %v", err)
	}
	if len(agent.Stakes) != 0 {
		t.Fatalf("expected the stake to be removed after unstaking")
	}
	if agent.Currency < 1000 {
		t.Fatalf("expected principal returned, currency should be at least 1000, got %d", agent.Currency)
	}
}

func TestSpeedupCompletesHeadBuildJobImmediately(t *testing.T) {
	e := newTestEngine(t)
	planetID := newOwnedPlanet(t, e, "agent-1")
	agent, _ := e.world.GetAgent("agent-1")
	agent.Currency = 1_000_000

	if err := e.Build("agent-1", planetID, "metalMine"); err != nil {
		t.Fatalf("build failed: %v", err)
	}

	if err := e.Speedup("agent-1", planetID, "build"); err != nil {
		t.Fatalf("speedup failed: %v", err)
	}
	p, _ := e.world.GetPlanet(planetID)
	if p.BuildQueue[0].CompletesAt.After(time.Now()) {
		t.Fatalf("expected the build job to be due immediately after speedup")
	}
}

func TestSpeedupRejectsEmptyQueue(t *testing.T) {
	e := newTestEngine(t)
	planetID := newOwnedPlanet(t, e, "agent-1")
	agent, _ := e.world.GetAgent("agent-1")
	agent.Currency = 1_000_000

	err := e.Speedup("agent-1", planetID, "build")
	if err == nil || err.Kind != KindPrecondition {
		t.Fatalf("expected precondition queueEmpty error, got %v", err)
	}
}

func TestBuyResourcesDeductsAtFixedRate(t *testing.T) {
	e := newTestEngine(t)
	planetID := newOwnedPlanet(t, e, "agent-1")
	agent, _ := e.world.GetAgent("agent-1")
	agent.Currency = 1000

	p, _ := e.world.GetPlanet(planetID)
	before := p.Resources.Metal

	if err := e.BuyResources("agent-1", planetID, "metal", 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if agent.Currency != 950 {
		t.Fatalf("expected 950 currency remaining (100 * 0.5 = 50 cost), got %d", agent.Currency)
	}
	p, _ = e.world.GetPlanet(planetID)
	if p.Resources.Metal != before+100 {
		t.Fatalf("expected 100 metal added, got delta %v", p.Resources.Metal-before)
	}
}

func TestBuyResourcesRejectsUnknownResource(t *testing.T) {
	e := newTestEngine(t)
	planetID := newOwnedPlanet(t, e, "agent-1")
	agent, _ := e.world.GetAgent("agent-1")
	agent.Currency = 1000

	err := e.BuyResources("agent-1", planetID, "antimatter", 100)
	if err == nil || err.Kind != KindInvalidArgument {
		t.Fatalf("expected invalidArgument error, got %v", err)
	}
}
