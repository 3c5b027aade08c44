// Package types defines the entity shapes shared by the store, world and
// engine layers. Fields are explicit and tagged; unknown keys on the wire
// are rejected at the adapter boundary, not here.
package types

import "time"

// Resources bundles the three tradeable materials. Energy is a derived
// display field computed by catalog.Production and never stored directly.
type Resources struct {
	Metal      float64 `json:"metal"`
	Crystal    float64 `json:"crystal"`
	Deuterium  float64 `json:"deuterium"`
}

// Officer tracks a premium-currency hire with an expiry.
type Officer struct {
	HiredAt  time.Time `json:"hiredAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Booster tracks an activated production multiplier with an expiry.
type Booster struct {
	ActivatedAt time.Time `json:"activatedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Stake records a premium-currency position in a staking pool.
type Stake struct {
	ID          string    `json:"id"`
	PoolID      string    `json:"poolId"`
	Amount      int64     `json:"amount"`
	StakedAt    time.Time `json:"stakedAt"`
	LastClaimAt time.Time `json:"lastClaimAt"`
}

// SpyReport is a single espionage result, layered by infoLevel.
type SpyReport struct {
	ID              string            `json:"id"`
	AttackerFleetID string            `json:"attackerFleetId"`
	Target          PlanetID          `json:"target"`
	InfoLevel       int               `json:"infoLevel"`
	Resources       *Resources        `json:"resources,omitempty"`
	Fleet           map[string]int    `json:"fleet,omitempty"`
	Defense         map[string]int    `json:"defense,omitempty"`
	Buildings       map[string]int    `json:"buildings,omitempty"`
	Tech            map[string]int    `json:"tech,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
}

// DecisionLogEntry is one entry of an agent's bounded activity log.
type DecisionLogEntry struct {
	At      time.Time `json:"at"`
	Kind    string    `json:"kind"`
	Detail  string    `json:"detail"`
}

const (
	SpyReportCapacity    = 50
	DecisionLogCapacity  = 50
)

// Agent is the authoritative record of a player in the universe.
type Agent struct {
	ID               string                  `json:"id"` // opaque wallet string
	DisplayName      string                  `json:"displayName"`
	CreatedAt        time.Time               `json:"createdAt"`
	Planets          []PlanetID              `json:"planets"`
	Score            int64                   `json:"score"`
	Currency         int64                   `json:"currency"` // premium balance, safe-integer capped
	Officers         map[string]Officer      `json:"officers"`
	Boosters         map[string]Booster      `json:"boosters"`
	Stakes           []Stake                 `json:"stakes"`
	Tech             map[string]int          `json:"tech"` // 15 named techs
	ResearchQueue    []QueueJob              `json:"researchQueue"`
	Profile          *string                 `json:"profile,omitempty"`
	AllianceID       *string                 `json:"allianceId,omitempty"`
	SpyReports       []SpyReport             `json:"spyReports"`
	DecisionLog      []DecisionLogEntry      `json:"decisionLog"`
}

// PlanetID is the canonical "galaxy:system:position" composite key.
type PlanetID struct {
	Galaxy   int `json:"galaxy"`
	System   int `json:"system"`
	Position int `json:"position"`
}

// String renders the canonical "g:s:p" form used as a map key and wire id.
func (p PlanetID) String() string {
	return itoa(p.Galaxy) + ":" + itoa(p.System) + ":" + itoa(p.Position)
}

// SystemID is the "galaxy:system" composite key for a StarSystem.
type SystemID struct {
	Galaxy int `json:"galaxy"`
	System int `json:"system"`
}

func (s SystemID) String() string {
	return itoa(s.Galaxy) + ":" + itoa(s.System)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [12]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// QueueJob is the embedded shape shared by build, research and shipyard
// queues. IsDefense and ShipOrDefense are only meaningful for shipyard jobs;
// Building/Tech are only meaningful for build/research jobs respectively.
type QueueJob struct {
	Kind          JobKind       `json:"kind"`
	Building      string        `json:"building,omitempty"`
	Tech          string        `json:"tech,omitempty"`
	ShipOrDefense string        `json:"shipOrDefense,omitempty"`
	IsDefense     bool          `json:"isDefense,omitempty"`
	Count         int           `json:"count,omitempty"` // shipyard only
	TargetLevel   int           `json:"targetLevel,omitempty"`
	Cost          Resources     `json:"cost"`
	StartedAt     time.Time     `json:"startedAt"`
	CompletesAt   time.Time     `json:"completesAt"`
	BuildTime     time.Duration `json:"buildTime"`
}

// JobKind discriminates the three queue kinds.
type JobKind string

const (
	JobBuild    JobKind = "build"
	JobResearch JobKind = "research"
	JobShipyard JobKind = "shipyard"
)

// TemperatureRange is a planet's min/max surface temperature in degrees C.
type TemperatureRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Planet is the authoritative record of a colonizable world.
type Planet struct {
	ID              PlanetID           `json:"id"`
	OwnerID         *string            `json:"ownerId,omitempty"` // nil if uncolonized
	Temperature     TemperatureRange   `json:"temperature"`
	Resources       Resources          `json:"resources"`
	Buildings       map[string]int     `json:"buildings"`
	Ships           map[string]int     `json:"ships"`
	Defense         map[string]int     `json:"defense"`
	BuildQueue      []QueueJob         `json:"buildQueue"`
	ShipyardQueue   []QueueJob         `json:"shipyardQueue"`
	Name            *string            `json:"name,omitempty"`
}

// MissionKind enumerates the fleet mission types.
type MissionKind string

const (
	MissionTransport  MissionKind = "transport"
	MissionDeploy     MissionKind = "deploy"
	MissionAttack     MissionKind = "attack"
	MissionRecycle    MissionKind = "recycle"
	MissionEspionage  MissionKind = "espionage"
	MissionColonize   MissionKind = "colonize"
)

// Fleet is an in-flight or orbiting group of ships owned by one agent.
type Fleet struct {
	ID            string         `json:"id"`
	OwnerID       string         `json:"ownerId"`
	Composition   map[string]int `json:"composition"`
	Mission       MissionKind    `json:"mission"`
	Origin        PlanetID       `json:"origin"`
	Destination   PlanetID       `json:"destination"`
	Cargo         Resources      `json:"cargo"`
	FuelConsumed  int64          `json:"fuelConsumed"`
	DepartsAt     time.Time      `json:"departsAt"`
	ArrivesAt     time.Time      `json:"arrivesAt"`
	Returning     bool           `json:"returning"`
	RecallAt      *time.Time     `json:"recallAt,omitempty"`
}

// DebrisField is recoverable metal/crystal at a coordinate.
type DebrisField struct {
	Position PlanetID `json:"position"`
	Metal    float64  `json:"metal"`
	Crystal  float64  `json:"crystal"`
}

// NameProvenance records how a StarSystem acquired its current name.
type NameProvenance string

const (
	NameSeeded    NameProvenance = "seeded"
	NameGenerated NameProvenance = "generated"
	NameByAgent   NameProvenance = "agent"
)

// StarSystem is the naming record for a galaxy:system coordinate.
type StarSystem struct {
	ID         SystemID       `json:"id"`
	Name       string         `json:"name"`
	Provenance NameProvenance `json:"provenance"`
}
