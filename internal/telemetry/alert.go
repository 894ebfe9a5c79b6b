package telemetry

import (
	"math/rand"
	"time"
)

// Level is the severity of an alert.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Alert is a synthetic security event.
type Alert struct {
	Type      string    `json:"type"`
	Level     Level     `json:"level"`
	Location  string    `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

// Catalog holds the alert templates the generator draws from.
var Catalog = []Alert{
	{Type: "intrusion detected", Level: LevelMedium, Location: "entrance"},
	{Type: "suspicious behavior", Level: LevelLow, Location: "zone A"},
	{Type: "device malfunction", Level: LevelHigh, Location: "rear monitor"},
	{Type: "crowd gathering", Level: LevelMedium, Location: "central area"},
}

// AlertGenerator picks alerts uniformly from a catalog.
type AlertGenerator struct {
	rand    *rand.Rand
	now     func() time.Time
	catalog []Alert
}

// NewAlertGenerator creates a generator over Catalog. A nil r seeds from the clock.
func NewAlertGenerator(r *rand.Rand, now func() time.Time) *AlertGenerator {
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}
	return &AlertGenerator{rand: r, now: now, catalog: Catalog}
}

// Next returns a random catalog entry stamped with the current time.
func (g *AlertGenerator) Next() Alert {
	a := g.catalog[g.rand.Intn(len(g.catalog))]
	a.Timestamp = g.now()
	return a
}
