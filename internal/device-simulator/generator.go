package device_simulator

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

const (
	// fraction of saturation added by one watering run
	waterGain = 0.35

	defaultSeed = 0.45

	baseTemperature = 22.0
	baseHumidity    = 55.0
)

// Reading is one sample of the simulated sensors.
type Reading struct {
	Temperature float64
	Humidity    float64
	SoilPercent int
}

// DataGenerator keeps the simulated soil moisture and ages it over time.
type DataGenerator struct {
	mu          sync.Mutex
	rnd         *rand.Rand
	now         func() time.Time
	last        time.Time
	moisture    float64 // [0..1]
	decayPerMin float64
}

// NewDataGenerator returns a generator that loses decayPerMin of saturation per minute.
func NewDataGenerator(decayPerMin float64, seed int64) *DataGenerator {
	return &DataGenerator{
		rnd:         rand.New(rand.NewSource(seed)),
		now:         time.Now,
		moisture:    defaultSeed,
		decayPerMin: math.Max(0, decayPerMin),
	}
}

// SetMoisture forces the current saturation, clamped to [0..1].
func (g *DataGenerator) SetMoisture(m float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.moisture = clamp01(m)
	g.last = g.now()
}

// Next ages the soil and samples the sensors.
func (g *DataGenerator) Next() Reading {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if g.last.IsZero() {
		g.last = now
	}
	dtMin := math.Max(0, now.Sub(g.last).Minutes())
	g.moisture = clamp01(g.moisture - g.decayPerMin*dtMin)
	g.last = now

	return Reading{
		Temperature: round1(baseTemperature + g.rnd.NormFloat64()*0.8),
		Humidity:    round1(clamp(baseHumidity+g.rnd.NormFloat64()*3, 0, 100)),
		SoilPercent: int(math.Round(g.moisture * 100)),
	}
}

// SoilPercent returns the current moisture without aging it.
func (g *DataGenerator) SoilPercent() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return int(math.Round(g.moisture * 100))
}

// Water applies one pump run.
func (g *DataGenerator) Water() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.moisture = clamp01(g.moisture + waterGain)
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
