package sensor

import (
	"math"
	"math/rand"
	"time"

	"github.com/sensordash/sensordash/pkg/payload"
	"github.com/sensordash/sensordash/pkg/types"
)

// Walk bounds one ranged channel's random walk.
type Walk struct {
	ID   string
	Min  float64
	Max  float64
	Step float64 // maximum change per tick
}

// Walks is the default set of ranged channels the simulator produces.
var Walks = []Walk{
	{ID: types.ChannelTemperature, Min: 0, Max: 50, Step: 1.5},
	{ID: types.ChannelHumidity, Min: 0, Max: 100, Step: 3},
	{ID: types.ChannelSoil, Min: 0, Max: 100, Step: 2},
	{ID: types.ChannelLight, Min: 0, Max: 1000, Step: 40},
	{ID: types.ChannelDistance, Min: 0, Max: 300, Step: 15},
}

const (
	// motionFlip is the chance per tick that the motion channel changes.
	motionFlip = 0.15

	// peerDrop is the chance per tick that a connected peer disconnects.
	peerDrop = 0.05

	// peerRecover is the chance per tick that a disconnected peer returns.
	peerRecover = 0.5
)

// Generator produces successive simulated readings. It is not safe for
// concurrent use.
type Generator struct {
	rnd    *rand.Rand
	walks  []Walk
	values map[string]float64
	motion bool
	peer   bool
}

// New returns a Generator seeded from seed. A zero seed uses the clock.
func New(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return NewWithRand(rand.New(rand.NewSource(seed))) //nolint:gosec // not crypto
}

// NewWithRand returns a Generator drawing from rnd. Every ranged channel
// starts at the middle of its range and the peer starts connected.
func NewWithRand(rnd *rand.Rand) *Generator {
	g := &Generator{
		rnd:    rnd,
		walks:  Walks,
		values: make(map[string]float64, len(Walks)+2),
		peer:   true,
	}
	for _, w := range g.walks {
		g.values[w.ID] = (w.Min + w.Max) / 2
	}
	return g
}

// Next advances every channel by one tick and returns the new reading.
func (g *Generator) Next() payload.Reading {
	for _, w := range g.walks {
		v := g.values[w.ID] + (g.rnd.Float64()*2-1)*w.Step
		g.values[w.ID] = round1(clamp(v, w.Min, w.Max))
	}

	if g.rnd.Float64() < motionFlip {
		g.motion = !g.motion
	}
	if g.peer {
		g.peer = g.rnd.Float64() >= peerDrop
	} else {
		g.peer = g.rnd.Float64() < peerRecover
	}

	out := make(map[string]float64, len(g.values)+2)
	for k, v := range g.values {
		out[k] = v
	}
	out[types.ChannelMotion] = boolValue(g.motion)
	out[types.ChannelPeer] = boolValue(g.peer)
	return payload.ReadingOf(out)
}

func clamp(v, min, max float64) float64 {
	return math.Max(min, math.Min(max, v))
}

// round1 keeps one decimal, like the node firmware.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
