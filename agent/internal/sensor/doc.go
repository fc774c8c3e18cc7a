// Package sensor simulates one sensor node.
//
// Generator.Next returns a payload.Reading with every channel present.
// Ranged channels (temperature, humidity, soil, light, distance) follow a
// bounded random walk inside their physical range, so readings drift slowly
// and occasionally reach the critical edges. Motion flips on and off at
// random; the peer link drops now and then and recovers a few ticks later.
//
// The random source and step sizes are fixed per Generator. NewWithRand
// accepts a seeded *rand.Rand for reproducible sequences in tests.
package sensor
