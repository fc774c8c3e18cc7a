package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sensordash/sensordash/pkg/types"
)

var (
	// ErrEmpty is returned for an absent document (JSON null or {}).
	ErrEmpty = errors.New("payload: empty document")

	// ErrUnknownShape is returned when the document matches none of the
	// known variants.
	ErrUnknownShape = errors.New("payload: unknown document shape")
)

// Shape names a payload variant. The string values double as agent shipping
// modes in config.
type Shape string

const (
	ShapeArrayHistory Shape = "array"
	ShapeFlattened    Shape = "latest"
	ShapePushKeyed    Shape = "push"
)

// Payload is one decoded raw document. Implementations are ArrayHistory,
// Flattened and PushKeyed.
type Payload interface {
	Shape() Shape
	Normalize(capturedAt time.Time) types.Snapshot
}

// Reading is one flattened sensor record as written by a node.
// Absent fields are nil and normalize to a missing channel.
type Reading struct {
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	Soil        *float64 `json:"soil,omitempty"`
	Light       *float64 `json:"light,omitempty"`
	Distance    *float64 `json:"distance,omitempty"`
	Motion      *float64 `json:"motion,omitempty"`
	Peer        *float64 `json:"peer,omitempty"`
}

// fields pairs each Reading field with its channel id.
func (r Reading) fields() []struct {
	id string
	v  *float64
} {
	return []struct {
		id string
		v  *float64
	}{
		{types.ChannelTemperature, r.Temperature},
		{types.ChannelHumidity, r.Humidity},
		{types.ChannelSoil, r.Soil},
		{types.ChannelLight, r.Light},
		{types.ChannelDistance, r.Distance},
		{types.ChannelMotion, r.Motion},
		{types.ChannelPeer, r.Peer},
	}
}

// ReadingOf builds a Reading from channel values. Channels absent from values
// stay nil.
func ReadingOf(values map[string]float64) Reading {
	get := func(id string) *float64 {
		v, ok := values[id]
		if !ok {
			return nil
		}
		return &v
	}
	return Reading{
		Temperature: get(types.ChannelTemperature),
		Humidity:    get(types.ChannelHumidity),
		Soil:        get(types.ChannelSoil),
		Light:       get(types.ChannelLight),
		Distance:    get(types.ChannelDistance),
		Motion:      get(types.ChannelMotion),
		Peer:        get(types.ChannelPeer),
	}
}

// --- Flattened --------------------------------------------------------------

// Flattened is a single object holding only the latest reading.
type Flattened struct {
	Reading
}

func (Flattened) Shape() Shape { return ShapeFlattened }

// Normalize copies every present field into a new snapshot.
func (f Flattened) Normalize(capturedAt time.Time) types.Snapshot {
	snap := types.NewSnapshot(capturedAt)
	for _, fv := range f.fields() {
		if fv.v != nil {
			snap.Values[fv.id] = *fv.v
		}
	}
	return snap
}

// --- PushKeyed --------------------------------------------------------------

// PushKeyed is a history of flattened readings keyed by push identifiers.
// Push keys sort lexicographically in creation order.
type PushKeyed map[string]Reading

func (PushKeyed) Shape() Shape { return ShapePushKeyed }

// LatestKey returns the greatest push key, or "" for an empty history.
func (p PushKeyed) LatestKey() string {
	var latest string
	for k := range p {
		if k > latest {
			latest = k
		}
	}
	return latest
}

// Normalize reads only the entry under the latest push key.
func (p PushKeyed) Normalize(capturedAt time.Time) types.Snapshot {
	if len(p) == 0 {
		return types.NewSnapshot(capturedAt)
	}
	return Flattened{Reading: p[p.LatestKey()]}.Normalize(capturedAt)
}

// --- ArrayHistory -----------------------------------------------------------

// DHTSample is one element of the dht11 array.
type DHTSample struct {
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
}

// ArrayHistory holds per-sensor-type arrays indexed by insertion order.
// Element i of every array belongs to the same write.
type ArrayHistory struct {
	DHT11      Series[DHTSample] `json:"dht11,omitempty"`
	Soil       Series[float64]   `json:"soil,omitempty"`
	Cahaya     Series[float64]   `json:"cahaya,omitempty"`
	Ultrasonic Series[float64]   `json:"ultrasonic,omitempty"`
	PIR        Series[float64]   `json:"pir,omitempty"`
	Peer       Series[float64]   `json:"peer,omitempty"`
}

func (ArrayHistory) Shape() Shape { return ShapeArrayHistory }

// LatestIndex is the highest index present in any array, or -1 when every
// array is empty.
func (a ArrayHistory) LatestIndex() int {
	n := len(a.DHT11)
	for _, l := range []int{len(a.Soil), len(a.Cahaya), len(a.Ultrasonic), len(a.PIR), len(a.Peer)} {
		if l > n {
			n = l
		}
	}
	return n - 1
}

// Normalize reads every array at LatestIndex. Arrays that are shorter, or
// hold null at that index, leave their channel missing.
func (a ArrayHistory) Normalize(capturedAt time.Time) types.Snapshot {
	snap := types.NewSnapshot(capturedAt)
	i := a.LatestIndex()
	if i < 0 {
		return snap
	}
	if d := a.DHT11.At(i); d != nil {
		if d.Temperature != nil {
			snap.Values[types.ChannelTemperature] = *d.Temperature
		}
		if d.Humidity != nil {
			snap.Values[types.ChannelHumidity] = *d.Humidity
		}
	}
	for _, s := range []struct {
		id string
		v  *float64
	}{
		{types.ChannelSoil, a.Soil.At(i)},
		{types.ChannelLight, a.Cahaya.At(i)},
		{types.ChannelDistance, a.Ultrasonic.At(i)},
		{types.ChannelMotion, a.PIR.At(i)},
		{types.ChannelPeer, a.Peer.At(i)},
	} {
		if s.v != nil {
			snap.Values[s.id] = *s.v
		}
	}
	return snap
}

// ArrayPatch returns the multi-path update that appends r at index in an
// array-history document.
func ArrayPatch(r Reading, index int) map[string]any {
	idx := strconv.Itoa(index)
	out := make(map[string]any)
	if r.Temperature != nil || r.Humidity != nil {
		out["dht11/"+idx] = DHTSample{Temperature: r.Temperature, Humidity: r.Humidity}
	}
	for _, s := range []struct {
		key string
		v   *float64
	}{
		{"soil", r.Soil},
		{"cahaya", r.Light},
		{"ultrasonic", r.Distance},
		{"pir", r.Motion},
		{"peer", r.Peer},
	} {
		if s.v != nil {
			out[s.key+"/"+idx] = *s.v
		}
	}
	return out
}

// MaxSeriesIndex is the largest index accepted in an index-keyed array
// object. Larger keys are rejected instead of allocating the gap.
const MaxSeriesIndex = 1 << 20

// Series is an insertion-ordered array from the database. The store returns
// sparse arrays as objects keyed by decimal index; both forms decode here.
type Series[T any] []*T

// At returns element i, or nil when i is out of range or the element is null.
func (s Series[T]) At(i int) *T {
	if i < 0 || i >= len(s) {
		return nil
	}
	return s[i]
}

func (s *Series[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		var arr []*T
		if err := json.Unmarshal(b, &arr); err != nil {
			return err
		}
		*s = arr
		return nil
	}

	var m map[string]*T
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	maxIdx := -1
	byIdx := make(map[int]*T, len(m))
	for k, v := range m {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 {
			return fmt.Errorf("payload: non-index key %q in array", k)
		}
		if i > MaxSeriesIndex {
			return fmt.Errorf("payload: array index %d exceeds %d", i, MaxSeriesIndex)
		}
		byIdx[i] = v
		if i > maxIdx {
			maxIdx = i
		}
	}
	out := make([]*T, maxIdx+1)
	for i, v := range byIdx {
		out[i] = v
	}
	*s = out
	return nil
}

// --- decoding ---------------------------------------------------------------

var (
	arrayKeys     = []string{"dht11", "soil", "cahaya", "ultrasonic", "pir", "peer"}
	flattenedKeys = []string{"temperature", "humidity", "soil", "light", "distance", "motion", "peer"}
)

// Decode detects the shape of raw and decodes it into the matching variant.
//
// Detection order:
//  1. a known array key holding an array (or index-keyed object) → ArrayHistory
//  2. a known flattened key holding a number → Flattened
//  3. every value an object → PushKeyed
func Decode(raw []byte) (Payload, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, ErrEmpty
	}
	if raw[0] != '{' {
		return nil, ErrUnknownShape
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownShape, err)
	}
	if len(top) == 0 {
		return nil, ErrEmpty
	}

	switch {
	case hasKind(top, arrayKeys, '[', '{'):
		var a ArrayHistory
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("payload: decode %s: %w", ShapeArrayHistory, err)
		}
		return a, nil

	case hasNumber(top, flattenedKeys):
		var f Flattened
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("payload: decode %s: %w", ShapeFlattened, err)
		}
		return f, nil

	case allObjects(top):
		var p PushKeyed
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("payload: decode %s: %w", ShapePushKeyed, err)
		}
		return p, nil
	}
	return nil, ErrUnknownShape
}

// Canonical returns a serialization of raw that is independent of key order
// and whitespace.
func Canonical(raw []byte) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "null", nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("payload: canonicalize: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("payload: canonicalize: %w", err)
	}
	return string(out), nil
}

func hasKind(top map[string]json.RawMessage, keys []string, kinds ...byte) bool {
	for _, k := range keys {
		v, ok := top[k]
		if !ok {
			continue
		}
		v = bytes.TrimSpace(v)
		if len(v) == 0 {
			continue
		}
		for _, kind := range kinds {
			if v[0] == kind {
				return true
			}
		}
	}
	return false
}

func hasNumber(top map[string]json.RawMessage, keys []string) bool {
	for _, k := range keys {
		v, ok := top[k]
		if !ok {
			continue
		}
		v = bytes.TrimSpace(v)
		if len(v) > 0 && (v[0] == '-' || (v[0] >= '0' && v[0] <= '9')) {
			return true
		}
	}
	return false
}

func allObjects(top map[string]json.RawMessage) bool {
	for _, v := range top {
		v = bytes.TrimSpace(v)
		if len(v) == 0 || v[0] != '{' {
			return false
		}
	}
	return true
}
