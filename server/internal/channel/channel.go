package channel

import "github.com/sensordash/sensordash/pkg/types"

// Rule is the classification rule of a channel: Ranged or Binary.
type Rule interface {
	isRule()
}

// Ranged classifies a reading by its position inside [Min, Max].
type Ranged struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Binary classifies a two-valued reading. A value equal to Match yields
// OnMatch with MatchLabel; any other value yields Otherwise with OtherLabel.
type Binary struct {
	Match      float64      `json:"match"`
	OnMatch    types.Status `json:"on_match"`
	MatchLabel string       `json:"match_label"`
	Otherwise  types.Status `json:"otherwise"`
	OtherLabel string       `json:"other_label"`
}

func (Ranged) isRule() {}
func (Binary) isRule() {}

// Descriptor is one entry of the channel catalog.
type Descriptor struct {
	ID       string
	Name     string
	Category string
	Unit     string
	Rule     Rule
}

// Catalog returns the default channel set in output order.
// Each call returns a fresh slice; callers may not share mutations.
func Catalog() []Descriptor {
	return []Descriptor{
		{ID: types.ChannelTemperature, Name: "Temperature Sensor", Category: "Temperature", Unit: "°C",
			Rule: Ranged{Min: 0, Max: 50}},
		{ID: types.ChannelHumidity, Name: "Humidity Sensor", Category: "Humidity", Unit: "%",
			Rule: Ranged{Min: 0, Max: 100}},
		{ID: types.ChannelSoil, Name: "Soil Moisture", Category: "Soil", Unit: "%",
			Rule: Ranged{Min: 0, Max: 100}},
		{ID: types.ChannelLight, Name: "Light Sensor", Category: "Light Intensity", Unit: "lux",
			Rule: Ranged{Min: 0, Max: 1000}},
		{ID: types.ChannelDistance, Name: "Distance Sensor", Category: "Ultrasonic", Unit: "cm",
			Rule: Ranged{Min: 0, Max: 300}},
		{ID: types.ChannelMotion, Name: "Motion Sensor", Category: "Presence",
			Rule: Binary{
				Match:      1,
				OnMatch:    types.StatusWarning,
				MatchLabel: "Motion detected",
				Otherwise:  types.StatusNormal,
				OtherLabel: "No motion",
			}},
		{ID: types.ChannelPeer, Name: "Connection Status", Category: "Peer",
			Rule: Binary{
				Match:      1,
				OnMatch:    types.StatusNormal,
				MatchLabel: "Connected",
				Otherwise:  types.StatusCritical,
				OtherLabel: "Disconnected",
			}},
	}
}

// Find returns the descriptor with the given id from descs.
func Find(descs []Descriptor, id string) (Descriptor, bool) {
	for _, d := range descs {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}
