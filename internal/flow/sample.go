package flow

// Sample represents one optical displacement reading from the downward
// flow sensor, in sensor units (scaled to ground distance by the consumer).
type Sample struct {
	Dx        float64 `json:"dx"`
	Dy        float64 `json:"dy"`
	Timestamp float64 `json:"ts"` // Unix seconds
}
