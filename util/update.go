package util

import "time"

// Update is a single intensity reading: the value as delivered by its
// source and the receipt timestamp. Value is normalized to [0,1] by
// the transport before it reaches the engine.
type Update struct {
	Source string
	Value  float64
	When   time.Time
}

// NewUpdate creates a new Update instance.
func NewUpdate(source string, value float64, when time.Time) *Update {
	inst := Update{
		Source: source,
		Value:  value,
		When:   when,
	}
	return &inst
}
