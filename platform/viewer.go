package platform

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/gammazero/deque"
)

const maxIntensityHistory = 500

// IntensityViewer keeps a rolling window of intensity readings and
// renders it as a two-line chart plus a statistics line. It backs the
// intensity pane of the simulation TUI.
type IntensityViewer struct {
	mu      sync.Mutex
	history *deque.Deque[float64]
}

type intensityStats struct {
	min    float64
	max    float64
	mean   float64
	median float64
	stdDev float64
}

// NewIntensityViewer creates an empty viewer.
func NewIntensityViewer() *IntensityViewer {
	v := &IntensityViewer{history: new(deque.Deque[float64])}
	v.history.Grow(maxIntensityHistory)
	return v
}

// Push appends a reading, evicting the oldest once the window is full.
// Safe for concurrent use.
func (v *IntensityViewer) Push(value float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.history.Len() == maxIntensityHistory {
		v.history.PopFront()
	}
	v.history.PushBack(value)
}

// Render produces the two chart lines covering the last width readings
// and the statistics line for the whole window.
func (v *IntensityViewer) Render(width int) (string, string, string) {
	v.mu.Lock()
	data := make([]float64, v.history.Len())
	for i := range v.history.Len() {
		data[i] = v.history.At(i)
	}
	v.mu.Unlock()

	window := data
	if len(window) > width {
		window = window[len(window)-width:]
	}
	var top, bottom strings.Builder
	top.Grow(width)
	bottom.Grow(width)
	for _, val := range window {
		t, b := chartGlyphs(val)
		top.WriteString(t)
		bottom.WriteString(b)
	}

	stats := calculateStats(data)
	last := 0.0
	if len(data) > 0 {
		last = data[len(data)-1]
	}
	line := fmt.Sprintf(" last [yellow]%5.3f[-]  min %5.3f  mean %5.3f  median %5.3f  max %5.3f  sd %5.3f",
		last, stats.min, stats.mean, stats.median, stats.max, stats.stdDev)
	return top.String(), bottom.String(), line
}

// chartGlyphs maps a [0,1] reading onto a two-row bar: the bottom row
// fills through the eight block glyphs first, then the top row grows on
// top of a full bottom.
func chartGlyphs(value float64) (string, string) {
	blocks := []string{"▁", "▂", "▃", "▄", "▅", "▆", "▇", "█"}
	level := int(math.Round(value * 16))
	switch {
	case level <= 0:
		return " ", " "
	case level <= 8:
		return " ", blocks[level-1]
	case level <= 16:
		return blocks[level-9], "█"
	default:
		return "▒", "█"
	}
}

func calculateStats(data []float64) intensityStats {
	if len(data) == 0 {
		return intensityStats{}
	}

	var sum float64
	min, max := data[0], data[0]
	for _, v := range data {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	mean := sum / float64(len(data))

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)
	var median float64
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2.0
	} else {
		median = sorted[mid]
	}

	var sumOfSquares float64
	for _, v := range data {
		sumOfSquares += (v - mean) * (v - mean)
	}
	stdDev := math.Sqrt(sumOfSquares / float64(len(data)))

	return intensityStats{
		min:    min,
		max:    max,
		mean:   mean,
		median: median,
		stdDev: stdDev,
	}
}
