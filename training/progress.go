package training

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ProgressBar renders a single-line batch progress bar with a live postfix
// of named values, the way the coordinator reports an epoch in flight.
type ProgressBar struct {
	description string
	total       int
	current     int
	startTime   time.Time
	width       int
	postfix     map[string]float64
}

// NewProgressBar creates a bar for total steps.
func NewProgressBar(description string, total int) *ProgressBar {
	return &ProgressBar{
		description: description,
		total:       total,
		startTime:   time.Now(),
		width:       40,
		postfix:     make(map[string]float64),
	}
}

// Update advances the bar to step and replaces the postfix values.
func (pb *ProgressBar) Update(step int, postfix map[string]float64) {
	pb.current = step
	for k, v := range postfix {
		pb.postfix[k] = v
	}
	pb.render()
}

// Finish completes the bar and moves to a fresh line.
func (pb *ProgressBar) Finish() {
	pb.current = pb.total
	pb.render()
	fmt.Println()
}

func (pb *ProgressBar) render() {
	if pb.total <= 0 {
		return
	}
	fraction := float64(pb.current) / float64(pb.total)
	if fraction > 1 {
		fraction = 1
	}

	filled := int(fraction * float64(pb.width))
	if filled > pb.width {
		filled = pb.width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat(" ", pb.width-filled)

	line := fmt.Sprintf("\r%s: %3.0f%%|%s| %d/%d",
		pb.description, fraction*100, bar, pb.current, pb.total)

	elapsed := time.Since(pb.startTime)
	if pb.current > 0 && fraction > 0 {
		rate := float64(pb.current) / elapsed.Seconds()
		eta := time.Duration(float64(elapsed)/fraction) - elapsed
		line += fmt.Sprintf(" [%s<%s, %.1fit/s]",
			elapsed.Round(time.Second), eta.Round(time.Second), rate)
	}

	if len(pb.postfix) > 0 {
		names := make([]string, 0, len(pb.postfix))
		for name := range pb.postfix {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, len(names))
		for i, name := range names {
			parts[i] = fmt.Sprintf("%s=%.4g", name, pb.postfix[name])
		}
		line += " " + strings.Join(parts, ", ")
	}

	fmt.Print(line)
}
