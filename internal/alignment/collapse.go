package alignment

import (
	"fmt"
	"sort"
	"time"

	"github.com/hpungsan/attune/internal/journal"
)

// Collapse signals.
const (
	SignalSleep     = "sleep"
	SignalStrain    = "strain"
	SignalAlignment = "alignment"
)

// Flag severities.
const (
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Report levels. One flag is a note; two or more suggest a downshift.
const (
	LevelNone      = "none"
	LevelNote      = "note"
	LevelDownshift = "downshift"
)

// DefaultWindow is the look-back period for every signal.
const DefaultWindow = 7 * 24 * time.Hour

// Options holds every collapse threshold. Zero fields take the defaults.
type Options struct {
	Window time.Duration

	SleepMinSamples  int
	SleepMediumBelow float64
	SleepHighBelow   float64

	StrainMinSamples int
	StrainRatio      float64

	AlignmentWindow     int
	AlignmentMinSamples int
	AlignmentRatio      float64
}

// DefaultOptions returns the standard thresholds.
func DefaultOptions() Options {
	return Options{
		Window:              DefaultWindow,
		SleepMinSamples:     3,
		SleepMediumBelow:    6.5,
		SleepHighBelow:      5.5,
		StrainMinSamples:    4,
		StrainRatio:         1.2,
		AlignmentWindow:     5,
		AlignmentMinSamples: 3,
		AlignmentRatio:      0.8,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Window <= 0 {
		o.Window = d.Window
	}
	if o.SleepMinSamples <= 0 {
		o.SleepMinSamples = d.SleepMinSamples
	}
	if o.SleepMediumBelow <= 0 {
		o.SleepMediumBelow = d.SleepMediumBelow
	}
	if o.SleepHighBelow <= 0 {
		o.SleepHighBelow = d.SleepHighBelow
	}
	if o.StrainMinSamples <= 0 {
		o.StrainMinSamples = d.StrainMinSamples
	}
	if o.StrainRatio <= 0 {
		o.StrainRatio = d.StrainRatio
	}
	if o.AlignmentWindow <= 0 {
		o.AlignmentWindow = d.AlignmentWindow
	}
	if o.AlignmentMinSamples <= 0 {
		o.AlignmentMinSamples = d.AlignmentMinSamples
	}
	if o.AlignmentRatio <= 0 {
		o.AlignmentRatio = d.AlignmentRatio
	}
	return o
}

// Flag is one raised collapse signal.
type Flag struct {
	Signal   string  `json:"signal"`
	Severity string  `json:"severity"`
	Message  string  `json:"message"`
	Value    float64 `json:"value"`
	Samples  int     `json:"samples"`
}

// Report is the collapse assessment for a window. It is never persisted.
type Report struct {
	Flags              []Flag `json:"flags"`
	DownshiftSuggested bool   `json:"downshift_suggested"`
	Level              string `json:"level"`
	WindowStart        int64  `json:"window_start"`
	EvaluatedAt        int64  `json:"evaluated_at"`
}

// Assess evaluates the three collapse signals over the window ending at now.
// checkins may be in any order; insertion order (Seq) is restored here.
func Assess(now time.Time, checkins []journal.CheckIn, negativeAffect []journal.SeriesPoint, opts Options) Report {
	opts = opts.withDefaults()
	cutoff := now.Add(-opts.Window).Unix()

	inWindow := make([]journal.CheckIn, 0, len(checkins))
	for _, c := range checkins {
		if c.Timestamp >= cutoff {
			inWindow = append(inWindow, c)
		}
	}
	sort.SliceStable(inWindow, func(i, j int) bool {
		if inWindow[i].Seq != inWindow[j].Seq {
			return inWindow[i].Seq < inWindow[j].Seq
		}
		return inWindow[i].Timestamp < inWindow[j].Timestamp
	})

	flags := make([]Flag, 0, 3)
	if f, ok := sleepSignal(inWindow, opts); ok {
		flags = append(flags, f)
	}
	if f, ok := strainSignal(negativeAffect, cutoff, opts); ok {
		flags = append(flags, f)
	}
	if f, ok := alignmentSignal(inWindow, opts); ok {
		flags = append(flags, f)
	}

	return Report{
		Flags:              flags,
		DownshiftSuggested: len(flags) >= 2,
		Level:              levelFor(len(flags)),
		WindowStart:        cutoff,
		EvaluatedAt:        now.Unix(),
	}
}

func levelFor(n int) string {
	switch {
	case n >= 2:
		return LevelDownshift
	case n == 1:
		return LevelNote
	default:
		return LevelNone
	}
}

func sleepSignal(checkins []journal.CheckIn, opts Options) (Flag, bool) {
	var hours []float64
	for _, c := range checkins {
		if c.HoursSlept != nil {
			hours = append(hours, *c.HoursSlept)
		}
	}
	if len(hours) < opts.SleepMinSamples {
		return Flag{}, false
	}

	avg := mean(hours)
	var severity string
	switch {
	case avg < opts.SleepHighBelow:
		severity = SeverityHigh
	case avg < opts.SleepMediumBelow:
		severity = SeverityMedium
	default:
		return Flag{}, false
	}
	return Flag{
		Signal:   SignalSleep,
		Severity: severity,
		Message:  fmt.Sprintf("average sleep %.1fh over %d nights", avg, len(hours)),
		Value:    avg,
		Samples:  len(hours),
	}, true
}

func strainSignal(series []journal.SeriesPoint, cutoff int64, opts Options) (Flag, bool) {
	points := make([]journal.SeriesPoint, 0, len(series))
	for _, p := range series {
		if p.Timestamp >= cutoff {
			points = append(points, p)
		}
	}
	if len(points) < opts.StrainMinSamples {
		return Flag{}, false
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].Timestamp < points[j].Timestamp })

	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	first, second := halves(values)
	before, after := mean(first), mean(second)
	if !(after > before*opts.StrainRatio) {
		return Flag{}, false
	}
	return Flag{
		Signal:   SignalStrain,
		Severity: SeverityMedium,
		Message:  fmt.Sprintf("negative affect rising: %.1f -> %.1f", before, after),
		Value:    after,
		Samples:  len(values),
	}, true
}

func alignmentSignal(checkins []journal.CheckIn, opts Options) (Flag, bool) {
	var scores []float64
	for _, c := range checkins {
		if c.AlignmentToPriorIntent != nil {
			scores = append(scores, *c.AlignmentToPriorIntent)
		}
	}
	if len(scores) > opts.AlignmentWindow {
		scores = scores[len(scores)-opts.AlignmentWindow:]
	}
	if len(scores) < opts.AlignmentMinSamples {
		return Flag{}, false
	}

	first, second := halves(scores)
	before, after := mean(first), mean(second)
	if !(after < before*opts.AlignmentRatio) {
		return Flag{}, false
	}
	return Flag{
		Signal:   SignalAlignment,
		Severity: SeverityMedium,
		Message:  fmt.Sprintf("alignment declining: %.2f -> %.2f", before, after),
		Value:    after,
		Samples:  len(scores),
	}, true
}

// halves splits at n/2; for odd n the second half is the larger one.
func halves(v []float64) ([]float64, []float64) {
	mid := len(v) / 2
	return v[:mid], v[mid:]
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}
