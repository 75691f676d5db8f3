package services

import (
	"fmt"

	"afterschool-toast/internal/models"
)

// Level is the threshold classification of a ratio
type Level string

const (
	LevelOK     Level = "ok"
	LevelWarn   Level = "warn"
	LevelDanger Level = "danger"
	LevelNA     Level = "n/a"
)

// Emoji returns the marker used in chat messages for the level
func (l Level) Emoji() string {
	switch l {
	case LevelWarn:
		return "🟡"
	case LevelDanger:
		return "🔴"
	case LevelOK:
		return "🟢"
	default:
		return "⚪"
	}
}

// Ratio is the students per teacher at a location
type Ratio struct {
	Students int
	Teachers int
}

func NewRatio(students, teachers int) Ratio {
	return Ratio{Students: students, Teachers: teachers}
}

// Value returns students/teachers, or 0 when there are no teachers
func (r Ratio) Value() float64 {
	if r.Teachers <= 0 {
		return 0
	}
	return float64(r.Students) / float64(r.Teachers)
}

// Display formats the ratio with one decimal, or "N/A" without teachers
func (r Ratio) Display() string {
	if r.Teachers <= 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.1f", r.Value())
}

// Classify compares the ratio against the enabled thresholds.
// A location without teachers is never classified.
func (r Ratio) Classify(settings models.Settings) Level {
	if r.Teachers <= 0 {
		return LevelNA
	}
	v := r.Value()
	switch {
	case settings.MaxThresholdEnabled && v > float64(settings.MaxThreshold):
		return LevelDanger
	case settings.WarnThresholdEnabled && v > float64(settings.WarnThreshold):
		return LevelWarn
	default:
		return LevelOK
	}
}

// exceedsMax reports whether a move producing r must be confirmed first
func (r Ratio) exceedsMax(settings models.Settings) bool {
	return settings.NotifyThresholdPassed &&
		settings.MaxThresholdEnabled &&
		r.Teachers > 0 &&
		r.Value() > float64(settings.MaxThreshold)
}
