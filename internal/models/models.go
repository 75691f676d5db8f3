// Package models contains data structures for the application
package models

// LocationNone is the currentLocID of someone who is not present anywhere
const LocationNone = "none"

// Weekday codes used in Student.Days and Teacher.Days
var Weekdays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// Location represents a physical place people can be in (cafeteria, gym, ...)
type Location struct {
	ID           string `json:"id"`
	LocationName string `json:"locationName"`
	IsActive     bool   `json:"isActive"`
	IsDefault    bool   `json:"isDefault"`
}

// Group is a named, colored cohort of students
type Group struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Student represents a student on the roster
type Student struct {
	ID                   string   `json:"id"`
	FirstName            string   `json:"firstName"`
	LastName             string   `json:"lastName"`
	DOB                  string   `json:"dob"`
	GroupID              string   `json:"groupID"`
	HasMeds              bool     `json:"hasMeds"`
	Days                 []string `json:"days"`
	CurrentLocID         string   `json:"currentLocID"`
	PreviousLocID        string   `json:"previousLocID"`
	AwaitingConfirmation bool     `json:"awaitingConfirmation"`
	Present              bool     `json:"present"`
}

// Teacher represents a teacher on the roster
type Teacher struct {
	ID           string   `json:"id"`
	FirstName    string   `json:"firstName"`
	LastName     string   `json:"lastName"`
	DOB          string   `json:"dob"`
	Days         []string `json:"days"`
	CurrentLocID string   `json:"currentLocID"`
	Present      bool     `json:"present"`
}

// Settings is the site-wide singleton record
type Settings struct {
	SiteName              string `json:"siteName"`
	WarnThreshold         int    `json:"warnThreshold"`
	MaxThreshold          int    `json:"maxThreshold"`
	WarnThresholdEnabled  bool   `json:"warnThresholdEnabled"`
	MaxThresholdEnabled   bool   `json:"maxThresholdEnabled"`
	NotifyThresholdPassed bool   `json:"notifyThresholdPassed"`
}

// Settings defaults
const (
	DefaultSiteName      = "Afterschool Toast"
	DefaultWarnThreshold = 10
	DefaultMaxThreshold  = 13
)

// DefaultSettings returns the settings used when nothing has been saved
func DefaultSettings() Settings {
	return Settings{
		SiteName:             DefaultSiteName,
		WarnThreshold:        DefaultWarnThreshold,
		MaxThreshold:         DefaultMaxThreshold,
		WarnThresholdEnabled: true,
		MaxThresholdEnabled:  true,
	}
}

// StudentStatus is the presence/location state of a student
type StudentStatus string

const (
	StatusAbsent           StudentStatus = "ABSENT"
	StatusPresentConfirmed StudentStatus = "PRESENT_CONFIRMED"
	StatusPresentAwaiting  StudentStatus = "PRESENT_AWAITING"
)

// IsNowhere reports whether locID places someone at no location
func IsNowhere(locID string) bool { return locID == LocationNone || locID == "" }

// Status derives the state machine position of a student
func (s Student) Status() StudentStatus {
	switch {
	case IsNowhere(s.CurrentLocID):
		return StatusAbsent
	case s.AwaitingConfirmation:
		return StatusPresentAwaiting
	default:
		return StatusPresentConfirmed
	}
}

// IsAt reports whether the student currently sits at locID
func (s Student) IsAt(locID string) bool { return s.CurrentLocID == locID }

// IsAt reports whether the teacher currently sits at locID
func (t Teacher) IsAt(locID string) bool { return t.CurrentLocID == locID }

// AttendsOn reports whether day is one of the student's usual days
func (s Student) AttendsOn(day string) bool { return containsDay(s.Days, day) }

// AttendsOn reports whether day is one of the teacher's usual days
func (t Teacher) AttendsOn(day string) bool { return containsDay(t.Days, day) }

func containsDay(days []string, day string) bool {
	for _, d := range days {
		if d == day {
			return true
		}
	}
	return false
}

// Named is implemented by anything that can be listed by name
type Named interface {
	NameParts() (first, last string)
}

func (s Student) NameParts() (string, string) { return s.FirstName, s.LastName }
func (t Teacher) NameParts() (string, string) { return t.FirstName, t.LastName }
