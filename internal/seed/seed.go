// Package seed bundles the default roster written on first run
package seed

import (
	"embed"
	"encoding/json"
	"fmt"

	"afterschool-toast/internal/models"
)

//go:embed data/*.json
var files embed.FS

// Bundle holds the raw JSON seed of every collection
type Bundle struct {
	Locations []byte
	Students  []byte
	Teachers  []byte
	Groups    []byte
	Settings  []byte
}

// Default returns the bundled seed data
func Default() Bundle {
	return Bundle{
		Locations: mustRead("data/locations.json"),
		Students:  mustRead("data/students.json"),
		Teachers:  mustRead("data/teachers.json"),
		Groups:    mustRead("data/groups.json"),
		Settings:  mustRead("data/settings.json"),
	}
}

func mustRead(name string) []byte {
	b, err := files.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("seed: %v", err))
	}
	return b
}

// FromRecords builds a Bundle from typed records. Nil slices become empty arrays.
func FromRecords(
	locations []models.Location,
	students []models.Student,
	teachers []models.Teacher,
	groups []models.Group,
	settings models.Settings,
) (Bundle, error) {
	if locations == nil {
		locations = []models.Location{}
	}
	if students == nil {
		students = []models.Student{}
	}
	if teachers == nil {
		teachers = []models.Teacher{}
	}
	if groups == nil {
		groups = []models.Group{}
	}

	var (
		b   Bundle
		err error
	)
	if b.Locations, err = json.Marshal(locations); err != nil {
		return Bundle{}, err
	}
	if b.Students, err = json.Marshal(students); err != nil {
		return Bundle{}, err
	}
	if b.Teachers, err = json.Marshal(teachers); err != nil {
		return Bundle{}, err
	}
	if b.Groups, err = json.Marshal(groups); err != nil {
		return Bundle{}, err
	}
	if b.Settings, err = json.Marshal(settings); err != nil {
		return Bundle{}, err
	}
	return b, nil
}
