package models

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Unit represents a billable condominium unit, e.g. an apartment
// or the commercial room.
type Unit struct {
	DefaultModel
	Name string `gorm:"uniqueIndex"`
	Note string
}

var ErrUnitNameNotUnique = errors.New("the unit name must be unique")

func (u *Unit) BeforeSave(_ *gorm.DB) error {
	u.Name = strings.TrimSpace(u.Name)
	u.Note = strings.TrimSpace(u.Note)

	return nil
}

// Units returns all units ordered by name.
func Units(db *gorm.DB) ([]Unit, error) {
	var units []Unit
	err := db.Order("name ASC").Find(&units).Error
	return units, err
}
