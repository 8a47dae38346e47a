package models

import "time"

// SettingType hints at how a setting value should be parsed.
type SettingType string

// Possible setting value types.
const (
	SettingTypeString  SettingType = "string"
	SettingTypeNumber  SettingType = "number"
	SettingTypeBoolean SettingType = "boolean"
	SettingTypeJSON    SettingType = "json"
)

// Setting is a school-wide key/value configuration row.
type Setting struct {
	ID          string      `db:"id" json:"id"`
	Key         string      `db:"key" json:"key"`
	Value       string      `db:"value" json:"value"`
	Type        SettingType `db:"type" json:"type"`
	Description string      `db:"description" json:"description"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// Well-known setting keys seeded by the initial migration.
const (
	SettingKeyHourlyRate        = "hourly_rate"
	SettingKeyInstructorName    = "instructor_name"
	SettingKeySchoolName        = "driving_school_name"
	SettingKeyWorkingHoursStart = "working_hours_start"
	SettingKeyWorkingHoursEnd   = "working_hours_end"
	SettingKeyCurrencySymbol    = "currency_symbol"
)
