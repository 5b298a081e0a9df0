// Package planning implements the farmer's soil-health and crop-rotation
// planners.
package planning

import (
	"time"
)

const dateLayout = "2006-01-02"

// Soil pH bands used for advice on the dashboard.
const (
	PHAcidic   = "acidic"
	PHNeutral  = "neutral"
	PHAlkaline = "alkaline"
)

// Crop cycle statuses.
const (
	StatusPlanned   = "planned"
	StatusGrowing   = "growing"
	StatusReady     = "ready"
	StatusHarvested = "harvested"
)

// SoilRetestInterval is how long a soil test result stays current.
const SoilRetestInterval = 2 // years

// ============================================================================
// SOIL TEST
// ============================================================================

// SoilTest is one lab report for a field, with its derived retest date and pH class.
type SoilTest struct {
	ID            string    `json:"id"`
	FarmerID      string    `json:"farmer_id"`
	FieldName     string    `json:"field_name"`
	TestDate      time.Time `json:"test_date"`
	PH            float64   `json:"ph"`
	Nitrogen      *float64  `json:"nitrogen,omitempty"`
	Phosphorus    *float64  `json:"phosphorus,omitempty"`
	Potassium     *float64  `json:"potassium,omitempty"`
	OrganicCarbon *float64  `json:"organic_carbon,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	NextTestDue   time.Time `json:"next_test_due"`
	PHClass       string    `json:"ph_class"`
}

// SoilTestInput is the create/update payload for a soil test.
type SoilTestInput struct {
	FieldName     string   `json:"field_name" validate:"required,max=120"`
	TestDate      string   `json:"test_date" validate:"required,datetime=2006-01-02"`
	PH            float64  `json:"ph" validate:"gte=0,lte=14"`
	Nitrogen      *float64 `json:"nitrogen,omitempty" validate:"omitempty,gte=0"`
	Phosphorus    *float64 `json:"phosphorus,omitempty" validate:"omitempty,gte=0"`
	Potassium     *float64 `json:"potassium,omitempty" validate:"omitempty,gte=0"`
	OrganicCarbon *float64 `json:"organic_carbon,omitempty" validate:"omitempty,gte=0,lte=100"`
	Notes         string   `json:"notes,omitempty" validate:"max=2000"`
}

// ClassifyPH buckets a pH reading.
func ClassifyPH(ph float64) string {
	switch {
	case ph < 6.5:
		return PHAcidic
	case ph > 7.5:
		return PHAlkaline
	default:
		return PHNeutral
	}
}

func (s *SoilTest) derive() {
	s.NextTestDue = s.TestDate.AddDate(SoilRetestInterval, 0, 0)
	s.PHClass = ClassifyPH(s.PH)
}

// ============================================================================
// CROP CYCLE
// ============================================================================

// CropCycle is one planting on a field and its harvest projection.
type CropCycle struct {
	ID              string    `json:"id"`
	FarmerID        string    `json:"farmer_id"`
	CropName        string    `json:"crop_name"`
	FieldName       string    `json:"field_name"`
	Season          string    `json:"season,omitempty"`
	SowingDate      time.Time `json:"sowing_date"`
	DurationDays    int       `json:"duration_days"`
	Harvested       bool      `json:"harvested"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	ExpectedHarvest time.Time `json:"expected_harvest"`
	DaysToHarvest   int       `json:"days_to_harvest"`
	Status          string    `json:"status"`
}

// CropCycleInput is the create/update payload for a crop cycle.
type CropCycleInput struct {
	CropName     string `json:"crop_name" validate:"required,max=120"`
	FieldName    string `json:"field_name" validate:"required,max=120"`
	Season       string `json:"season,omitempty" validate:"omitempty,oneof=kharif rabi zaid"`
	SowingDate   string `json:"sowing_date" validate:"required,datetime=2006-01-02"`
	DurationDays int    `json:"duration_days" validate:"required,gt=0,lte=1500"`
	Harvested    bool   `json:"harvested"`
	Notes        string `json:"notes,omitempty" validate:"max=2000"`
}

// derive fills the harvest projection relative to today.
func (c *CropCycle) derive(today time.Time) {
	c.ExpectedHarvest = c.SowingDate.AddDate(0, 0, c.DurationDays)
	today = truncateDay(today)
	c.DaysToHarvest = daysBetween(today, c.ExpectedHarvest)
	switch {
	case c.Harvested:
		c.Status = StatusHarvested
	case today.Before(c.SowingDate):
		c.Status = StatusPlanned
	case !today.Before(c.ExpectedHarvest):
		c.Status = StatusReady
	default:
		c.Status = StatusGrowing
	}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(truncateDay(to).Sub(truncateDay(from)).Hours() / 24)
}
