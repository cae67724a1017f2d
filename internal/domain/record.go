package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrCoordinateOutOfRange is returned for decimal coordinates outside the
	// WGS-84 latitude/longitude ranges.
	ErrCoordinateOutOfRange = errors.New("coordinate out of range")

	// ErrNegativeMeasurement is returned when an area or altitude is below zero.
	ErrNegativeMeasurement = errors.New("negative measurement")
)

// OptionalFloat is a float64 that may be missing. The zero value is missing.
type OptionalFloat struct {
	Value float64
	Valid bool
}

// Float returns a present OptionalFloat holding v.
func Float(v float64) OptionalFloat {
	return OptionalFloat{Value: v, Valid: true}
}

// Missing returns an OptionalFloat with no value.
func Missing() OptionalFloat {
	return OptionalFloat{}
}

func (o OptionalFloat) String() string {
	if !o.Valid {
		return ""
	}
	return strconv.FormatFloat(o.Value, 'f', -1, 64)
}

// MarshalCSV writes missing values as an empty cell.
func (o OptionalFloat) MarshalCSV() (string, error) {
	return o.String(), nil
}

// UnmarshalCSV reads an empty or unparsable cell as missing.
func (o *OptionalFloat) UnmarshalCSV(s string) error {
	*o = ParseOptionalFloat(s)
	return nil
}

func (o OptionalFloat) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func (o *OptionalFloat) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Missing()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode optional float: %w", err)
	}
	*o = Float(v)
	return nil
}

// ParseOptionalFloat coerces spreadsheet text to a number. Blank, unparsable
// and non-finite text yields a missing value rather than an error.
func ParseOptionalFloat(s string) OptionalFloat {
	s = strings.TrimSpace(s)
	if s == "" {
		return Missing()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return Missing()
	}
	return Float(v)
}

// LossYearCode is the Global Forest Change lossyear band value for a site.
// Code 0 means no loss was detected; code n means loss in year 2000+n.
type LossYearCode struct {
	Code  int
	Valid bool
}

// NoLoss is the code the lossyear band uses for pixels without detected loss.
const NoLoss = 0

// LossYear returns a present code.
func LossYear(code int) LossYearCode {
	return LossYearCode{Code: code, Valid: true}
}

// LossYearFromSample converts a sampled pixel value to a code. Missing
// samples stay missing.
func LossYearFromSample(v OptionalFloat) LossYearCode {
	if !v.Valid {
		return LossYearCode{}
	}
	return LossYear(int(math.Round(v.Value)))
}

// Year returns the calendar year of the loss event, or false when the code is
// missing or reports no loss.
func (c LossYearCode) Year() (int, bool) {
	if !c.Valid || c.Code == NoLoss {
		return 0, false
	}
	return 2000 + c.Code, true
}

func (c LossYearCode) String() string {
	if !c.Valid {
		return ""
	}
	return strconv.Itoa(c.Code)
}

func (c LossYearCode) MarshalCSV() (string, error) {
	return c.String(), nil
}

// UnmarshalCSV accepts integral values written either as "3" or "3.0".
func (c *LossYearCode) UnmarshalCSV(s string) error {
	v := ParseOptionalFloat(s)
	if !v.Valid || v.Value != math.Trunc(v.Value) {
		*c = LossYearCode{}
		return nil
	}
	*c = LossYear(int(v.Value))
	return nil
}

func (c LossYearCode) MarshalJSON() ([]byte, error) {
	if !c.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(c.Code)
}

func (c *LossYearCode) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = LossYearCode{}
		return nil
	}
	var v int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode loss year: %w", err)
	}
	*c = LossYear(v)
	return nil
}

// ForestSiteRecord is one cleaned row of the ministry catalog.
type ForestSiteRecord struct {
	ID                int           `json:"id"`
	Name              string        `json:"name"`
	ForestPlanEdition string        `json:"forest_plan_edition,omitempty"` // "Fundamentat in baza Amenaj silvic, editia"
	StudyEdition      string        `json:"study_edition,omitempty"`       // "Fundamentat in baza Studiu de fundam, editia"
	PropertyType      string        `json:"property_type,omitempty"`
	Latitude          float64       `json:"latitude"`
	Longitude         float64       `json:"longitude"`
	AltitudeMin       OptionalFloat `json:"altitude_min"`
	AltitudeMax       OptionalFloat `json:"altitude_max"`
	County            string        `json:"county"`
	Administrator     string        `json:"administrator,omitempty"` // "Detinator Admin OS/OSP"
	ProductionUnit    string        `json:"production_unit,omitempty"`
	Compartment       string        `json:"compartment,omitempty"`
	ForestType        string        `json:"forest_type,omitempty"`
	AreaHa            OptionalFloat `json:"area_ha"`

	// Compartments and area that do not meet the naturalness criterion,
	// kept as entered.
	NonNaturalCompartments string `json:"non_natural_compartments,omitempty"`
	NonNaturalArea         string `json:"non_natural_area,omitempty"`
}

// Key returns the identity used to join raster samples back to the record.
func (r ForestSiteRecord) Key() SiteKey {
	return SiteKey{ID: r.ID, Name: r.Name}
}

// Point returns the site location as a WGS-84 point.
func (r ForestSiteRecord) Point() GeoPoint {
	return GeoPoint{Lon: r.Longitude, Lat: r.Latitude}
}

// Validate checks coordinate ranges and that present measurements are
// non-negative.
func (r ForestSiteRecord) Validate() error {
	if r.Latitude < -90 || r.Latitude > 90 {
		return fmt.Errorf("site %d: latitude %v: %w", r.ID, r.Latitude, ErrCoordinateOutOfRange)
	}
	if r.Longitude < -180 || r.Longitude > 180 {
		return fmt.Errorf("site %d: longitude %v: %w", r.ID, r.Longitude, ErrCoordinateOutOfRange)
	}
	for _, m := range []struct {
		name string
		v    OptionalFloat
	}{
		{ColAltitudeMin, r.AltitudeMin},
		{ColAltitudeMax, r.AltitudeMax},
		{ColArea, r.AreaHa},
	} {
		if m.v.Valid && m.v.Value < 0 {
			return fmt.Errorf("site %d: %s %v: %w", r.ID, m.name, m.v.Value, ErrNegativeMeasurement)
		}
	}
	return nil
}

// SiteKey identifies a site across stages. Identifiers restart at 1 on each
// catalog sheet, so the forest name is part of the key.
type SiteKey struct {
	ID   int
	Name string
}

func (k SiteKey) String() string {
	return fmt.Sprintf("%d|%s", k.ID, k.Name)
}

// GeoPoint is a WGS-84 (EPSG:4326) longitude/latitude pair.
type GeoPoint struct {
	Lon float64
	Lat float64
}

// GeoJoinedRecord is a site augmented with its sampled raster covariates.
type GeoJoinedRecord struct {
	ForestSiteRecord
	TreeCover OptionalFloat `json:"tree_cover"`
	LossYear  LossYearCode  `json:"loss_year"`
}
