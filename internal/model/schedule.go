package model

import (
	"regexp"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date with no time-of-day component. It marshals to
// and from "YYYY-MM-DD".
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar date in UTC.
func NewDate(t time.Time) Date {
	return Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(b []byte) error {
	t, err := time.Parse(`"`+dateLayout+`"`, string(b))
	if err != nil {
		return err
	}
	*d = Date{t}
	return nil
}

// Equal reports whether two dates fall on the same calendar day.
func (d Date) Equal(other Date) bool {
	return d.Year() == other.Year() && d.YearDay() == other.YearDay()
}

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeName reduces a venue or truck name to its canonical key:
// lowercase with every non-alphanumeric character removed. Idempotent.
func NormalizeName(name string) string {
	return nonAlphanumeric.ReplaceAllString(strings.ToLower(name), "")
}

// LocationInfo is a venue from the article's location section. Latitude
// and Longitude stay nil until geocoding resolves them; they serialize as
// null so downstream consumers can tell "unresolved" from zero.
type LocationInfo struct {
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// HasCoordinates reports whether the location has been resolved.
func (l *LocationInfo) HasCoordinates() bool {
	return l != nil && l.Latitude != nil && l.Longitude != nil
}

// FoodTruck is a truck from the article's schedule section with its
// parsed appearance lines.
type FoodTruck struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Link        string            `json:"link,omitempty"`
	Appearances []TruckAppearance `json:"appearances"`
}

// TruckAppearance is one stop of one truck on one date. The flat list on
// ScrapedData denormalizes truck fields so each element stands alone.
type TruckAppearance struct {
	TruckName    string   `json:"truckName"`
	Description  string   `json:"description,omitempty"`
	Link         string   `json:"link,omitempty"`
	Date         Date     `json:"date"`
	LocationName string   `json:"locationName"`
	Address      string   `json:"address,omitempty"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	StartTime    string   `json:"startTime"`
	EndTime      string   `json:"endTime"`
}

// ScrapedData is the artifact one scrape run produces. It is marshalled
// as-is to the dataset path and served verbatim by the API.
type ScrapedData struct {
	ScrapedAt   time.Time                `json:"scrapedAt"`
	SourceURL   string                   `json:"sourceUrl"`
	DateRange   string                   `json:"dateRange"`
	Locations   map[string]*LocationInfo `json:"locations"`
	Trucks      []*FoodTruck             `json:"trucks"`
	Appearances []TruckAppearance        `json:"appearances"`
}

// AppearancesOn returns the appearances dated d.
func (s *ScrapedData) AppearancesOn(d Date) []TruckAppearance {
	var out []TruckAppearance
	for _, a := range s.Appearances {
		if a.Date.Equal(d) {
			out = append(out, a)
		}
	}
	return out
}
