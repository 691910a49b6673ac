package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName_StripsPunctuationAndCase(t *testing.T) {
	assert.Equal(t, "pourtaproom", NormalizeName("Pour Taproom"))
	assert.Equal(t, "tnjssouthernkitchen", NormalizeName("T'n J's Southern Kitchen!"))
	assert.Equal(t, "wilmingtonbrewingcompany", NormalizeName("Wilmington  Brewing — Company"))
}

func TestNormalizeName_Idempotent(t *testing.T) {
	names := []string{"Pour Taproom", "Café él 123", "ALL CAPS & SYMBOLS #1"}
	for _, n := range names {
		once := NormalizeName(n)
		assert.Equal(t, once, NormalizeName(once))
	}
}

func TestDate_JSONRoundTrip(t *testing.T) {
	d := NewDate(time.Date(2026, 2, 20, 17, 30, 0, 0, time.UTC))

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2026-02-20"`, string(b))

	var back Date
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, d.Equal(back))
}

func TestDate_EqualIgnoresTimeOfDay(t *testing.T) {
	morning := NewDate(time.Date(2026, 2, 20, 8, 0, 0, 0, time.UTC))
	evening := NewDate(time.Date(2026, 2, 20, 22, 0, 0, 0, time.UTC))
	nextDay := NewDate(time.Date(2026, 2, 21, 8, 0, 0, 0, time.UTC))

	assert.True(t, morning.Equal(evening))
	assert.False(t, morning.Equal(nextDay))
}

func TestParseDate_Malformed(t *testing.T) {
	_, err := ParseDate("02/20/2026")
	assert.Error(t, err)

	_, err = ParseDate("2026-2-20")
	assert.Error(t, err)
}

func TestScrapedData_AppearancesOn(t *testing.T) {
	feb20, _ := ParseDate("2026-02-20")
	feb21, _ := ParseDate("2026-02-21")

	data := &ScrapedData{
		Appearances: []TruckAppearance{
			{TruckName: "A Craving Station", Date: feb20, LocationName: "Pour Taproom"},
			{TruckName: "Momma Rocks", Date: feb21, LocationName: "Waterline Brewing"},
			{TruckName: "A Craving Station", Date: feb21, LocationName: "Mad Mole Brewing"},
		},
	}

	got := data.AppearancesOn(feb21)
	require.Len(t, got, 2)
	assert.Equal(t, "Momma Rocks", got[0].TruckName)

	empty := data.AppearancesOn(NewDate(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Empty(t, empty)
}

func TestLocationInfo_HasCoordinates(t *testing.T) {
	lat, lon := 34.21, -77.89

	assert.False(t, (&LocationInfo{Name: "Pour Taproom"}).HasCoordinates())
	assert.False(t, (&LocationInfo{Name: "Pour Taproom", Latitude: &lat}).HasCoordinates())
	assert.True(t, (&LocationInfo{Name: "Pour Taproom", Latitude: &lat, Longitude: &lon}).HasCoordinates())

	var nilLoc *LocationInfo
	assert.False(t, nilLoc.HasCoordinates())
}

func TestScrapedData_MarshalsCamelCaseWithNullCoordinates(t *testing.T) {
	data := &ScrapedData{
		ScrapedAt: time.Date(2026, 2, 21, 12, 0, 0, 0, time.UTC),
		SourceURL: "https://portcitydaily.com/2026/02/21/food-truck-tracker",
		DateRange: "Feb. 16 – 22",
		Locations: map[string]*LocationInfo{
			"pourtaproom": {Name: "Pour Taproom", Address: "201 N Front St, Wilmington"},
		},
	}

	b, err := json.Marshal(data)
	require.NoError(t, err)

	s := string(b)
	assert.Contains(t, s, `"scrapedAt"`)
	assert.Contains(t, s, `"sourceUrl"`)
	assert.Contains(t, s, `"dateRange"`)
	assert.Contains(t, s, `"latitude":null`)
	assert.Contains(t, s, `"longitude":null`)
}
