package schedule

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ManualLocation is a curated venue with known-good coordinates. The
// article's address lines for these venues geocode poorly or not at all.
type ManualLocation struct {
	Name      string  `yaml:"name"`
	Address   string  `yaml:"address"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// DefaultManualLocations returns the built-in curated venue set.
func DefaultManualLocations() []ManualLocation {
	return []ManualLocation{
		{Name: "Wrightsville Beach Brewery", Address: "6201 Oleander Dr, Wilmington, NC 28403", Latitude: 34.2097, Longitude: -77.8678},
		{Name: "Waterline Brewing Co.", Address: "721 Surry St, Wilmington, NC 28401", Latitude: 34.2312, Longitude: -77.9519},
		{Name: "Wilmington Brewing Company", Address: "824 S Kerr Ave, Wilmington, NC 28403", Latitude: 34.2245, Longitude: -77.8862},
		{Name: "Flying Machine Brewing Company", Address: "3130 Randall Pkwy, Wilmington, NC 28403", Latitude: 34.2307, Longitude: -77.8954},
		{Name: "Mad Mole Brewing", Address: "6309 Boathouse Rd, Wilmington, NC 28409", Latitude: 34.1878, Longitude: -77.8599},
		{Name: "Dram Tree Shots & Pours", Address: "420 Eastwood Rd, Wilmington, NC 28403", Latitude: 34.2289, Longitude: -77.8573},
	}
}

// LoadManualLocations reads a curated overlay file. Callers put these
// entries ahead of the built-in set so an operator file can correct a
// venue's coordinates without a release.
func LoadManualLocations(path string) ([]ManualLocation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "schedule: read locations file %s", path)
	}

	var wrapper struct {
		Locations []ManualLocation `yaml:"locations"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "schedule: parse locations file")
	}

	return wrapper.Locations, nil
}
