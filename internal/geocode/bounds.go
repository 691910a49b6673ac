package geocode

import "github.com/twpayne/go-geom"

// Bounds builds the XY bounding box for the service area from latitude
// and longitude extents.
func Bounds(minLat, maxLat, minLon, maxLon float64) *geom.Bounds {
	return geom.NewBounds(geom.XY).SetCoords(
		geom.Coord{minLon, minLat},
		geom.Coord{maxLon, maxLat},
	)
}

// InBounds reports whether a point lies inside the box, boundary
// inclusive.
func InBounds(b *geom.Bounds, lat, lon float64) bool {
	return b.OverlapsPoint(geom.XY, geom.Coord{lon, lat})
}
