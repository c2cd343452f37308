package service

import (
	"sort"

	"github.com/ag3dash/server/internal/data/vobs"
	"github.com/ag3dash/server/internal/render"
)

// Location is one distinct sampling coordinate.
type Location struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	// Info is the first non-blank location label seen at this coordinate.
	Info    string `json:"info"`
	Samples int    `json:"samples"`
}

type coord struct{ lon, lat float64 }

// Locations groups records by exact (longitude, latitude) pair. Each group
// keeps the first non-blank label in input order. Groups are returned in
// ascending (longitude, latitude) order. Records without coordinates are
// dropped.
func Locations(records []vobs.SampleRecord) []Location {
	index := make(map[coord]int)
	out := make([]Location, 0)
	for _, r := range records {
		if !r.HasCoordinates() {
			continue
		}
		k := coord{r.Longitude, r.Latitude}
		if i, ok := index[k]; ok {
			out[i].Samples++
			if out[i].Info == "" {
				out[i].Info = r.Location
			}
			continue
		}
		index[k] = len(out)
		out = append(out, Location{
			Longitude: r.Longitude,
			Latitude:  r.Latitude,
			Info:      r.Location,
			Samples:   1,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Longitude != out[j].Longitude {
			return out[i].Longitude < out[j].Longitude
		}
		return out[i].Latitude < out[j].Latitude
	})
	return out
}

func toPoints(locs []Location) []render.Point {
	pts := make([]render.Point, len(locs))
	for i, l := range locs {
		pts[i] = render.Point{Longitude: l.Longitude, Latitude: l.Latitude, Weight: float64(l.Samples)}
	}
	return pts
}
