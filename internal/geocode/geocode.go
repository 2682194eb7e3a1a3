package geocode

import (
	"math"
	"math/rand"
	"strings"
)

// Location is a state-level approximate position for a piece of text.
type Location struct {
	State     string
	Latitude  float64
	Longitude float64
}

type stateEntry struct {
	name string
	lat  float64
	lng  float64
}

// gazetteer maps lowercase Indian state/region names to approximate centroid
// coordinates. Order matters: ExtractState scans it top to bottom and the
// first name found in the text wins, so reordering changes results.
var gazetteer = []stateEntry{
	{"madhya pradesh", 23.2, 77.4},
	{"chhattisgarh", 21.3, 81.6},
	{"jharkhand", 23.6, 85.3},
	{"odisha", 20.9, 84.0},
	{"maharashtra", 19.7, 75.7},
	{"karnataka", 15.3, 75.7},
	{"kerala", 10.8, 76.3},
	{"tamil nadu", 11.1, 78.7},
	{"andhra pradesh", 15.9, 79.7},
	{"telangana", 18.1, 79.0},
	{"assam", 26.2, 92.9},
	{"meghalaya", 25.5, 91.4},
	{"arunachal pradesh", 28.2, 94.7},
	{"nagaland", 26.2, 94.6},
	{"manipur", 24.8, 93.9},
	{"mizoram", 23.2, 92.9},
	{"tripura", 23.9, 91.9},
	{"sikkim", 27.5, 88.5},
	{"uttarakhand", 30.1, 79.0},
	{"himachal pradesh", 31.1, 77.2},
	{"rajasthan", 27.0, 74.2},
	{"gujarat", 22.3, 71.2},
	{"uttar pradesh", 26.8, 80.9},
	{"west bengal", 22.9, 87.9},
	{"bihar", 25.1, 85.3},
	{"punjab", 31.1, 75.3},
	{"haryana", 29.1, 76.1},
	{"goa", 15.3, 74.0},
	{"jammu", 33.7, 74.9},
	{"kashmir", 34.1, 74.8},
}

// ExtractState finds the first gazetteer state mentioned in text and returns
// its centroid with a small random jitter so repeated matches for the same
// state do not stack on one map point. Returns nil when no state is mentioned.
func ExtractState(text string) *Location {
	lower := strings.ToLower(text)
	for _, entry := range gazetteer {
		if !strings.Contains(lower, entry.name) {
			continue
		}
		return &Location{
			State:     titleCase(entry.name),
			Latitude:  entry.lat + jitter(),
			Longitude: entry.lng + jitter(),
		}
	}
	return nil
}

// NearestState maps a coordinate to the closest gazetteer state by squared
// centroid distance in degrees. Used to bucket satellite alerts per state.
func NearestState(lat, lng float64) string {
	best := gazetteer[0]
	bestDist := math.MaxFloat64
	for _, entry := range gazetteer {
		dLat := lat - entry.lat
		dLng := lng - entry.lng
		dist := dLat*dLat + dLng*dLng
		if dist < bestDist {
			bestDist = dist
			best = entry
		}
	}
	return titleCase(best.name)
}

// jitter returns a value in [-0.25, 0.25).
func jitter() float64 {
	return (rand.Float64() - 0.5) * 0.5
}

func titleCase(name string) string {
	words := strings.Split(name, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
