package geo

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/example/ride-booking/internal/models"
)

// Locator stores the last reported position of each driver.
type Locator interface {
	Upsert(ctx context.Context, p models.DriverPosition) error
	Positions(ctx context.Context, driverIDs []int64) (map[int64]models.Coord, error)
}

type Index struct {
	mu      sync.RWMutex
	drivers map[int64]models.DriverPosition
}

func NewIndex() *Index {
	return &Index{drivers: make(map[int64]models.DriverPosition)}
}

func (g *Index) Upsert(ctx context.Context, p models.DriverPosition) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p.Updated.IsZero() {
		p.Updated = time.Now()
	}
	g.drivers[p.DriverID] = p
	return nil
}

func (g *Index) Positions(ctx context.Context, driverIDs []int64) (map[int64]models.Coord, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[int64]models.Coord, len(driverIDs))
	for _, id := range driverIDs {
		if p, ok := g.drivers[id]; ok {
			out[id] = p.Loc
		}
	}
	return out, nil
}

// RankNearest reorders candidates so those with a known position come first,
// nearest to origin. The sort is stable: equal distances, and every candidate
// without a position, keep their incoming order.
func RankNearest(origin models.Coord, cands []models.Candidate, pos map[int64]models.Coord) {
	dist := func(c models.Candidate) (float64, bool) {
		p, ok := pos[c.Driver.ID]
		if !ok {
			return 0, false
		}
		return Haversine(origin.Lat, origin.Lon, p.Lat, p.Lon), true
	}
	sort.SliceStable(cands, func(i, j int) bool {
		di, okI := dist(cands[i])
		dj, okJ := dist(cands[j])
		switch {
		case okI && okJ:
			return di < dj
		default:
			return okI && !okJ
		}
	})
}

// Haversine distance in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
