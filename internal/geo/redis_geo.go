package geo

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/ride-booking/internal/models"
)

// RedisGeo implements Locator using Redis GEO commands. The consumer process
// writes the same key, so positions ingested through Kafka show up here.
type RedisGeo struct {
	client *redis.Client
	key    string
}

func NewRedisGeo(addr, password, key string) *RedisGeo {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisGeo{client: c, key: key}
}

func (r *RedisGeo) Upsert(ctx context.Context, p models.DriverPosition) error {
	member := MemberName(p.DriverID)
	if err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{Longitude: p.Loc.Lon, Latitude: p.Loc.Lat, Name: member}).Err(); err != nil {
		return err
	}
	return r.client.HSet(ctx, MetaKey(p.DriverID), map[string]interface{}{"updated": time.Now().Format(time.RFC3339)}).Err()
}

func (r *RedisGeo) Positions(ctx context.Context, driverIDs []int64) (map[int64]models.Coord, error) {
	out := make(map[int64]models.Coord, len(driverIDs))
	if len(driverIDs) == 0 {
		return out, nil
	}
	members := make([]string, len(driverIDs))
	for i, id := range driverIDs {
		members[i] = MemberName(id)
	}
	res, err := r.client.GeoPos(ctx, r.key, members...).Result()
	if err != nil {
		return nil, err
	}
	for i, p := range res {
		// GEOPOS yields nil for members that were never added
		if p == nil {
			continue
		}
		out[driverIDs[i]] = models.Coord{Lat: p.Latitude, Lon: p.Longitude}
	}
	return out, nil
}

func (r *RedisGeo) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *RedisGeo) Close() error { return r.client.Close() }

func MemberName(driverID int64) string { return strconv.FormatInt(driverID, 10) }

func MetaKey(driverID int64) string { return "driver:meta:" + MemberName(driverID) }
