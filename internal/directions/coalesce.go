package directions

import (
	"context"
	"fmt"
	"sync"

	"github.com/woozymasta/routeview/internal/geo"
	"golang.org/x/sync/singleflight"
)

// Coalesced shares one upstream call between concurrent identical requests.
type Coalesced struct {
	next  Router
	group singleflight.Group

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the shared context of one in-flight key and the number of
// callers still waiting on it.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Coalesce wraps next so that concurrent requests for the same pair of
// coordinates wait for a single upstream call.
func Coalesce(next Router) *Coalesced {
	return &Coalesced{next: next, flights: make(map[string]*flight)}
}

// Route implements Router.
//
// The shared call outlives the caller that started it while other callers
// still wait on it. It is cancelled once the last waiting caller gives up.
func (c *Coalesced) Route(ctx context.Context, origin, destination geo.Coordinate) (*Route, error) {
	key := fmt.Sprintf("%.6f,%.6f;%.6f,%.6f", origin.Lng, origin.Lat, destination.Lng, destination.Lat)

	c.mu.Lock()
	f := c.flights[key]
	if f == nil {
		shared, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: shared, cancel: cancel}
		c.flights[key] = f
	}
	f.waiters++
	ch := c.group.DoChan(key, func() (interface{}, error) {
		return c.next.Route(f.ctx, origin, destination)
	})
	c.mu.Unlock()

	defer c.leave(key, f)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		route := *res.Val.(*Route)
		return &route, nil
	}
}

// leave drops one waiter. The last one cancels the shared call and makes the
// next request for the key start a fresh one.
func (c *Coalesced) leave(key string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}

	f.cancel()
	if c.flights[key] == f {
		delete(c.flights, key)
		c.group.Forget(key)
	}
}
