package loadbalancer

import (
	"sync"
	"time"

	"github.com/tair/marketplace-listing/pkg/logger"
)

// failureCooldown is how long an instance is skipped after the proxy
// reports it unreachable.
const failureCooldown = 15 * time.Second

// RoundRobin rotates across a service's instances, skipping any that
// recently failed until their cooldown lapses.
type RoundRobin struct {
	mu        sync.Mutex
	instances []string
	next      int
	served    map[string]uint64
	downUntil map[string]time.Time
	now       func() time.Time
}

// NewRoundRobin creates a load balancer over the configured instances.
func NewRoundRobin(instances []string) *RoundRobin {
	logger.Logger.Info().
		Int("instance_count", len(instances)).
		Strs("instances", instances).
		Msg("Load balancer initialized")

	return &RoundRobin{
		instances: append([]string{}, instances...),
		served:    make(map[string]uint64),
		downUntil: make(map[string]time.Time),
		now:       time.Now,
	}
}

// Next returns the instance to route to. Instances inside their failure
// cooldown are skipped; when every instance is cooling down the plain
// rotation is used, since routing somewhere still gives the caller an
// answer once an instance recovers.
func (rr *RoundRobin) Next() string {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	n := len(rr.instances)
	if n == 0 {
		return ""
	}

	now := rr.now()
	for i := 0; i < n; i++ {
		candidate := rr.instances[rr.next]
		rr.next = (rr.next + 1) % n
		if now.After(rr.downUntil[candidate]) {
			rr.served[candidate]++
			return candidate
		}
	}

	candidate := rr.instances[rr.next]
	rr.next = (rr.next + 1) % n
	rr.served[candidate]++
	return candidate
}

// MarkFailed puts an instance into cooldown after a transport failure.
func (rr *RoundRobin) MarkFailed(instance string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	rr.downUntil[instance] = rr.now().Add(failureCooldown)
	logger.Logger.Warn().
		Str("instance", instance).
		Dur("cooldown", failureCooldown).
		Msg("Instance marked failed")
}

// Instances returns the configured instance list.
func (rr *RoundRobin) Instances() []string {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return append([]string{}, rr.instances...)
}

// Stats returns how many requests each instance has been handed.
func (rr *RoundRobin) Stats() map[string]uint64 {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	out := make(map[string]uint64, len(rr.served))
	for instance, count := range rr.served {
		out[instance] = count
	}
	return out
}
