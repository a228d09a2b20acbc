package rate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter throttles cart and order mutations per actor. Entries for
// actors that go quiet are swept out after Expiry minutes.
type Limiter struct {
	Expiry   int
	Burst    int
	LimitRPS float64
	actors   map[string]*actorLimiter
	mu       sync.Mutex
}

type actorLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func NewLimiter(burst int, expiry int, limitRPS float64) *Limiter {
	lm := &Limiter{
		Expiry:   expiry,
		LimitRPS: limitRPS,
		Burst:    burst,
		actors:   make(map[string]*actorLimiter),
	}
	go lm.sweep()
	return lm
}

func (l *Limiter) Check(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	al, ok := l.actors[id]
	if !ok {
		al = &actorLimiter{limiter: rate.NewLimiter(rate.Limit(l.LimitRPS), l.Burst)}
		l.actors[id] = al
	}
	al.lastAccess = time.Now()
	return al.limiter.Allow()
}

// Every converts a per-event interval into the RPS form NewLimiter
// expects.
func Every(interval time.Duration) float64 {
	return float64(rate.Every(interval))
}

func (l *Limiter) sweep() {
	for {
		time.Sleep(time.Minute)

		l.mu.Lock()
		for id, v := range l.actors {
			if time.Since(v.lastAccess) > time.Duration(l.Expiry)*time.Minute {
				delete(l.actors, id)
			}
		}
		l.mu.Unlock()
	}
}
