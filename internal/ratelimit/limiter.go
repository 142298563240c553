package ratelimit

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"rommedia/internal/logging"
	"rommedia/internal/services"
)

// Quota mirrors the ssuser block ScreenScraper returns with every response.
// Zero fields were not reported.
type Quota struct {
	RequestsToday     int `json:"requests_today"`
	MaxRequestsPerDay int `json:"max_requests_per_day"`
	MaxRequestsPerMin int `json:"max_requests_per_min"`
	MaxThreads        int `json:"max_threads"`
}

// Options configures a Limiter.
type Options struct {
	// RatePerSecond caps grants in any rolling one-second window.
	RatePerSecond float64
	// DailyQuota is the local daily budget until the API reports its own.
	DailyQuota int
	Now        func() time.Time
	Sleep      func(ctx context.Context, d time.Duration) error
	Logger     *slog.Logger
}

// Status is a point-in-time view of the limiter counters.
type Status struct {
	Used          int     `json:"used"`
	Limit         int     `json:"limit"`
	Threads       int     `json:"threads"`
	Active        int     `json:"active"`
	RatePerSecond float64 `json:"rate_per_second"`
	Exhausted     bool    `json:"exhausted"`
	Authoritative bool    `json:"authoritative"`
}

// Limiter gates remote calls on a per-second rate, a concurrent request cap,
// and a daily quota. It starts conservative (one thread, every grant counted)
// and relaxes only when the API reports its real limits.
type Limiter struct {
	mu            sync.Mutex
	pacer         *rate.Limiter
	baseRate      float64
	now           func() time.Time
	sleep         func(ctx context.Context, d time.Duration) error
	logger        *slog.Logger
	threads       int
	active        int
	used          int
	limit         int
	exhausted     bool
	authoritative bool
	changed       chan struct{}
}

// New constructs a Limiter.
func New(opts Options) *Limiter {
	ratePerSecond := opts.RatePerSecond
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	limit := opts.DailyQuota
	if limit <= 0 {
		limit = math.MaxInt
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = SleepWithContext
	}
	return &Limiter{
		pacer:    rate.NewLimiter(rate.Limit(ratePerSecond), 1),
		baseRate: ratePerSecond,
		now:      now,
		sleep:    sleep,
		logger:   logging.NewComponentLogger(opts.Logger, "ratelimit"),
		threads:  1,
		limit:    limit,
		changed:  make(chan struct{}),
	}
}

// Permit is a granted request slot. Release must be called once the remote
// call has completed.
type Permit struct {
	once    sync.Once
	limiter *Limiter
}

// Release frees the concurrent request slot.
func (p *Permit) Release() {
	if p == nil || p.limiter == nil {
		return
	}
	p.once.Do(p.limiter.release)
}

// Acquire suspends until a request may be issued. It fails fast with
// ErrQuotaExhausted once the daily quota is spent or MarkExhausted was called.
func (l *Limiter) Acquire(ctx context.Context) (*Permit, error) {
	for {
		l.mu.Lock()
		if err := l.exhaustedErrLocked(); err != nil {
			l.mu.Unlock()
			return nil, err
		}
		if l.active < l.threads {
			l.active++
			l.used++
			now := l.now()
			reservation := l.pacer.ReserveN(now, 1)
			delay := reservation.DelayFrom(now)
			l.mu.Unlock()

			if delay > 0 {
				if err := l.sleep(ctx, delay); err != nil {
					l.mu.Lock()
					reservation.CancelAt(l.now())
					l.used--
					l.mu.Unlock()
					l.release()
					return nil, err
				}
			}
			return &Permit{limiter: l}, nil
		}
		wait := l.changed
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

func (l *Limiter) exhaustedErrLocked() error {
	if !l.exhausted && l.used >= l.limit {
		l.exhausted = true
		l.logger.Warn("daily quota reached",
			logging.Int("used", l.used),
			logging.Int("limit", l.limit),
			logging.String(logging.FieldEventType, "quota_exhausted"),
		)
	}
	if l.exhausted {
		return services.Wrap(services.ErrQuotaExhausted, "ratelimit", "acquire", "daily quota exhausted", nil)
	}
	return nil
}

func (l *Limiter) release() {
	l.mu.Lock()
	if l.active > 0 {
		l.active--
	}
	l.broadcastLocked()
	l.mu.Unlock()
}

func (l *Limiter) broadcastLocked() {
	close(l.changed)
	l.changed = make(chan struct{})
}

// RecordResponse reconciles local counters with the quota the API reported.
// Usage only moves up, and the per-second rate only moves down.
func (l *Limiter) RecordResponse(q Quota) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.authoritative = true
	if q.MaxThreads > 0 && q.MaxThreads != l.threads {
		l.threads = q.MaxThreads
		l.broadcastLocked()
	}
	if q.MaxRequestsPerDay > 0 {
		l.limit = q.MaxRequestsPerDay
	}
	if q.RequestsToday > l.used {
		l.used = q.RequestsToday
	}
	if q.MaxRequestsPerMin > 0 {
		perSecond := float64(q.MaxRequestsPerMin) / 60
		if perSecond < float64(l.pacer.Limit()) {
			l.pacer.SetLimitAt(l.now(), rate.Limit(perSecond))
			l.logger.Debug("per-second rate lowered from reported minute quota",
				logging.Float64("rate_per_second", perSecond),
				logging.Int("max_requests_per_min", q.MaxRequestsPerMin),
			)
		}
	}
}

// MarkExhausted latches exhaustion after the API refused a request for quota.
func (l *Limiter) MarkExhausted() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.exhausted = true
	l.broadcastLocked()
}

// Reset clears exhaustion and local usage, for example at the start of a new
// quota day. Reported thread caps are kept.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.exhausted = false
	l.used = 0
	l.pacer.SetLimitAt(l.now(), rate.Limit(l.baseRate))
	l.broadcastLocked()
}

// Status returns a snapshot of the counters.
func (l *Limiter) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	limit := l.limit
	if limit == math.MaxInt {
		limit = 0
	}
	return Status{
		Used:          l.used,
		Limit:         limit,
		Threads:       l.threads,
		Active:        l.active,
		RatePerSecond: float64(l.pacer.Limit()),
		Exhausted:     l.exhausted,
		Authoritative: l.authoritative,
	}
}

// SleepWithContext blocks for the given duration, returning early if the
// context is cancelled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
