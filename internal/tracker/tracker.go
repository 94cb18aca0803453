// Package tracker runs the attendance poll loop: sample the location,
// submit it to the geofence evaluator, drive the state machine, and
// recompute the check-in countdown every second.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lizzahq/attendd/internal/attendance"
	"github.com/lizzahq/attendd/internal/journal"
	"github.com/lizzahq/attendd/internal/sampler"
)

const (
	defaultPollInterval = 10 * time.Second
	displayTick         = time.Second
	mirrorTTL           = time.Minute
)

// Evaluator submits a sample to the external geofence evaluator.
type Evaluator interface {
	Evaluate(ctx context.Context, email string, sample attendance.Sample) (attendance.Evaluation, error)
}

// Recorder persists state transitions.
type Recorder interface {
	Record(ctx context.Context, e journal.Event) error
}

// StateEvent is published to subscribers on every state transition.
type StateEvent struct {
	Seq       uint64             `json:"seq"`
	At        time.Time          `json:"at"`
	From      attendance.Kind    `json:"from"`
	To        attendance.Kind    `json:"to"`
	Message   string             `json:"message"`
	DutyLabel string             `json:"dutyLabel"`
	Sample    *attendance.Sample `json:"sample,omitempty"`
}

// Publisher fans a state event out to live subscribers.
type Publisher interface {
	Publish(StateEvent)
}

// Snapshot is the tracker's externally visible state. Seq increases
// with every completed poll, so readers can discard stale snapshots.
type Snapshot struct {
	Seq                 uint64
	State               attendance.State
	LastKnown           attendance.State
	Violated            bool
	CheckIn             attendance.CheckInWindow
	Profile             attendance.ShiftProfile
	LastSample          *attendance.Sample
	LastPollAt          time.Time
	ConsecutiveFailures int
}

// Config collects the tracker's collaborators. Journal, Publisher and
// Mirror are optional.
type Config struct {
	Logger       *slog.Logger
	Sampler      sampler.Sampler
	Evaluator    Evaluator
	Journal      Recorder
	Publisher    Publisher
	Mirror       *redis.Client
	Profile      attendance.ShiftProfile
	Policy       attendance.Policy
	PollInterval time.Duration
	Now          func() time.Time
}

// Tracker owns the attendance state for one session. All mutation is
// confined to the Run goroutine; polls are serialized by construction,
// so a slow evaluation can never be overtaken by a later one.
type Tracker struct {
	logger    *slog.Logger
	sampler   sampler.Sampler
	evaluator Evaluator
	journal   Recorder
	publisher Publisher
	mirror    *redis.Client

	machine  *attendance.Machine
	profile  attendance.ShiftProfile
	pollEach time.Duration
	now      func() time.Time

	syncCh chan struct{}

	seq      uint64
	failures int

	mu   sync.Mutex
	snap Snapshot
}

func New(cfg Config) *Tracker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Policy == "" {
		cfg.Policy = attendance.PolicySticky
	}

	m := attendance.NewMachine(cfg.Policy)
	t := &Tracker{
		logger:    cfg.Logger,
		sampler:   cfg.Sampler,
		evaluator: cfg.Evaluator,
		journal:   cfg.Journal,
		publisher: cfg.Publisher,
		mirror:    cfg.Mirror,
		machine:   m,
		profile:   cfg.Profile,
		pollEach:  cfg.PollInterval,
		now:       cfg.Now,
		syncCh:    make(chan struct{}, 1),
	}
	t.snap = Snapshot{
		State:     m.State(),
		LastKnown: m.LastKnown(),
		Profile:   cfg.Profile,
	}
	return t
}

// Run polls immediately, then on the fixed interval and on manual sync,
// with a 1 s display tick in between. Returns when ctx is cancelled;
// after that no further sampling or network calls occur.
func (t *Tracker) Run(ctx context.Context) error {
	t.poll(ctx)
	t.tick(t.now())

	pollTicker := time.NewTicker(t.pollEach)
	defer pollTicker.Stop()
	tickTicker := time.NewTicker(displayTick)
	defer tickTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("tracker stopped")
			return nil
		case <-pollTicker.C:
			t.poll(ctx)
		case <-t.syncCh:
			// Manual sync is the explicit reset: it clears the terminal
			// violation latch before polling.
			t.machine.Reset()
			t.poll(ctx)
		case now := <-tickTicker.C:
			t.tick(now)
		}
	}
}

// ManualSync queues an immediate poll. At most one request is queued;
// further requests while a sync is pending report false.
func (t *Tracker) ManualSync() bool {
	select {
	case t.syncCh <- struct{}{}:
		return true
	default:
		return false
	}
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

func (t *Tracker) poll(ctx context.Context) {
	t.seq++
	seq := t.seq
	from := t.machine.State()

	sample, err := t.sampler.Sample(ctx)
	if err != nil {
		kind := sampler.Classify(err)
		t.failures++
		t.logger.Warn("location sample failed",
			"kind", string(kind), "error", err, "consecutive_failures", t.failures)
		t.finish(ctx, seq, from, t.machine.Fail(kind, failureMessage(kind)), nil)
		return
	}

	eval, err := t.evaluator.Evaluate(ctx, t.profile.Email, sample)
	if err != nil {
		t.failures++
		t.logger.Warn("geofence evaluation failed",
			"error", err, "consecutive_failures", t.failures)
		t.finish(ctx, seq, from, t.machine.Fail(attendance.ErrSyncFailed, "Sync error: attendance service unreachable"), &sample)
		return
	}
	t.failures = 0

	state := t.machine.Apply(eval)
	t.mirrorFix(ctx, sample)
	t.finish(ctx, seq, from, state, &sample)
}

func (t *Tracker) finish(ctx context.Context, seq uint64, from, to attendance.State, sample *attendance.Sample) {
	at := t.now()

	t.mu.Lock()
	t.snap.Seq = seq
	t.snap.State = to
	t.snap.LastKnown = t.machine.LastKnown()
	t.snap.Violated = t.machine.Violated()
	t.snap.LastPollAt = at
	t.snap.ConsecutiveFailures = t.failures
	if sample != nil {
		s := *sample
		t.snap.LastSample = &s
	}
	t.mu.Unlock()

	if from == to {
		return
	}

	t.logger.Info("attendance state changed",
		"from", string(from.Kind), "to", string(to.Kind), "message", to.Message, "seq", seq)

	ev := StateEvent{
		Seq:       seq,
		At:        at,
		From:      from.Kind,
		To:        to.Kind,
		Message:   to.Message,
		DutyLabel: to.DutyLabel(),
		Sample:    sample,
	}
	if t.publisher != nil {
		t.publisher.Publish(ev)
	}
	if t.journal != nil {
		je := journal.Event{
			At:             at,
			From:           string(from.Kind),
			To:             string(to.Kind),
			Message:        to.Message,
			WarningSeconds: to.WarningSeconds,
		}
		if sample != nil {
			je.Lat, je.Lon = sample.Lat, sample.Lon
			je.HasSample = true
		}
		if err := t.journal.Record(ctx, je); err != nil {
			t.logger.Error("journal write failed", "error", err)
		}
	}
}

// tick recomputes the check-in window. Pure local computation, no I/O.
func (t *Tracker) tick(now time.Time) {
	w, err := attendance.Window(now, t.profile.ShiftStart)
	if err != nil {
		t.logger.Debug("check-in window skipped", "error", err)
		return
	}
	t.mu.Lock()
	t.snap.CheckIn = w
	t.mu.Unlock()
}

// mirrorFix publishes the latest coordinate to the live-tracking cache
// the manager dashboards read. Key and TTL match the backend's own
// writes, so either side may refresh it.
func (t *Tracker) mirrorFix(ctx context.Context, sample attendance.Sample) {
	if t.mirror == nil {
		return
	}
	key := "loc:" + t.profile.Email
	val := fmt.Sprintf("%.6f,%.6f", sample.Lat, sample.Lon)
	if err := t.mirror.Set(ctx, key, val, mirrorTTL).Err(); err != nil {
		t.logger.Warn("live-tracking mirror write failed", "error", err)
	}
}

func failureMessage(kind attendance.ErrKind) string {
	switch kind {
	case attendance.ErrUnsupported:
		return "GPS not supported"
	case attendance.ErrPermissionDenied:
		return "Location blocked. Enable GPS."
	case attendance.ErrTimeout:
		return "Location request timed out"
	default:
		return "Position unavailable"
	}
}
