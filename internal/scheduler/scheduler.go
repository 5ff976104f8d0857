package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fleetpulse/internal/alertstore"
	"github.com/fleetpulse/internal/hub"
	"github.com/fleetpulse/internal/models"
	"github.com/fleetpulse/internal/rules"
	"golang.org/x/sync/semaphore"
	"gorm.io/gorm"
)

// Publisher receives the deltas produced by each tick. Satisfied by
// *hub.Hub; delivery is fire-and-forget with respect to the tick.
type Publisher interface {
	Publish(ev hub.Event)
}

// Fetcher produces per-tenant snapshots. Satisfied by *metrics.Reader.
type Fetcher interface {
	Fetch(ctx context.Context, tenantID uint) (*models.Snapshot, error)
}

// CachedSnapshot is the last successfully fetched snapshot for a tenant.
// Stale means the most recent fetch attempt failed and the data predates
// the current tick.
type CachedSnapshot struct {
	Snapshot  models.Snapshot `json:"snapshot"`
	Stale     bool            `json:"stale"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Scheduler drives the poll-evaluate-reconcile-broadcast cycle across all
// active tenants on a fixed interval. Tenant fan-out is bounded by a
// semaphore so a large fleet cannot overwhelm the data store. A tenant
// whose fetch fails is skipped for that tick only: its cached snapshot is
// retained and marked stale, and the other tenants proceed.
type Scheduler struct {
	db     *gorm.DB
	reader Fetcher
	engine *rules.Engine
	store  *alertstore.Store
	pub    Publisher

	interval     time.Duration
	fetchTimeout time.Duration
	sem          *semaphore.Weighted

	mu    sync.RWMutex
	cache map[uint]CachedSnapshot

	stopChan chan struct{}
	doneChan chan struct{}
	logger   *slog.Logger
}

type Options struct {
	Interval     time.Duration
	WorkerLimit  int
	FetchTimeout time.Duration
}

func New(db *gorm.DB, reader Fetcher, engine *rules.Engine, store *alertstore.Store, pub Publisher, opts Options) *Scheduler {
	if opts.WorkerLimit <= 0 {
		opts.WorkerLimit = 4
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 5 * time.Second
	}
	return &Scheduler{
		db:           db,
		reader:       reader,
		engine:       engine,
		store:        store,
		pub:          pub,
		interval:     opts.Interval,
		fetchTimeout: opts.FetchTimeout,
		sem:          semaphore.NewWeighted(int64(opts.WorkerLimit)),
		cache:        make(map[uint]CachedSnapshot),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
		logger:       slog.With("component", "scheduler"),
	}
}

// SetPublisher wires the delta sink. Call before Start; the hub's initial
// sync closure references the scheduler, so the two are wired in stages.
func (s *Scheduler) SetPublisher(pub Publisher) {
	s.pub = pub
}

// Start runs an initial tick synchronously, then ticks on the configured
// interval until Stop is called.
func (s *Scheduler) Start() {
	s.Tick()

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		defer close(s.doneChan)
		for {
			select {
			case <-ticker.C:
				s.Tick()
			case <-s.stopChan:
				return
			}
		}
	}()
}

// Stop halts the loop. An in-progress tick is never cancelled; Tick runs
// on the loop goroutine, so by the time doneChan closes the current tick
// has drained.
func (s *Scheduler) Stop() {
	close(s.stopChan)
	<-s.doneChan
}

// Tick executes one poll-evaluate-reconcile-broadcast cycle.
func (s *Scheduler) Tick() {
	var tenants []models.Tenant
	if err := s.db.Where("is_active = ?", true).Find(&tenants).Error; err != nil {
		s.logger.Error("listing tenants", "error", err)
		return
	}

	var (
		wg          sync.WaitGroup
		deltaMu     sync.Mutex
		newActive   []models.Alert
		newResolved []models.Alert
	)

	for i := range tenants {
		tenant := tenants[i]
		if err := s.sem.Acquire(context.Background(), 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.sem.Release(1)

			active, resolved := s.processTenant(tenant)
			if len(active) == 0 && len(resolved) == 0 {
				return
			}
			deltaMu.Lock()
			newActive = append(newActive, active...)
			newResolved = append(newResolved, resolved...)
			deltaMu.Unlock()
		}()
	}
	wg.Wait()

	s.publishDeltas(newActive, newResolved)
}

func (s *Scheduler) processTenant(tenant models.Tenant) (active, resolved []models.Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout)
	defer cancel()

	snap, err := s.reader.Fetch(ctx, tenant.ID)
	if err != nil {
		s.logger.Warn("fetch failed, skipping tenant for this tick",
			"tenant", tenant.Code, "error", err)
		s.markStale(tenant.ID)
		return nil, nil
	}

	s.updateCache(snap)

	candidates := s.engine.Evaluate(snap)
	active, resolved, err = s.store.Reconcile(tenant.ID, candidates)
	if err != nil {
		s.logger.Error("reconcile failed", "tenant", tenant.Code, "error", err)
		return nil, nil
	}
	return active, resolved
}

func (s *Scheduler) publishDeltas(newActive, newResolved []models.Alert) {
	if s.pub == nil {
		return
	}
	for i := range newActive {
		s.pub.Publish(hub.Event{Type: hub.TypeAlertNew, Payload: newActive[i]})
	}
	for i := range newResolved {
		s.pub.Publish(hub.Event{Type: hub.TypeAlertResolved, Payload: newResolved[i]})
	}
	s.pub.Publish(hub.Event{Type: hub.TypeMetricsUpdate, Payload: s.Cache()})
}

func (s *Scheduler) updateCache(snap *models.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[snap.TenantID] = CachedSnapshot{
		Snapshot:  *snap,
		UpdatedAt: time.Now(),
	}
}

// markStale keeps the previous snapshot so the query API can keep serving
// last-known-good data, flagged as stale.
func (s *Scheduler) markStale(tenantID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[tenantID]; ok {
		cached.Stale = true
		s.cache[tenantID] = cached
	}
}

// Cache returns a copy-on-read view of the last snapshot per tenant.
func (s *Scheduler) Cache() map[uint]CachedSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[uint]CachedSnapshot, len(s.cache))
	for id, cached := range s.cache {
		out[id] = cached
	}
	return out
}
