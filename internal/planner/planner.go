// Package planner owns the deal's bundles and customer terms, applies patches,
// drives the recomputation stages and reports what changed.
//
// Every mutation settles its whole cascade under one lock before returning.
// Change events and the persistence hook run after the lock is released.
// Events go through one per-planner queue drained in order, so the events of a
// mutation made from a subscriber are delivered after every event of the
// mutation that triggered it. Snapshots are stamped with a sequence number and
// handed to the Persister newest-last; a stale snapshot is never written after
// a newer one.
package planner

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Simplici0/dealplanner/internal/events"
	"github.com/Simplici0/dealplanner/internal/pricing"
)

// Persister receives a copy of the full state after every settled mutation.
type Persister interface {
	Persist(snap Snapshot)
}

// Recorder observes planner activity, typically for metrics.
type Recorder interface {
	ObserveMutation(op string)
	ObserveStages(stages []pricing.Stage)
	SetBundles(n int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveMutation(string)         {}
func (nopRecorder) ObserveStages([]pricing.Stage) {}
func (nopRecorder) SetBundles(int)                 {}

// Options configures a Planner. Zero values are usable.
type Options struct {
	Logger    zerolog.Logger
	Bus       *events.Bus
	Persister Persister
	Recorder  Recorder
	NewID     func() string
}

// Planner is the single owner of all bundles and of the customer terms.
type Planner struct {
	mu      sync.RWMutex
	terms   pricing.CustomerTerms
	bundles map[string]*pricing.Bundle
	order   []string
	seq     uint64

	persistMu  sync.Mutex
	pending    *stampedSnapshot
	queuedSeq  uint64
	persisting bool

	outMu    sync.Mutex
	outbox   []events.Event
	draining bool

	log       zerolog.Logger
	bus       *events.Bus
	persister Persister
	rec       Recorder
	newID     func() string
}

// New returns an empty planner.
func New(opts Options) *Planner {
	p := &Planner{
		bundles:   make(map[string]*pricing.Bundle),
		log:       opts.Logger,
		bus:       opts.Bus,
		persister: opts.Persister,
		rec:       opts.Recorder,
		newID:     opts.NewID,
	}
	if p.rec == nil {
		p.rec = nopRecorder{}
	}
	if p.newID == nil {
		p.newID = uuid.NewString
	}
	return p
}

// SetPersister replaces the persistence hook. Passing nil disables persistence.
func (p *Planner) SetPersister(persister Persister) {
	p.mu.Lock()
	p.persister = persister
	p.mu.Unlock()
}

// CustomerTerms returns the current customer terms.
func (p *Planner) CustomerTerms() pricing.CustomerTerms {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.terms
}

// Bundle returns a copy of the bundle with the given id.
func (p *Planner) Bundle(id string) (pricing.Bundle, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.bundles[id]
	if !ok {
		return pricing.Bundle{}, false
	}
	return *b, true
}

// BundleIDs lists bundle ids in creation order.
func (p *Planner) BundleIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.order...)
}

// Len reports the number of bundles.
func (p *Planner) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.order)
}

// CreateBundle inserts a default bundle and returns its id.
func (p *Planner) CreateBundle() string {
	p.mu.Lock()
	id := p.newID()
	if _, dup := p.bundles[id]; dup || id == "" {
		id = uuid.NewString()
	}
	b := pricing.NewBundle(p.terms)
	p.bundles[id] = &b
	p.order = append(p.order, id)
	n := len(p.order)
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.log.Debug().Str("bundle_id", id).Msg("bundle created")
	p.rec.ObserveStages([]pricing.Stage{pricing.StagePricing, pricing.StagePromotions, pricing.StageProfitability})
	p.settle("create_bundle", n, snap, events.Event{Kind: events.KindBundleCreated, BundleID: id})
	return id
}

// DeleteBundle removes a bundle. It reports false, and does nothing, when id is unknown.
func (p *Planner) DeleteBundle(id string) bool {
	p.mu.Lock()
	if _, ok := p.bundles[id]; !ok {
		p.mu.Unlock()
		p.log.Debug().Str("bundle_id", id).Msg("delete ignored: unknown bundle")
		return false
	}
	delete(p.bundles, id)
	for i, v := range p.order {
		if v == id {
			p.order = append(p.order[:i:i], p.order[i+1:]...)
			break
		}
	}
	n := len(p.order)
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.log.Debug().Str("bundle_id", id).Msg("bundle deleted")
	p.settle("delete_bundle", n, snap, events.Event{Kind: events.KindBundleDeleted, BundleID: id})
	return true
}

// UpdateCustomerTerms applies patch to the customer terms and recomputes every bundle.
func (p *Planner) UpdateCustomerTerms(patch Patch) pricing.CustomerTerms {
	applied, dropped := normalize(customerFields, patch)
	if len(dropped) > 0 {
		p.log.Warn().Strs("dropped", dropped).Msg("customer patch keys ignored")
	}

	p.mu.Lock()
	for key, v := range applied {
		customerFields[key].setTerms(&p.terms, v)
	}
	terms := p.terms
	stages := p.recomputeAllLocked()
	n := len(p.order)
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.log.Debug().Int("bundles", n).Msg("customer terms updated")
	p.rec.ObserveStages(stages)
	p.settle("update_customer", n, snap, events.Event{Kind: events.KindCustomerChanged, Fields: applied})
	return terms
}

// ResetCustomerTerms restores the default (empty) customer terms and recomputes every bundle.
func (p *Planner) ResetCustomerTerms() {
	p.mu.Lock()
	p.terms = pricing.CustomerTerms{}
	stages := p.recomputeAllLocked()
	n := len(p.order)
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.rec.ObserveStages(stages)
	p.settle("reset_customer", n, snap, events.Event{Kind: events.KindCustomerChanged, Fields: map[string]any{
		"name": "", "frontEndPct": 0.0, "backEndPct": 0.0, "distributorFeePct": 0.0,
	}})
}

// UpdateBundleField applies patch to one field group of a bundle and re-runs the
// stages that depend on it. It reports false, and does nothing, when the bundle
// or group is unknown.
func (p *Planner) UpdateBundleField(id string, group Group, patch Patch) bool {
	fields, ok := groupFields[group]
	if !ok {
		p.log.Debug().Str("bundle_id", id).Str("group", string(group)).Msg("update ignored: unknown group")
		return false
	}
	applied, dropped := normalize(fields, patch)

	p.mu.Lock()
	b, ok := p.bundles[id]
	if !ok {
		p.mu.Unlock()
		p.log.Debug().Str("bundle_id", id).Msg("update ignored: unknown bundle")
		return false
	}
	if group == GroupPromotions {
		applyPromotionSideEffects(b, applied)
	}
	for key, v := range applied {
		fields[key].set(b, v)
	}
	stages := pricing.Recompute(b, p.terms, startStage[group])
	evs := make([]events.Event, 0, 1+len(stages))
	evs = append(evs, events.Event{Kind: events.KindBundleChanged, BundleID: id, Group: string(group), Fields: applied})
	for _, st := range stages {
		evs = append(evs, stageEvent(id, st, b))
	}
	n := len(p.order)
	snap := p.snapshotLocked()
	p.mu.Unlock()

	if len(dropped) > 0 {
		p.log.Warn().Str("bundle_id", id).Str("group", string(group)).Strs("dropped", dropped).Msg("bundle patch keys ignored")
	}
	p.log.Debug().Str("bundle_id", id).Str("group", string(group)).Int("fields", len(applied)).Msg("bundle updated")
	p.rec.ObserveStages(stages)
	p.settle("update_bundle", n, snap, evs...)
	return true
}

// Reset drops every bundle and the customer terms.
func (p *Planner) Reset() {
	p.mu.Lock()
	p.terms = pricing.CustomerTerms{}
	p.bundles = make(map[string]*pricing.Bundle)
	p.order = nil
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.log.Info().Msg("planner reset")
	p.settle("reset", 0, snap, events.Event{Kind: events.KindReset})
}

func (p *Planner) recomputeAllLocked() []pricing.Stage {
	var stages []pricing.Stage
	for _, id := range p.order {
		stages = append(stages, pricing.Recompute(p.bundles[id], p.terms, pricing.StagePricing)...)
	}
	return stages
}

// stampedSnapshot is a snapshot tagged with the mutation that produced it.
type stampedSnapshot struct {
	seq  uint64
	snap Snapshot
}

// settle runs the post-mutation side effects outside the lock.
func (p *Planner) settle(op string, bundles int, snap *stampedSnapshot, evs ...events.Event) {
	p.rec.ObserveMutation(op)
	p.rec.SetBundles(bundles)
	if snap != nil {
		p.persist(snap)
	}
	p.publish(evs)
}

// persist hands snap to the Persister unless a newer snapshot was already
// accepted. While a Persist call is in flight, later snapshots replace each
// other in a single pending slot and the in-flight caller writes the newest
// one when it is done.
func (p *Planner) persist(snap *stampedSnapshot) {
	p.persistMu.Lock()
	if snap.seq <= p.queuedSeq {
		p.persistMu.Unlock()
		return
	}
	p.queuedSeq = snap.seq
	p.pending = snap
	if p.persisting {
		p.persistMu.Unlock()
		return
	}
	p.persisting = true
	for p.pending != nil {
		next := p.pending
		p.pending = nil
		p.persistMu.Unlock()

		p.mu.RLock()
		persister := p.persister
		p.mu.RUnlock()
		if persister != nil {
			persister.Persist(next.snap)
		}

		p.persistMu.Lock()
	}
	p.persisting = false
	p.persistMu.Unlock()
}

// publish queues evs and, unless another call is already draining the queue,
// delivers queued events in order until it is empty.
func (p *Planner) publish(evs []events.Event) {
	p.outMu.Lock()
	p.outbox = append(p.outbox, evs...)
	if p.draining {
		p.outMu.Unlock()
		return
	}
	p.draining = true
	for len(p.outbox) > 0 {
		ev := p.outbox[0]
		p.outbox = p.outbox[1:]
		p.outMu.Unlock()
		p.bus.Publish(ev)
		p.outMu.Lock()
	}
	p.outbox = nil
	p.draining = false
	p.outMu.Unlock()
}

// snapshotLocked stamps the mutation and returns nil when nobody persists snapshots.
func (p *Planner) snapshotLocked() *stampedSnapshot {
	p.seq++
	if p.persister == nil {
		return nil
	}
	return &stampedSnapshot{seq: p.seq, snap: p.buildSnapshotLocked()}
}
