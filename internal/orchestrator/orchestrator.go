// Package orchestrator implements the Discussion Orchestrator (C6): the
// stateful scheduler owning a discussion's full lifecycle from creation
// through its turn loop to a final summary, coordinating the context
// builder (C4), turn executor (C5) and summary generator (C7) against the
// persistence store and event bus built alongside them.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"symposium/internal/config"
	"symposium/internal/contextbuilder"
	"symposium/internal/domain"
	"symposium/internal/domain/discussion"
	"symposium/internal/eventbus"
	"symposium/internal/llmprovider"
	"symposium/internal/store"
	"symposium/internal/summary"
	"symposium/internal/turnexecutor"
)

// Orchestrator owns every live Discussion and drives its turn loop. A
// Discussion moves from memory-owned (while active or just created) to
// disk-owned once it completes, per spec §3's ownership contract.
type Orchestrator struct {
	store     *store.Store
	bus       *eventbus.Bus
	registry  *llmprovider.Registry
	builder   *contextbuilder.Builder
	summaries *summary.Generator
	tunables  *config.TunablesStore
	logger    *slog.Logger

	mu       sync.Mutex
	memory   map[string]*discussion.Discussion
	active   map[string]struct{}
	running  *runningSet
	cancels  map[string]context.CancelFunc
}

// New wires an Orchestrator from its already-constructed collaborators.
func New(
	st *store.Store,
	bus *eventbus.Bus,
	registry *llmprovider.Registry,
	builder *contextbuilder.Builder,
	summaries *summary.Generator,
	tunables *config.TunablesStore,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:     st,
		bus:       bus,
		registry:  registry,
		builder:   builder,
		summaries: summaries,
		tunables:  tunables,
		logger:    logger,
		memory:    make(map[string]*discussion.Discussion),
		active:    make(map[string]struct{}),
		running:   newRunningSet(),
		cancels:   make(map[string]context.CancelFunc),
	}
}

// Create validates req, constructs a new Discussion with its opening system
// message, persists it and registers it in memory. Status is "created";
// Start must be called separately to begin the turn loop.
func (o *Orchestrator) Create(req discussion.CreateRequest) (*discussion.Discussion, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	d := &discussion.Discussion{
		ID:           uuid.New().String(),
		Topic:        req.Topic,
		Models:       append([]string(nil), req.Models...),
		SummaryModel: req.SummaryModel,
		MaxRounds:    req.MaxRounds,
		Status:       discussion.StatusCreated,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	d.Messages = []discussion.Message{{
		ID:        uuid.New().String(),
		Role:      discussion.RoleSystem,
		Content:   fmt.Sprintf("Discussion about %q begins with participants: %s.", d.Topic, strings.Join(d.Models, ", ")),
		Timestamp: now,
	}}

	if err := o.store.SaveStrict(d); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	o.mu.Lock()
	o.memory[d.ID] = d
	o.mu.Unlock()

	o.bus.Publish(eventbus.Event{Type: eventbus.EventDiscussionCreated, DiscussionID: d.ID, Payload: d.Clone()})
	return d.Clone(), nil
}

// Start transitions a created/stopped discussion to running and launches
// its turn loop in a new goroutine. It never runs the loop on the caller's
// thread (spec §4.6).
func (o *Orchestrator) Start(id string) (*discussion.Discussion, error) {
	o.mu.Lock()
	d, ok := o.memory[id]
	if !ok {
		o.mu.Unlock()
		loaded, err := o.store.Load(id)
		if err != nil {
			return nil, err
		}
		o.mu.Lock()
		if existing, found := o.memory[id]; found {
			d = existing
		} else {
			d = loaded
			o.memory[id] = d
		}
	}
	if d.Status.Active() {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: discussion %s is already active", domain.ErrConflict, id)
	}

	d.Status = discussion.StatusRunning
	d.UpdatedAt = time.Now()
	o.active[id] = struct{}{}

	loopCtx, cancel := context.WithCancel(context.Background())
	o.cancels[id] = cancel
	o.mu.Unlock()

	o.store.Save(d)
	o.bus.Publish(eventbus.Event{Type: eventbus.EventDiscussionStarted, DiscussionID: id, Payload: d.Clone()})

	go o.runLoop(loopCtx, id)

	return d.Clone(), nil
}

// Stop cooperatively halts an active discussion's turn loop. Idempotent:
// calling it on an already-inactive discussion is a no-op.
func (o *Orchestrator) Stop(id string) (*discussion.Discussion, error) {
	o.mu.Lock()
	d, ok := o.memory[id]
	if !ok {
		o.mu.Unlock()
		loaded, err := o.store.Load(id)
		if err != nil {
			return nil, err
		}
		return loaded, nil
	}
	if !d.Status.Active() {
		clone := d.Clone()
		o.mu.Unlock()
		return clone, nil
	}

	d.Status = discussion.StatusStopped
	d.UpdatedAt = time.Now()
	delete(o.active, id)
	if cancel, ok := o.cancels[id]; ok {
		cancel()
		delete(o.cancels, id)
	}
	clone := d.Clone()
	o.mu.Unlock()

	o.store.Save(d)
	o.bus.Publish(eventbus.Event{Type: eventbus.EventDiscussionStopped, DiscussionID: id, Payload: clone})
	return clone, nil
}

// Delete force-stops id if active, removes its models from the running set,
// and deletes it from both memory and disk. It succeeds even if the
// discussion exists only on disk.
func (o *Orchestrator) Delete(id string) error {
	o.mu.Lock()
	d, inMemory := o.memory[id]
	if inMemory {
		delete(o.memory, id)
		delete(o.active, id)
		if cancel, ok := o.cancels[id]; ok {
			cancel()
			delete(o.cancels, id)
		}
	}
	o.mu.Unlock()

	if inMemory {
		o.running.removeAll(d.Models)
	}

	if err := o.store.Delete(id); err != nil {
		return err
	}
	o.bus.Publish(eventbus.Event{Type: eventbus.EventDiscussionDeleted, DiscussionID: id})
	return nil
}

// Get returns the discussion identified by id, preferring the in-memory
// copy; completed discussions are always re-loaded from disk since the
// orchestrator drops them from memory once their summary lands.
func (o *Orchestrator) Get(id string) (*discussion.Discussion, error) {
	o.mu.Lock()
	d, ok := o.memory[id]
	o.mu.Unlock()
	if ok {
		return d.Clone(), nil
	}
	return o.store.Load(id)
}

// List returns every known discussion (in-memory and disk-indexed, deduped
// by id with the in-memory copy winning), sorted by creation time
// descending.
func (o *Orchestrator) List() []discussion.IndexEntry {
	o.mu.Lock()
	memEntries := make(map[string]discussion.IndexEntry, len(o.memory))
	for id, d := range o.memory {
		memEntries[id] = discussion.IndexEntryFrom(d)
	}
	o.mu.Unlock()

	byID := make(map[string]discussion.IndexEntry)
	for _, e := range o.store.List() {
		byID[e.ID] = e
	}
	for id, e := range memEntries {
		byID[id] = e
	}

	out := make([]discussion.IndexEntry, 0, len(byID))
	for _, e := range byID {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// ActiveDiscussions returns a snapshot of the discussions in the active set
// (status running or summarizing, spec §4.3/§4.6), for store.RunAutoSave's
// ActiveSource.
func (o *Orchestrator) ActiveDiscussions() []*discussion.Discussion {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*discussion.Discussion, 0, len(o.active))
	for id := range o.active {
		if d, ok := o.memory[id]; ok {
			out = append(out, d)
		}
	}
	return out
}

// Registry exposes the provider registry for callers outside the turn loop,
// such as the HTTP adapter's model listing and health endpoints.
func (o *Orchestrator) Registry() *llmprovider.Registry {
	return o.registry
}

// contextParams derives contextbuilder.Params from the live tunables, so
// operator changes to maxContextMessages/performance.adaptiveContextSize/
// contextReductionFactor/maxRoundsBeforeReduction take effect on the very
// next turn without a restart.
func (o *Orchestrator) contextParams() contextbuilder.Params {
	t := o.tunables.Get()
	return contextbuilder.Params{
		MaxHistoryMessages: t.MaxContextMessages,
		AdaptiveShrink:     t.Performance.AdaptiveContextSize,
		ShrinkFactor:       t.Performance.ContextReductionFactor,
		ShrinkThreshold:    t.Performance.MaxRoundsBeforeReduction,
	}
}

// turnExecutorOptions derives turnexecutor.Options from the live tunables.
func (o *Orchestrator) turnExecutorOptions() turnexecutor.Options {
	t := o.tunables.Get()
	return turnexecutor.Options{
		MinResponseLength: t.MinResponseLength,
		MaxRetries:        t.MaxRetries,
		TokenEveryN:       t.Performance.TokenBroadcastThrottle,
		TokenInterval:     time.Duration(t.Performance.StreamingUpdateInterval) * time.Millisecond,
		DisableStreaming:  !t.EnableStreaming,
	}
}
