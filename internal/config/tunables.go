package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Tunables holds every recognized runtime option from spec §6. It is
// read/written as YAML (mirroring internal/capabilities/registry.go's
// embed+yaml pattern, applied here to operator-tunable knobs instead of a
// static model catalog) and is safe for concurrent GET/PUT, matching the
// `GET|PUT /discussions/performance/config` surface.
type Tunables struct {
	ModelDelayMS       int  `yaml:"modelDelay"`
	EnableStreaming    bool `yaml:"enableStreaming"`
	MaxContextMessages int  `yaml:"maxContextMessages"`
	MaxContextLength   int  `yaml:"maxContextLength"`
	SingleModelMode    bool `yaml:"singleModelMode"`
	MaxRetries         int  `yaml:"maxRetries"`
	MinResponseLength  int  `yaml:"minResponseLength"`

	TokenEstimation struct {
		CharsPerToken float64 `yaml:"charsPerToken"`
		TokensPerWord float64 `yaml:"tokensPerWord"`
	} `yaml:"tokenEstimation"`

	Performance struct {
		AdaptiveContextSize     bool    `yaml:"adaptiveContextSize"`
		ContextReductionFactor  float64 `yaml:"contextReductionFactor"`
		MaxRoundsBeforeReduction int    `yaml:"maxRoundsBeforeReduction"`
		TokenBroadcastThrottle  int     `yaml:"tokenBroadcastThrottle"`
		StreamingUpdateInterval int     `yaml:"streamingUpdateInterval"` // ms
		CacheCleanupInterval    time.Duration `yaml:"cacheCleanupInterval"`
		MemoryCleanupInterval   time.Duration `yaml:"memoryCleanupInterval"`
		MaxCacheSize            int           `yaml:"maxCacheSize"`
	} `yaml:"performance"`
}

// Default returns the documented defaults for every tunable (spec §4.1-4.7).
func Default() Tunables {
	var t Tunables
	t.ModelDelayMS = 50
	t.EnableStreaming = true
	t.MaxContextMessages = 20
	t.MaxContextLength = 8000
	t.SingleModelMode = true
	t.MaxRetries = 2
	t.MinResponseLength = 20
	t.TokenEstimation.CharsPerToken = 2.8
	t.TokenEstimation.TokensPerWord = 1.4
	t.Performance.AdaptiveContextSize = true
	t.Performance.ContextReductionFactor = 0.8
	t.Performance.MaxRoundsBeforeReduction = 5
	t.Performance.TokenBroadcastThrottle = 10
	t.Performance.StreamingUpdateInterval = 200
	t.Performance.CacheCleanupInterval = 5 * time.Minute
	t.Performance.MemoryCleanupInterval = 10 * time.Minute
	t.Performance.MaxCacheSize = 500
	return t
}

// PerformanceMode is one of the presets accepted by
// `POST /discussions/performance/optimize`.
type PerformanceMode string

const (
	ModeFast     PerformanceMode = "fast"
	ModeBalanced PerformanceMode = "balanced"
	ModeQuality  PerformanceMode = "quality"
)

// ApplyPreset mutates t in place toward one of the fast/balanced/quality
// presets; balanced restores Default's performance section,
// MaxContextMessages and MinResponseLength.
func (t *Tunables) ApplyPreset(mode PerformanceMode) error {
	switch mode {
	case ModeFast:
		t.MaxContextMessages = 8
		t.Performance.ContextReductionFactor = 0.6
		t.Performance.MaxRoundsBeforeReduction = 3
		t.Performance.TokenBroadcastThrottle = 20
		t.Performance.StreamingUpdateInterval = 400
		t.MinResponseLength = 10
	case ModeBalanced:
		d := Default()
		t.MaxContextMessages = d.MaxContextMessages
		t.Performance = d.Performance
		t.MinResponseLength = d.MinResponseLength
	case ModeQuality:
		t.MaxContextMessages = 20
		t.Performance.ContextReductionFactor = 0.9
		t.Performance.MaxRoundsBeforeReduction = 8
		t.Performance.TokenBroadcastThrottle = 5
		t.Performance.StreamingUpdateInterval = 100
		t.MinResponseLength = 40
	default:
		return fmt.Errorf("unknown performance mode %q", mode)
	}
	return nil
}

// TunablesStore guards a live Tunables value behind a mutex and persists it
// as YAML so operators can hand-edit it between restarts.
type TunablesStore struct {
	mu   sync.RWMutex
	path string
	cur  Tunables
}

// NewTunablesStore loads path if present, otherwise seeds it with defaults.
func NewTunablesStore(path string) (*TunablesStore, error) {
	s := &TunablesStore{path: path, cur: Default()}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, s.save()
		}
		return nil, fmt.Errorf("read tunables: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.cur); err != nil {
		return nil, fmt.Errorf("parse tunables: %w", err)
	}
	return s, nil
}

// Get returns a copy of the current tunables.
func (s *TunablesStore) Get() Tunables {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Set replaces the tunables and persists them.
func (s *TunablesStore) Set(t Tunables) error {
	s.mu.Lock()
	s.cur = t
	s.mu.Unlock()
	return s.save()
}

// Optimize applies a named preset and persists the result.
func (s *TunablesStore) Optimize(mode PerformanceMode) (Tunables, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cur.ApplyPreset(mode); err != nil {
		return Tunables{}, err
	}
	return s.cur, s.saveLocked()
}

// save acquires the read lock and persists s.cur. Callers already holding
// s.mu (in either mode) must call saveLocked instead.
func (s *TunablesStore) save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveLocked()
}

// saveLocked marshals and writes s.cur without taking s.mu; the caller must
// already hold it (read or write).
func (s *TunablesStore) saveLocked() error {
	data, err := yaml.Marshal(s.cur)
	if err != nil {
		return fmt.Errorf("marshal tunables: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write tunables: %w", err)
	}
	return nil
}
