// Package safety holds the shared safety state: the latest human detection,
// the operator's weight readings and the alert condition derived from both.
package safety

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"CraneGuard/internal/entity"
)

const loadWarningPercent = 80

var ErrInvalidWeight = errors.New("invalid weight input")

type Config struct {
	InitialCurrentWeight float64
	InitialMaxWeight     float64
	MinMaxWeight         float64
	MaxMaxWeight         float64
}

func DefaultConfig() Config {
	return Config{
		InitialCurrentWeight: 5000,
		InitialMaxWeight:     10000,
		MinMaxWeight:         100,
		MaxMaxWeight:         100000,
	}
}

type State struct {
	mu            sync.RWMutex
	detection     entity.DetectionResult
	currentWeight float64
	maxWeight     float64
	minMax        float64
	maxMax        float64
	updatedAt     time.Time

	subMu   sync.Mutex
	subs    map[int]chan entity.SafetySnapshot
	nextSub int
	closed  bool
}

func New(cfg Config) (*State, error) {
	if cfg.MinMaxWeight <= 0 || cfg.MaxMaxWeight < cfg.MinMaxWeight {
		return nil, fmt.Errorf("%w: max weight range [%v, %v]", ErrInvalidWeight, cfg.MinMaxWeight, cfg.MaxMaxWeight)
	}
	if err := checkWeight(cfg.InitialCurrentWeight); err != nil {
		return nil, err
	}
	if err := checkWeight(cfg.InitialMaxWeight); err != nil {
		return nil, err
	}

	return &State{
		currentWeight: cfg.InitialCurrentWeight,
		maxWeight:     clamp(cfg.InitialMaxWeight, cfg.MinMaxWeight, cfg.MaxMaxWeight),
		minMax:        cfg.MinMaxWeight,
		maxMax:        cfg.MaxMaxWeight,
		updatedAt:     time.Now(),
		subs:          make(map[int]chan entity.SafetySnapshot),
	}, nil
}

func (s *State) Snapshot() entity.SafetySnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *State) snapshotLocked() entity.SafetySnapshot {
	overload := s.currentWeight > s.maxWeight
	load := 0.0
	if s.maxWeight > 0 {
		load = s.currentWeight / s.maxWeight * 100
	}

	return entity.SafetySnapshot{
		HumanDetected:  s.detection.HumanDetected,
		HumanCount:     s.detection.HumanCount,
		Confidence:     s.detection.Confidence,
		Details:        s.detection.Details,
		CurrentWeight:  s.currentWeight,
		MaxWeight:      s.maxWeight,
		WeightOverload: overload,
		LoadPercentage: math.Round(load*10) / 10,
		LoadWarning:    !overload && load > loadWarningPercent,
		HasAlert:       s.detection.HumanDetected || overload,
		UpdatedAt:      s.updatedAt,
	}
}

// ApplyDetection commits a detection result. The result is normalized first so
// the human fields never disagree with each other.
func (s *State) ApplyDetection(result entity.DetectionResult) entity.SafetySnapshot {
	return s.update(func() {
		s.detection = result.Normalize()
	})
}

// ResetHumans puts the human fields back to the "no humans" default while
// keeping the weight readings.
func (s *State) ResetHumans() entity.SafetySnapshot {
	return s.update(func() {
		s.detection = entity.DetectionResult{}
	})
}

func (s *State) SetCurrentWeight(weight float64) (entity.SafetySnapshot, error) {
	if err := checkWeight(weight); err != nil {
		return s.Snapshot(), err
	}
	return s.update(func() {
		s.currentWeight = weight
	}), nil
}

// SetMaxWeight stores the crane capacity clamped to the configured range.
func (s *State) SetMaxWeight(weight float64) (entity.SafetySnapshot, error) {
	if err := checkWeight(weight); err != nil {
		return s.Snapshot(), err
	}
	return s.update(func() {
		s.maxWeight = clamp(weight, s.minMax, s.maxMax)
	}), nil
}

func (s *State) MaxWeightRange() (float64, float64) {
	return s.minMax, s.maxMax
}

func (s *State) update(mutate func()) entity.SafetySnapshot {
	s.mu.Lock()
	mutate()
	s.updatedAt = time.Now()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
	return snap
}

func checkWeight(weight float64) error {
	if math.IsNaN(weight) || math.IsInf(weight, 0) {
		return fmt.Errorf("%w: %v is not a number", ErrInvalidWeight, weight)
	}
	if weight < 0 {
		return fmt.Errorf("%w: %v is negative", ErrInvalidWeight, weight)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
