package identifier

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrPoolExhausted is returned when 100 candidate generations in a row all
// collide with an already-assigned value (spec §4.2).
var ErrPoolExhausted = errors.New("identifier: IDENTIFIER_POOL_EXHAUSTED")

const maxAllocationAttempts = 100

// Service allocates and validates identifier values under a namespace,
// serializing candidate-generation-then-uniqueness-check per (namespace,
// type) as spec §5 requires.
type Service struct {
	repo Repository

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
	rngMu sync.Mutex
	rng   *rand.Rand

	// digitSource produces n decimal digits for a fixed-prefix candidate.
	// Overridable so tests can drive a deterministic candidate sequence
	// (spec §8 scenario 5) without depending on math/rand's exact stream.
	digitSource func(n int) string
}

// NewService builds a Service with a time-seeded RNG.
func NewService(repo Repository) *Service {
	s := &Service{
		repo:  repo,
		locks: make(map[uuid.UUID]*sync.Mutex),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.digitSource = s.randomDigits
	return s
}

// SetDigitSource overrides candidate digit generation, used by tests that
// need a deterministic candidate sequence rather than math/rand's stream.
func (s *Service) SetDigitSource(f func(n int) string) {
	s.digitSource = f
}

// SeedRNG replaces the service's random source, used by tests that need a
// deterministic candidate sequence (spec §8 scenario 5).
func (s *Service) SeedRNG(seed int64) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	s.rng = rand.New(rand.NewSource(seed))
}

func (s *Service) lockFor(namespaceID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[namespaceID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[namespaceID] = l
	}
	return l
}

// AllocationResult carries the allocated value plus how many collisions
// were retried before success.
type AllocationResult struct {
	Value      string
	Collisions int
}

// Allocate produces and persists a fresh value in namespace ns. overridePattern,
// if non-empty, replaces the namespace's configured prefix pattern for this
// call only. INS namespaces never generate a value here — they are accepted
// from the wire or rejected by the caller.
func (s *Service) Allocate(ctx context.Context, ns *Namespace, overridePattern string) (*AllocationResult, error) {
	if ns.Type == TypeINS {
		return nil, fmt.Errorf("identifier: INS values are never generated, only accepted from the wire")
	}

	lock := s.lockFor(ns.ID)
	lock.Lock()
	defer lock.Unlock()

	collisions := 0
	for attempt := 0; attempt < maxAllocationAttempts; attempt++ {
		candidate, err := s.generate(ns, overridePattern)
		if err != nil {
			return nil, err
		}

		assigned, err := s.repo.IsAssigned(ctx, ns.Type, ns.SystemURI, candidate)
		if err != nil {
			return nil, fmt.Errorf("check assignment: %w", err)
		}
		if assigned {
			collisions++
			continue
		}

		alloc := &Allocation{
			NamespaceID: ns.ID,
			Type:        ns.Type,
			SystemURI:   ns.SystemURI,
			Value:       candidate,
		}
		if err := s.repo.RecordAllocation(ctx, alloc); err != nil {
			if errors.Is(err, ErrAlreadyAssigned) {
				collisions++
				continue
			}
			return nil, fmt.Errorf("record allocation: %w", err)
		}

		return &AllocationResult{Value: candidate, Collisions: collisions}, nil
	}

	return nil, ErrPoolExhausted
}

// Validate reports whether value is a syntactically and administratively
// acceptable value for namespace ns — for fixed-prefix namespaces, the
// literal prefix and digit-count must match; for range namespaces, value
// must parse as an integer within [min, max]; for external/INS namespaces
// any non-empty value is accepted.
func (s *Service) Validate(ns *Namespace, value string) bool {
	if value == "" {
		return false
	}
	switch ns.GenerationMode {
	case ModeFixedPrefixPattern:
		if ns.PrefixPattern == nil {
			return false
		}
		prefix, digits := splitPattern(*ns.PrefixPattern)
		if !strings.HasPrefix(value, prefix) {
			return false
		}
		rest := value[len(prefix):]
		if len(rest) != digits {
			return false
		}
		for _, r := range rest {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	case ModeNumericRange:
		if ns.RangeMin == nil || ns.RangeMax == nil {
			return false
		}
		var n int64
		if _, err := fmt.Sscanf(value, "%d", &n); err != nil {
			return false
		}
		return n >= *ns.RangeMin && n <= *ns.RangeMax
	default:
		return true
	}
}

// EstimateAvailable returns a lower-bound estimate of how many values
// remain unallocated in ns. For range mode this is exact; for prefix-pattern
// mode it is the size of the digit space minus assigned count.
func (s *Service) EstimateAvailable(ctx context.Context, ns *Namespace) (int64, error) {
	assigned, err := s.repo.CountAssigned(ctx, ns.ID)
	if err != nil {
		return 0, err
	}

	switch ns.GenerationMode {
	case ModeNumericRange:
		if ns.RangeMin == nil || ns.RangeMax == nil {
			return 0, nil
		}
		total := *ns.RangeMax - *ns.RangeMin + 1
		return total - assigned, nil
	case ModeFixedPrefixPattern:
		if ns.PrefixPattern == nil {
			return 0, nil
		}
		_, digits := splitPattern(*ns.PrefixPattern)
		var total int64 = 1
		for i := 0; i < digits; i++ {
			total *= 10
		}
		return total - assigned, nil
	default:
		return 0, nil
	}
}

// generate produces one candidate value per ns's generation mode.
func (s *Service) generate(ns *Namespace, overridePattern string) (string, error) {
	switch ns.GenerationMode {
	case ModeFixedPrefixPattern:
		pattern := overridePattern
		if pattern == "" {
			if ns.PrefixPattern == nil {
				return "", fmt.Errorf("identifier: namespace %s has no prefix pattern configured", ns.Type)
			}
			pattern = *ns.PrefixPattern
		}
		prefix, digits := splitPattern(pattern)
		return prefix + s.digitSource(digits), nil
	case ModeNumericRange:
		if ns.RangeMin == nil || ns.RangeMax == nil {
			return "", fmt.Errorf("identifier: namespace %s has no range configured", ns.Type)
		}
		s.rngMu.Lock()
		n := *ns.RangeMin + s.rng.Int63n(*ns.RangeMax-*ns.RangeMin+1)
		s.rngMu.Unlock()
		return fmt.Sprintf("%d", n), nil
	default:
		return "", fmt.Errorf("identifier: generation mode %q does not produce candidates", ns.GenerationMode)
	}
}

// splitPattern parses a pattern like "9..." into its literal prefix ("9")
// and the count of trailing dots (3), each dot standing for one random
// decimal digit.
func splitPattern(pattern string) (prefix string, digits int) {
	idx := strings.IndexByte(pattern, '.')
	if idx == -1 {
		return pattern, 0
	}
	return pattern[:idx], len(pattern) - idx
}

func (s *Service) randomDigits(n int) string {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteByte(byte('0' + s.rng.Intn(10)))
	}
	return b.String()
}
