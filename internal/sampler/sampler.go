// Package sampler generates question sets from weighted sources with an exact
// total-point budget. All functions are pure over value slices; randomness is
// injected so tests can seed it.
package sampler

import (
	"math"
	"math/rand"
	"time"

	"github.com/kotoba-labs/classroom-engine/internal/bank"
	"github.com/kotoba-labs/classroom-engine/internal/enginerr"
)

type SourceKind string

const (
	SourceFlashcard SourceKind = "flashcard"
	SourceBank      SourceKind = "bank"
	SourceTemplate  SourceKind = "template"
)

// Source is an enabled question pool with its share of the generated set.
// MixPercent values are normalized across the request's sources, so callers
// may pass raw weights.
type Source struct {
	Kind       SourceKind
	MixPercent float64
	Pool       []bank.Question
}

// DifficultyMix gives the easy/medium/hard split for mixed-difficulty
// generation. The three values must sum to 100.
type DifficultyMix struct {
	Easy   float64 `json:"easy"`
	Medium float64 `json:"medium"`
	Hard   float64 `json:"hard"`
}

// Request describes one generation run. Exactly one of Difficulty (fixed tag
// for every question) or Mix must be set.
type Request struct {
	Count       int
	TotalPoints float64
	Sources     []Source
	Difficulty  bank.Difficulty
	Mix         *DifficultyMix
}

// Available sums pool sizes across sources.
func Available(sources []Source) int {
	n := 0
	for _, s := range sources {
		n += len(s.Pool)
	}
	return n
}

// Normalize rescales percentages to sum to 100. A zero-sum input is returned
// unchanged; Generate rejects that case separately.
func Normalize(percents []float64) []float64 {
	var sum float64
	for _, p := range percents {
		sum += p
	}
	out := make([]float64, len(percents))
	if sum == 0 {
		copy(out, percents)
		return out
	}
	for i, p := range percents {
		out[i] = p / sum * 100
	}
	return out
}

// Allocations splits n across percentage shares. Every share but the last is
// rounded, capped at what is still unallocated; the last takes the remainder
// so the sum is exactly n and no entry goes negative.
func Allocations(percents []float64, n int) []int {
	out := make([]int, len(percents))
	used := 0
	for i, p := range percents {
		if i == len(percents)-1 {
			out[i] = n - used
			break
		}
		share := int(math.Round(p / 100 * float64(n)))
		if share > n-used {
			share = n - used
		}
		out[i] = share
		used += share
	}
	return out
}

func (r Request) validate() error {
	if len(r.Sources) == 0 {
		return enginerr.Validationf("no question source enabled")
	}
	if r.Count <= 0 {
		return enginerr.Validationf("question count must be positive, got %d", r.Count)
	}
	if r.TotalPoints <= 0 {
		return enginerr.Validationf("total points must be positive, got %v", r.TotalPoints)
	}
	if r.Mix != nil && r.Difficulty != "" {
		return enginerr.Validationf("set either a fixed difficulty or a mix, not both")
	}
	if r.Mix == nil && r.Difficulty == "" {
		return enginerr.Validationf("a fixed difficulty or a mix is required")
	}
	if r.Mix != nil {
		sum := r.Mix.Easy + r.Mix.Medium + r.Mix.Hard
		if math.Abs(sum-100) > 1e-9 {
			return enginerr.Validationf("difficulty mix must sum to 100, got %v", sum)
		}
	}
	if avail := Available(r.Sources); avail < r.Count {
		return &enginerr.InsufficientPoolError{Requested: r.Count, Available: avail}
	}
	return nil
}

// Generate produces a shuffled question set of exactly r.Count questions
// whose points sum to exactly r.TotalPoints.
//
// Per-question points start at round(TotalPoints/Count); after the final
// shuffle the last question's points are adjusted to close any rounding
// drift, so that one question may carry a non-uniform value.
func Generate(r Request, rng *rand.Rand) ([]bank.Question, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	percents := make([]float64, len(r.Sources))
	for i, s := range r.Sources {
		percents[i] = s.MixPercent
	}
	allocs := Allocations(Normalize(percents), r.Count)
	perPoints := math.Round(r.TotalPoints / float64(r.Count))

	drawn := make([]bank.Question, 0, r.Count)
	leftover := make([][]bank.Question, len(r.Sources))
	for i, src := range r.Sources {
		pool := bank.Clone(src.Pool)
		rng.Shuffle(len(pool), func(a, b int) { pool[a], pool[b] = pool[b], pool[a] })
		take := allocs[i]
		if take > len(pool) {
			take = len(pool)
		}
		drawn = append(drawn, pool[:take]...)
		leftover[i] = pool[take:]
	}
	// A source whose pool ran short of its share leaves the deficit to the
	// others, in order, so the set still reaches r.Count whenever the
	// combined pools can cover it.
	for i := 0; len(drawn) < r.Count && i < len(leftover); i++ {
		need := r.Count - len(drawn)
		if need > len(leftover[i]) {
			need = len(leftover[i])
		}
		drawn = append(drawn, leftover[i][:need]...)
	}
	for i := range drawn {
		drawn[i].Points = perPoints
		drawn[i].Difficulty = r.drawDifficulty(rng)
	}

	// Hide source grouping.
	rng.Shuffle(len(drawn), func(a, b int) { drawn[a], drawn[b] = drawn[b], drawn[a] })

	// Force the exact point budget onto the last question.
	if n := len(drawn); n > 0 {
		var sum float64
		for _, q := range drawn[:n-1] {
			sum += q.Points
		}
		drawn[n-1].Points = r.TotalPoints - sum
	}
	return drawn, nil
}

func (r Request) drawDifficulty(rng *rand.Rand) bank.Difficulty {
	if r.Mix == nil {
		return r.Difficulty
	}
	u := rng.Float64() * 100
	switch {
	case u < r.Mix.Easy:
		return bank.DifficultyEasy
	case u < r.Mix.Easy+r.Mix.Medium:
		return bank.DifficultyMedium
	default:
		return bank.DifficultyHard
	}
}
