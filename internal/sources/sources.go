// Package sources adapts the external question collaborators (flashcards,
// JLPT drills, the shared question bank) into canonical question pools for
// the sampler.
package sources

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kotoba-labs/classroom-engine/internal/bank"
	"github.com/kotoba-labs/classroom-engine/internal/sampler"
)

// Provider supplies a question pool for one source kind at a proficiency
// level. Providers are read-only; difficulty tags are reassigned by the
// sampler.
type Provider interface {
	Kind() sampler.SourceKind
	Questions(ctx context.Context, level string) ([]bank.Question, error)
}

// Registry resolves providers by kind.
type Registry struct {
	providers map[sampler.SourceKind]Provider
}

func NewRegistry(ps ...Provider) *Registry {
	r := &Registry{providers: make(map[sampler.SourceKind]Provider, len(ps))}
	for _, p := range ps {
		r.providers[p.Kind()] = p
	}
	return r
}

func (r *Registry) Get(kind sampler.SourceKind) (Provider, bool) {
	p, ok := r.providers[kind]
	return p, ok
}

// Pools resolves the enabled source kinds into sampler sources with their
// pools loaded.
func (r *Registry) Pools(ctx context.Context, level string, enabled map[sampler.SourceKind]float64) ([]sampler.Source, error) {
	// fixed iteration order so allocation remainders land deterministically
	order := []sampler.SourceKind{sampler.SourceFlashcard, sampler.SourceBank, sampler.SourceTemplate}
	var out []sampler.Source
	for _, kind := range order {
		pct, on := enabled[kind]
		if !on {
			continue
		}
		p, ok := r.providers[kind]
		if !ok {
			return nil, fmt.Errorf("no provider for source %q", kind)
		}
		pool, err := p.Questions(ctx, level)
		if err != nil {
			return nil, fmt.Errorf("load %s pool: %w", kind, err)
		}
		out = append(out, sampler.Source{Kind: kind, MixPercent: pct, Pool: pool})
	}
	return out, nil
}

// FlashcardProvider reads the flashcard collaborator's records and converts
// them to free-text questions.
type FlashcardProvider struct {
	db         *sql.DB
	difficulty bank.Difficulty
}

func NewFlashcardProvider(db *sql.DB) *FlashcardProvider {
	return &FlashcardProvider{db: db, difficulty: bank.DifficultyMedium}
}

func (p *FlashcardProvider) Kind() sampler.SourceKind { return sampler.SourceFlashcard }

func (p *FlashcardProvider) Questions(ctx context.Context, level string) ([]bank.Question, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, front, back, hint FROM flashcards WHERE level=$1 ORDER BY id`, level)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []bank.Question
	for rows.Next() {
		var c bank.Flashcard
		var hint sql.NullString
		if err := rows.Scan(&c.ID, &c.Front, &c.Back, &hint); err != nil {
			return nil, err
		}
		c.Hint = hint.String
		out = append(out, bank.FromFlashcard(c, p.difficulty))
	}
	return out, rows.Err()
}

// BankProvider reads the shared question bank (JLPT drills included).
type BankProvider struct {
	db         *sql.DB
	difficulty bank.Difficulty
}

func NewBankProvider(db *sql.DB) *BankProvider {
	return &BankProvider{db: db, difficulty: bank.DifficultyMedium}
}

func (p *BankProvider) Kind() sampler.SourceKind { return sampler.SourceBank }

func (p *BankProvider) Questions(ctx context.Context, level string) ([]bank.Question, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, prompt, options_json, correct_answer, points, explanation
		 FROM bank_questions WHERE level=$1 ORDER BY id`, level)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []bank.Question
	for rows.Next() {
		var b bank.BankQuestion
		var optsJSON, explanation sql.NullString
		if err := rows.Scan(&b.ID, &b.Prompt, &optsJSON, &b.CorrectAnswer, &b.Points, &explanation); err != nil {
			return nil, err
		}
		if optsJSON.Valid && optsJSON.String != "" {
			if err := json.Unmarshal([]byte(optsJSON.String), &b.Options); err != nil {
				return nil, fmt.Errorf("bank question %s options: %w", b.ID, err)
			}
		}
		b.Explanation = explanation.String
		out = append(out, bank.FromBankQuestion(b, p.difficulty))
	}
	return out, rows.Err()
}

// TemplateProvider serves questions straight out of a stored template; the
// lookup is injected so this package stays free of the store dependency.
type TemplateProvider struct {
	load func(ctx context.Context, level string) ([]bank.Question, error)
}

func NewTemplateProvider(load func(ctx context.Context, level string) ([]bank.Question, error)) *TemplateProvider {
	return &TemplateProvider{load: load}
}

func (p *TemplateProvider) Kind() sampler.SourceKind { return sampler.SourceTemplate }

func (p *TemplateProvider) Questions(ctx context.Context, level string) ([]bank.Question, error) {
	return p.load(ctx, level)
}
