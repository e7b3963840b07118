// Package runner issues a script of book statements one at a time and hands each outcome to a Sink.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"bookq/internal/book"

	"github.com/google/uuid"
)

// Policy decides what happens to the rest of a script after a statement fails.
type Policy int

const (
	// PolicyHalt stops at the first failure.
	PolicyHalt Policy = iota
	// PolicyContinue records the failure and moves on.
	PolicyContinue
)

func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "halt":
		return PolicyHalt, nil
	case "continue":
		return PolicyContinue, nil
	}
	return PolicyHalt, fmt.Errorf("unknown error policy %q", s)
}

func (p Policy) String() string {
	if p == PolicyContinue {
		return "continue"
	}
	return "halt"
}

// Sink receives every outcome, failed or not, before the next statement starts.
type Sink interface {
	Write(Outcome) error
}

type Summary struct {
	RunID     string        `json:"run_id"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
}

type Runner struct {
	store      book.Store
	sink       Sink
	policy     Policy
	collection string
	now        func() time.Time
}

func New(store book.Store, sink Sink, policy Policy, collection string) *Runner {
	return &Runner{
		store:      store,
		sink:       sink,
		policy:     policy,
		collection: collection,
		now:        time.Now,
	}
}

// Run executes statements strictly in order. Under PolicyHalt the first failure is
// returned and the remaining statements are skipped; under PolicyContinue every failure
// is joined into the returned error.
func (r *Runner) Run(ctx context.Context, statements []Statement) (Summary, error) {
	summary := Summary{RunID: uuid.NewString(), Total: len(statements)}
	start := r.now()

	log.Printf("run start run_id=%s statements=%d policy=%s", summary.RunID, len(statements), r.policy)

	var errs []error
	for i, st := range statements {
		if err := ctx.Err(); err != nil {
			summary.Skipped = len(statements) - i
			errs = append(errs, err)
			break
		}

		out := r.execute(ctx, st)
		if out.Err != nil {
			summary.Failed++
			log.Printf("statement failed run_id=%s name=%s error=%v", summary.RunID, st.Name, out.Err)
		} else {
			summary.Succeeded++
		}

		if err := r.sink.Write(out); err != nil {
			summary.Skipped = len(statements) - i - 1
			errs = append(errs, fmt.Errorf("write outcome of %q: %w", st.Name, err))
			break
		}

		if out.Err != nil {
			errs = append(errs, fmt.Errorf("statement %q: %w", st.Name, out.Err))
			if r.policy == PolicyHalt {
				summary.Skipped = len(statements) - i - 1
				break
			}
		}
	}

	summary.Duration = r.now().Sub(start)
	log.Printf("run done run_id=%s succeeded=%d failed=%d skipped=%d duration_ms=%d",
		summary.RunID, summary.Succeeded, summary.Failed, summary.Skipped, summary.Duration.Milliseconds())
	return summary, errors.Join(errs...)
}

func (r *Runner) execute(ctx context.Context, st Statement) Outcome {
	out := Outcome{
		Statement: st.Name,
		Kind:      st.Op.Kind(),
		Command:   st.Op.Command(r.collection),
	}
	started := r.now()
	out.Err = st.Op.Run(ctx, r.store, &out)
	out.Duration = r.now().Sub(started)
	return out
}
