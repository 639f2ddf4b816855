package domain

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

// WeightSumTolerance is how far an edited weight set may stray from 100.
const WeightSumTolerance = 0.01

var ErrWeightSum = errors.New("weights must sum to 100")

var validate = validator.New()

// Validate checks a trackable item before it enters a settings document.
func (it TrackableItem) Validate() error {
	if err := validate.Struct(it); err != nil {
		return fmt.Errorf("invalid item %q: %w", it.Key, err)
	}
	return nil
}

// Validate checks a chapter; the paper must be 1 or 2 and the id may not
// contain the key separator.
func (c Chapter) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid chapter %q: %w", c.ID, err)
	}
	return nil
}

// Validate checks a subject and all of its chapters.
func (s Subject) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid subject %q: %w", s.Key, err)
	}
	return nil
}

// Validate checks a named progress bar.
func (b ProgressBar) Validate() error {
	if err := validate.Struct(b); err != nil {
		return fmt.Errorf("invalid progress bar %q: %w", b.Name, err)
	}
	return nil
}

// ValidateWeightEdit enforces the edit-time rule for weights: every weight is
// non-negative and the set sums to 100 within WeightSumTolerance. The
// calculators never call this; they normalize whatever they are given.
func ValidateWeightEdit(w WeightMap) error {
	for k, v := range w {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("weight %q: %v is not a non-negative number", k, v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-100) > WeightSumTolerance {
		return fmt.Errorf("%w (got %.2f)", ErrWeightSum, sum)
	}
	return nil
}
