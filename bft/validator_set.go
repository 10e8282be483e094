package bft

import (
	"cmp"
	"slices"

	"github.com/canopy-network/bftsim/lib"
)

// ValidatorSet is the fixed, ordered set of peers taking part in agreement
type ValidatorSet[N cmp.Ordered] struct {
	validators []N // sorted and de-duplicated
}

// NewValidatorSet() creates a validator set from the ids in any order
func NewValidatorSet[N cmp.Ordered](ids []N) (ValidatorSet[N], lib.ErrorI) {
	if len(ids) == 0 {
		return ValidatorSet[N]{}, ErrEmptyValidatorSet()
	}
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	return ValidatorSet[N]{validators: slices.Compact(sorted)}, nil
}

// Len() returns the number of validators
func (v ValidatorSet[N]) Len() int { return len(v.validators) }

// IDs() returns a copy of the sorted validator ids
func (v ValidatorSet[N]) IDs() []N { return slices.Clone(v.validators) }

// Contains() returns true if the id is a validator
func (v ValidatorSet[N]) Contains(id N) bool {
	_, found := slices.BinarySearch(v.validators, id)
	return found
}

// Leader() returns the deterministic round robin leader for the epoch
func (v ValidatorSet[N]) Leader(epoch uint64) N {
	return v.validators[epoch%uint64(len(v.validators))]
}

// MaxFaulty() returns f, the number of byzantine validators a 3f+1 set tolerates
func (v ValidatorSet[N]) MaxFaulty() int { return (len(v.validators) - 1) / 3 }

// Quorum() returns the number of votes needed to make progress: n - f
func (v ValidatorSet[N]) Quorum() int { return len(v.validators) - v.MaxFaulty() }
