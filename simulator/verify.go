package simulator

import (
	"cmp"

	"github.com/canopy-network/bftsim/lib"
	"github.com/canopy-network/bftsim/session"
)

// CheckAgreement() verifies the safety of the run: every honest member finalized strictly increasing epochs, and any
// two honest members that both finalized an epoch finalized the same batch for it
func (s *Simulator[C, N]) CheckAgreement() lib.ErrorI {
	live := make([]*session.Session[C, N], 0, len(s.order))
	for _, id := range s.LiveNodes() {
		live = append(live, s.sessions[id])
	}
	return CheckAgreement(live...)
}

// CheckAgreement() verifies epoch monotonicity and per epoch agreement over the finalized batches of the sessions
func CheckAgreement[C lib.Contribution, N cmp.Ordered](sessions ...*session.Session[C, N]) lib.ErrorI {
	type reference struct {
		node  N
		batch lib.Batch[C]
	}
	agreed := make(map[uint64]reference)
	for _, ss := range sessions {
		batches := ss.Batches()
		for i, batch := range batches {
			if i > 0 && batch.Epoch <= batches[i-1].Epoch {
				return ErrNonMonotonicEpoch(ss.ID(), batches[i-1].Epoch, batch.Epoch)
			}
			ref, found := agreed[batch.Epoch]
			if !found {
				agreed[batch.Epoch] = reference{node: ss.ID(), batch: batch}
				continue
			}
			if !ref.batch.Equal(batch) {
				return ErrAgreementViolation(batch.Epoch, ref.node, ss.ID())
			}
		}
	}
	return nil
}

// CommonEpochs() returns the number of batches every live member has finalized
func (s *Simulator[C, N]) CommonEpochs() (min int) {
	min = -1
	for _, id := range s.LiveNodes() {
		if count := s.sessions[id].BatchCount(); min == -1 || count < min {
			min = count
		}
	}
	if min < 0 {
		return 0
	}
	return
}
