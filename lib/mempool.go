package lib

import (
	"container/list"
	"sync"
)

/* This file defines and implements a pool that maintains an ordered list of 'pending to be finalized' contributions in memory */

// ContributionPool is an in-memory, first-in-first-out, de-duplicated store of contributions not yet finalized in a batch
type ContributionPool[C Contribution] struct {
	l        sync.RWMutex        // for thread safety
	pool     *list.List          // the actual pool of contributions in arrival order
	m        map[C]*list.Element // O(1) de-duplication and removal
	bytes    int                 // collective number of bytes in the pool
	maxCount int                 // the maximum number of contributions the pool holds
	maxBytes uint64              // the size limit of a single contribution
}

// NewContributionPool() creates a new pool sized by the engine configuration
func NewContributionPool[C Contribution](config EngineConfig) *ContributionPool[C] {
	return &ContributionPool[C]{
		pool:     list.New(),
		m:        make(map[C]*list.Element),
		maxCount: config.MaxPendingContributions,
		maxBytes: config.MaxContributionBytes,
	}
}

// Add() inserts a new contribution at the back of the pool
// added is false (without error) if the contribution is already pending
func (p *ContributionPool[C]) Add(c C) (added bool, err ErrorI) {
	// lock the pool for thread safety
	p.l.Lock()
	// when the function finishes unlock the pool
	defer p.l.Unlock()
	// check for a duplicate
	if _, found := p.m[c]; found {
		return false, nil
	}
	// ensure the size of the contribution doesn't exceed the individual limit
	size := len(c.Bytes())
	if p.maxBytes != 0 && uint64(size) > p.maxBytes {
		return false, ErrContributionTooLarge(size, p.maxBytes)
	}
	// ensure the pool isn't full
	if p.maxCount > 0 && p.pool.Len() >= p.maxCount {
		return false, ErrPoolFull(p.maxCount)
	}
	// insert into the pool and the de-duplication map
	p.m[c] = p.pool.PushBack(c)
	// update the number of bytes
	p.bytes += size
	return true, nil
}

// Contains() returns whether the contribution is pending
func (p *ContributionPool[C]) Contains(c C) bool {
	p.l.RLock()
	defer p.l.RUnlock()
	_, found := p.m[c]
	return found
}

// Take() returns up to max contributions from the front of the pool without removing them
func (p *ContributionPool[C]) Take(max int) (contributions []C) {
	p.l.RLock()
	defer p.l.RUnlock()
	for e := p.pool.Front(); e != nil && len(contributions) < max; e = e.Next() {
		contributions = append(contributions, e.Value.(C))
	}
	return
}

// Remove() deletes the contributions (if pending) from the pool
func (p *ContributionPool[C]) Remove(contributions ...C) {
	p.l.Lock()
	defer p.l.Unlock()
	for _, c := range contributions {
		e, found := p.m[c]
		if !found {
			continue
		}
		p.pool.Remove(e)
		delete(p.m, c)
		p.bytes -= len(c.Bytes())
	}
}

// Count() returns the number of pending contributions
func (p *ContributionPool[C]) Count() int {
	p.l.RLock()
	defer p.l.RUnlock()
	return p.pool.Len()
}

// Bytes() returns the collective number of bytes pending
func (p *ContributionPool[C]) Bytes() int {
	p.l.RLock()
	defer p.l.RUnlock()
	return p.bytes
}

// Clear() resets the entire pool
func (p *ContributionPool[C]) Clear() {
	p.l.Lock()
	defer p.l.Unlock()
	p.pool.Init()
	p.m = make(map[C]*list.Element)
	p.bytes = 0
}
