package simulator

import (
	"strconv"

	"github.com/canopy-network/bftsim/bft"
	"github.com/canopy-network/bftsim/lib"
	"github.com/canopy-network/bftsim/session"
)

// NewNetwork() builds a simulator of config.NodeCount reference engines with ids 0..n-1 and crashes config.FaultyNodes
func NewNetwork(config lib.Config, metrics *lib.Metrics, log lib.LoggerI) (*Simulator[lib.Transaction, uint64], lib.ErrorI) {
	if err := config.Check(); err != nil {
		return nil, err
	}
	if log == nil {
		log = lib.NewNullLogger()
	}
	sessions, err := NewSessions(config, metrics, log)
	if err != nil {
		return nil, err
	}
	sim, err := New(sessions, config.SimulatorConfig, metrics, log)
	if err != nil {
		return nil, err
	}
	for _, id := range config.FaultyNodes {
		if err = sim.Crash(id); err != nil {
			return nil, err
		}
	}
	return sim, nil
}

// NewSessions() creates one session over a reference engine for each of the config.NodeCount validators
func NewSessions(config lib.Config, metrics *lib.Metrics, log lib.LoggerI) ([]*session.Session[lib.Transaction, uint64], lib.ErrorI) {
	ids := make([]uint64, config.NodeCount)
	for i := range ids {
		ids[i] = uint64(i)
	}
	sessions := make([]*session.Session[lib.Transaction, uint64], 0, len(ids))
	for _, id := range ids {
		engine, err := bft.New[lib.Transaction](id, ids, config.EngineConfig, log.Named("engine").Named(nodeName(id)))
		if err != nil {
			return nil, err
		}
		ss, err := session.New[lib.Transaction, uint64](id, engine, metrics, log)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, ss)
	}
	return sessions, nil
}

func nodeName(id uint64) string { return "node " + strconv.FormatUint(id, 10) }
