package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/canopy-network/bftsim/lib"
	"github.com/canopy-network/bftsim/p2p"
	"github.com/canopy-network/bftsim/session"
	"github.com/canopy-network/bftsim/simulator"
	"github.com/canopy-network/bftsim/store"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the deterministic, single threaded network simulation",
	Run: func(cmd *cobra.Command, args []string) {
		applyFlags(cmd, &config)
		writeToConsole(finish(runSimulation(config, epochsFor(config), l)))
	},
}

var p2pCmd = &cobra.Command{
	Use:   "p2p",
	Short: "Run the same scenario with every peer on its own goroutine",
	Run: func(cmd *cobra.Command, args []string) {
		applyFlags(cmd, &config)
		writeToConsole(finish(runP2P(config, epochsFor(config), l)))
	},
}

// runFlags are the command line overrides of the config file
type runFlags struct {
	nodes, txns, txnBytes, batchSize, epochs, timeoutMS int
	faulty                                              []uint
	stepBudget, retries                                 uint64
	persist, metrics, wait                              bool
}

var flags runFlags

func init() {
	for _, cmd := range []*cobra.Command{simulateCmd, p2pCmd} {
		cmd.Flags().IntVar(&flags.nodes, "nodes", 0, "number of simulated peers")
		cmd.Flags().IntVar(&flags.txns, "txns", 0, "number of random contributions submitted to every peer")
		cmd.Flags().IntVar(&flags.txnBytes, "txn-bytes", 0, "size of each random contribution")
		cmd.Flags().IntVar(&flags.batchSize, "batch-size", 0, "contributions per batch")
		cmd.Flags().IntVar(&flags.epochs, "epochs", 0, "batches every live peer must finalize (default txns/batch-size)")
		cmd.Flags().UintSliceVar(&flags.faulty, "faulty", nil, "ids of peers crashed before the run")
		cmd.Flags().BoolVar(&flags.persist, "persist", false, "write the finalized batches to the ledger")
		cmd.Flags().BoolVar(&flags.metrics, "metrics", false, "serve prometheus metrics")
		cmd.Flags().BoolVar(&flags.wait, "wait", false, "keep the metrics server up until a kill signal is received")
	}
	simulateCmd.Flags().Uint64Var(&flags.stepBudget, "step-budget", 0, "maximum drive steps before a liveness failure")
	simulateCmd.Flags().Uint64Var(&flags.retries, "retries", 0, "retries with a doubled step budget after a liveness failure")
	p2pCmd.Flags().IntVar(&flags.timeoutMS, "timeout-ms", 0, "maximum duration of the run")
}

// applyFlags() overwrites the config with every flag set on the command line
func applyFlags(cmd *cobra.Command, c *lib.Config) {
	set := cmd.Flags().Changed
	if set("nodes") {
		c.NodeCount = flags.nodes
	}
	if set("txns") {
		c.TxnCount = flags.txns
	}
	if set("txn-bytes") {
		c.TxnBytes = flags.txnBytes
	}
	if set("batch-size") {
		c.BatchSize = flags.batchSize
	}
	if set("faulty") {
		c.FaultyNodes = c.FaultyNodes[:0]
		for _, id := range flags.faulty {
			c.FaultyNodes = append(c.FaultyNodes, uint64(id))
		}
	}
	if set("step-budget") {
		c.StepBudget = flags.stepBudget
	}
	if set("retries") {
		c.RetryAttempts = flags.retries
	}
	if set("timeout-ms") {
		c.RunTimeoutMS = flags.timeoutMS
	}
	if set("persist") {
		c.Persist = flags.persist
	}
	if set("metrics") {
		c.MetricsConfig.Enabled = flags.metrics
	}
}

// epochsFor() returns the --epochs flag or, by default, the number of full batches the submitted contributions make
func epochsFor(c lib.Config) int {
	if flags.epochs > 0 {
		return flags.epochs
	}
	if c.BatchSize <= 0 {
		return 1
	}
	return max(1, c.TxnCount/c.BatchSize)
}

// Summary is the outcome of a run printed to the console
type Summary struct {
	Mode    string                   `json:"mode"`
	Epochs  int                      `json:"epochs"`
	Elapsed string                   `json:"elapsed"`
	Report  simulator.Report[uint64] `json:"report"`
}

// runSimulation() submits config.TxnCount random contributions to every peer and drives the simulator until every live
// peer finalized the epochs, then checks agreement and optionally persists the batches
func runSimulation(c lib.Config, epochs int, log lib.LoggerI) (*Summary, lib.ErrorI) {
	start := time.Now()
	metrics := lib.NewMetricsServer(c.MetricsConfig, log)
	metrics.Start()
	defer stopMetrics(metrics, log)
	sim, err := simulator.NewNetwork(c, metrics, log)
	if err != nil {
		return nil, err
	}
	for _, tx := range lib.NewRandomTransactions(c.TxnCount, c.TxnBytes) {
		if err = sim.SubmitToAll(tx); err != nil {
			return nil, err
		}
	}
	predicate := simulator.AllNodesHaveBatches[lib.Transaction, uint64](epochs)
	if len(c.FaultyNodes) != 0 {
		predicate = simulator.HonestNodesHaveBatches[lib.Transaction, uint64](epochs)
	}
	steps, err := sim.RunUntilWithRetry(predicate, c.RetryAttempts)
	metrics.UpdateProcess()
	if err != nil {
		return nil, err
	}
	if err = sim.CheckAgreement(); err != nil {
		return nil, err
	}
	report := sim.Report()
	printReport(log, report, steps, time.Since(start))
	if err = persist(c, sim.LiveNodes(), sim.Session, log); err != nil {
		return nil, err
	}
	return &Summary{Mode: "simulate", Epochs: epochs, Elapsed: time.Since(start).String(), Report: report}, nil
}

// runP2P() runs the same scenario as runSimulation() over the concurrent port
func runP2P(c lib.Config, epochs int, log lib.LoggerI) (*Summary, lib.ErrorI) {
	start := time.Now()
	metrics := lib.NewMetricsServer(c.MetricsConfig, log)
	metrics.Start()
	defer stopMetrics(metrics, log)
	network, err := p2p.NewNetwork(c, metrics, log)
	if err != nil {
		return nil, err
	}
	for _, tx := range lib.NewRandomTransactions(c.TxnCount, c.TxnBytes) {
		if err = network.SubmitToAll(tx); err != nil {
			return nil, err
		}
	}
	err = network.Run(context.Background(), epochs)
	metrics.UpdateProcess()
	if err != nil {
		return nil, err
	}
	if err = network.CheckAgreement(); err != nil {
		return nil, err
	}
	report := network.Report()
	printReport(log, report, 0, time.Since(start))
	if err = persist(c, network.LiveNodes(), network.Session, log); err != nil {
		return nil, err
	}
	return &Summary{Mode: "p2p", Epochs: epochs, Elapsed: time.Since(start).String(), Report: report}, nil
}

// persist() writes the batches of every live peer to the ledger when enabled
func persist(c lib.Config, live []uint64, get func(uint64) (*session.Session[lib.Transaction, uint64], bool), log lib.LoggerI) lib.ErrorI {
	if !c.Persist {
		return nil
	}
	ledger, err := store.New(c.StoreConfig, log)
	if err != nil {
		return err
	}
	defer ledger.Close()
	for _, id := range live {
		ss, _ := get(id)
		if err = store.SaveBatches(ledger, nodeName(id), ss.Batches()); err != nil {
			return err
		}
	}
	log.Infof("Persisted the batches of %d peers", len(live))
	return nil
}

// printReport() logs the per peer counters followed by the totals
func printReport(log lib.LoggerI, r simulator.Report[uint64], steps uint64, elapsed time.Duration) {
	for _, n := range r.Nodes {
		log.Info(n.String())
	}
	p := message.NewPrinter(language.English)
	log.Info(p.Sprintf("Finalized %d common epochs (%d batches) from %d peer messages in %d steps and %s",
		r.CommonEpochs, r.TotalBatchOut, r.TotalPeerIn, steps, elapsed))
	if r.StepsPerEpochMean > 0 {
		log.Info(p.Sprintf("Steps per epoch: mean %.1f, std dev %.1f", r.StepsPerEpochMean, r.StepsPerEpochStdDev))
	}
}

// finish() adapts a run result to the console writer
func finish(s *Summary, err lib.ErrorI) (*Summary, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

// stopMetrics() stops the metrics server, on --wait only after a kill signal so the final values can be scraped
func stopMetrics(m *lib.Metrics, log lib.LoggerI) {
	if flags.wait && m != nil {
		log.Info("Waiting for a kill signal before stopping the metrics server")
		waitForKill()
	}
	m.Stop()
}

func nodeName(id uint64) string { return fmt.Sprintf("node %d", id) }
