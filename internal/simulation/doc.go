// Package simulation owns complete simulation runs and ensembles of them.
//
// A Run holds one contact network, its per-person disease state, a private
// interaction random source and the weekly time series of state counts.
// Step is the only mutator after construction. An Ensemble builds K runs on
// the same topology seed with independent interaction seeds and advances
// them in parallel; runs share nothing, so each is touched by exactly one
// goroutine at a time. A Session wraps an ensemble with the
// apply/step/reset/play controls an interactive front end needs.
//
// Usage:
//
//	seed := uint64(1)
//	run, err := simulation.NewRun(simulation.RunConfig{
//	    NumNodes:           100,
//	    TopologySeed:       1,
//	    InteractionSeed:    &seed,
//	    OutbreakProportion: 0.1,
//	    Mode:               "standard",
//	    Network:            network.DefaultConfig(),
//	    Epidemic:           epidemic.DefaultParams(),
//	})
//	if err != nil { ... }
//	run.Step()
//	weeks := run.StatesPerTime()
package simulation
