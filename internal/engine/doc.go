// Package engine contains the tick loop and simulation logic: the heartbeat
// of the patient simulator.
//
// ARCHITECTURAL RULE: nothing outside this package mutates vitals. Each tick
// reads the previously committed state, sums drift, history and device
// deltas, clamps, applies the pacemaker override and commits the whole
// vector at once.
package engine
