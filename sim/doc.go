// Package sim is a closed-loop scheduling simulator for exercising the
// advisory bridge end-to-end.
//
// # Reading Guide
//
//   - process.go: Proc, the simulated process and its kernel-style snapshot
//   - simulator.go: the tick loop, decision boundaries, and snapshot emission
//   - advice_wait.go: tailing the advice log for the answer to one snapshot
//   - metrics.go: Stats and the end-of-run report
//
// The simulator never decides anything itself. At each decision boundary it
// appends a snapshot block to the shared log and blocks until the bridge
// answers with an advice line carrying the same timestamp. RunClosedLoop runs
// a bridge in-process so the whole loop can be driven from one command or test.
package sim
