// Package advisor implements the scheduling-advice bridge between an
// instrumented kernel and an external reasoning service.
//
// # Reading Guide
//
//   - snapshot.go: the SCHED_LOG block wire format and its parser
//   - cursor.go: incremental tailing of the shared snapshot log
//   - filter.go, request.go: candidate selection and the oracle request text
//   - oracle.go, extract.go, retry.go: the oracle capability and its retry policy
//   - fallback.go: the deterministic scorer used when the oracle path fails
//   - advice.go, publisher.go: de-duplicated publication to the advice log and pipe
//   - loop.go: the advisory loop tying the pieces together
//
// Oracle backends (Ollama, OpenAI-compatible) live in advisor/oracle and
// satisfy the Generator interface defined here.
package advisor
