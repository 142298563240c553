// Package pipeline drives a batch of ROM files through fingerprinting,
// lookup, disambiguation and media download.
//
// The Orchestrator runs one worker per ROM over a bounded errgroup. Every ROM
// moves through pending, fingerprinted, resolved or unresolved, and finally
// assets_complete or assets_partial; deferred and failed are terminal
// alternatives. A quota or authorization failure latches a halt: lookups stop,
// downloads already underway finish, and ROMs that never reached lookup are
// deferred for a later run. Failures of one ROM never abort the batch.
//
// Transient errors are retried through RetryPolicy, which consumes an
// explicit AttemptResult per attempt and sleeps with fully jittered
// exponential backoff.
package pipeline
