// Package foundry invokes the Foundry Local runtime CLI as a supervised
// subprocess.
//
// A single Run walks a two-tier state machine:
//
//	Idle -> Preparing -> PrimaryRunning -> Succeeded
//	                                    -> PrimaryFailed -> FallbackRunning -> Succeeded | FatallyFailed
//	                                                     -> FatallyFailed
//
// The canonical request is written once to a temporary artifact that both
// tiers read, and the artifact is removed before Run returns. Each launch gets
// a fresh ProcessEnvironment that forces CPU execution and carries a sanitized
// runtime version, so the runtime never probes (and crashes on) its own
// malformed version report.
package foundry
