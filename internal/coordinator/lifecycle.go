package coordinator

import "github.com/ibusnowden/MLRun/internal/metadata"

// transitions enumerates every state change the run lifecycle state
// machine allows. A run in a terminal state (finished, failed,
// killed) can never move again; crashed is reachable only through the
// watchdog, never requested directly by a client.
var transitions = map[metadata.RunStatus]map[metadata.RunStatus]bool{
	metadata.RunPending: {
		metadata.RunRunning: true,
		metadata.RunKilled:  true,
	},
	metadata.RunRunning: {
		metadata.RunFinished: true,
		metadata.RunFailed:   true,
		metadata.RunKilled:   true,
		metadata.RunCrashed:  true,
	},
	metadata.RunCrashed: {
		metadata.RunRunning:  true, // resumed
		metadata.RunFailed:   true,
		metadata.RunKilled:   true,
		metadata.RunFinished: true,
	},
}

// canTransition reports whether moving a run from `from` to `to` is a
// legal edge in the state machine.
func canTransition(from, to metadata.RunStatus) bool {
	return transitions[from][to]
}

// canLogMetrics reports whether a run in the given state is allowed to
// accept new metric points; only running runs can — an init_run carrying
// a valid resume token must move a crashed run back to running first.
func canLogMetrics(status metadata.RunStatus) bool {
	return status == metadata.RunRunning
}
