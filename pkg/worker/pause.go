package worker

import "runtime"

// runtimePause is the Go-idiomatic stand-in for the CPU pause hint spec
// §4.E step 4 calls for between idle retries: it yields the processor to
// the Go scheduler without blocking the OS thread, letting a producer or
// peer worker make progress before this worker spins again.
func runtimePause() {
	runtime.Gosched()
}
