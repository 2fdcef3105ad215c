// Package engine drives the sequence-to-sequence inference engine. The
// CTranslate2 backend runs the engine in a pyworker process; the stub backend
// echoes its input and is meant for debugging and tests.
package engine
