// Package pyworker runs the embedded Python worker script as a long-lived
// child process. Requests and responses are JSON lines on stdin/stdout; each
// request carries an id and the worker answers it with exactly one line. The
// first line the worker prints reports that its model is loaded.
package pyworker
