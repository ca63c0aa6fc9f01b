// Package transport implements the socket layer of the engine: the
// low-level bundle protocol address construction, the generic socket
// factory, and the per-protocol listener and sender dispatch loops.
//
// Three I/O strategies live behind one surface. UDP and TCP use the net
// package with goroutine-per-loop scheduling, the way Go transports are
// normally written. The bundle protocol (AF_BP) is a non-standard address
// family the net package cannot open, so its sockets are raw file
// descriptors driven through golang.org/x/sys/unix on a dedicated OS
// thread, polling with a short sleep on EAGAIN instead of true readiness
// notification.
//
// All loop outcomes surface as events on an event.Bus; nothing here returns
// errors to the engine once a loop is running. Fatal errors stop only the
// affected loop.
package transport
