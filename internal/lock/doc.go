// Package lock keeps a single attendance workflow active per machine.
//
// The lock is a small YAML marker file holding the owner's PID and
// executable name. A marker whose process is gone, or whose PID now belongs
// to another executable, is stale and is taken over.
package lock
