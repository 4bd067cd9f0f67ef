// Package netpath watches network reachability and forwards transitions to
// the connection manager.
//
// A Monitor produces reachability values. Prober derives them from
// periodic TCP dials to the API host; Manual takes them from a platform
// bridge or a test. Observer forwards each transition to a Target.
package netpath
