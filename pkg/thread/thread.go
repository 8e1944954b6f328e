// Package thread locks the work of a graphics context to the main OS thread.
// See: https://github.com/golang/go/wiki/LockOSThread
package thread

import "github.com/faiface/mainthread"

// Run runs f in a new goroutine while the main thread serves Call.
// It must be called from main and returns when f returns.
func Run(f func()) { mainthread.Run(f) }

// Call executes f on the main thread and waits for it to finish.
func Call(f func()) { mainthread.Call(f) }

// CallErr is Call for functions that may fail.
func CallErr(f func() error) error { return mainthread.CallErr(f) }
