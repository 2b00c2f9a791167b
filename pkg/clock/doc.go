// Package clock abstracts delayed callbacks so components that own timers
// (reconnect backoff, toast auto-dismiss) can be driven deterministically in
// tests.
//
// System schedules through time.AfterFunc. Manual records scheduled callbacks
// and runs them only when the test advances its clock:
//
//	sched := clock.NewManual()
//	sched.AfterFunc(time.Second, func() { fired = true })
//	sched.Advance(time.Second) // fired == true
package clock
