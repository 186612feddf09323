// Package steer orchestrates the regulation cycle of the steering servo.
//
// One [Loop.Step] is a full cycle:
//
//	acquire left -> acquire right -> saturate both channels
//	  -> map the differential pair onto the target scale
//	  -> regulate -> actuate -> report
//
// Acquisition, actuation and reporting are collaborators supplied by the
// caller. The loop itself never blocks; any waiting happens inside the
// [Acquirer] or the optional rate limiter passed to [Loop.Run].
//
// # Thread Safety
//
// Loop instances are NOT thread-safe. Drive each loop from one goroutine.
package steer
