// Package control provides the steering regulator.
//
// [PID] is a positional PID whose output is an absolute actuator command
// (a servo angle), centred on the target:
//
//	pid, _ := control.New(control.DefaultConfig(90)) // target 90 deg, 0..180
//	angle := pid.Regulate(measurement)
//
// The integral accumulates raw error per cycle with no time scaling. It is
// unbounded unless [Config.IntegralLimit] is set.
//
// [PID] implements [dynamo.Configurable] for live tuning.
package control
