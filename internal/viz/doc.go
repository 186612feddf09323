// Package viz is the terminal front end of the simulated corridor.
//
//   - [Model]: live view of one loop, one cycle per tick, with gains tunable
//     while it drives
//   - [NewInteractiveApp]: preset and scenario picker that opens a [Model]
//   - [Canvas]: braille dot canvas the corridor is drawn on
//
// # Key Bindings
//
//	Space  - Pause/Resume
//	R      - Rebuild the vehicle and restore gains
//	Tab    - Select regulator parameter
//	Up/Dn  - Scale it by 5%
//	Lt/Rt  - Knock the heading
//	[ ]    - Step through recent cycles
//	T      - Cycle themes
package viz
