// Package reconciler applies bounded-cost local schedule updates on live
// delay events: a right-shift of the reporting train's remaining stops
// plus priority-aware repair of the trains it now conflicts with. It
// never runs the full optimizer search; this path sits on the hot path
// of delay reports and must stay well under one scheduling cycle.
package reconciler
