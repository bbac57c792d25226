// Package audit carries authentication events from the Engine to a sink
// without blocking request paths.
//
// The Dispatcher owns a buffered queue and one worker goroutine. With
// DropIfFull set, Emit never blocks and overflow is counted; otherwise Emit
// waits for buffer space until ctx ends or the dispatcher closes, and an
// abandoned event is counted as dropped. Events without a Timestamp are
// stamped in UTC on Emit. A panicking sink loses one event and is logged.
package audit
