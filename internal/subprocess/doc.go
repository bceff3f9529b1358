// Package subprocess supervises the agent runtime child process.
//
// A Supervisor spawns at most one child at a time, wires its standard input
// to a RequestChannel and drains its standard output and standard error with
// two independent stream pumps. When both pumps have finished, the process
// is reaped and its exit is recorded on the Process handle.
package subprocess
