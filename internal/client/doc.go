// Package client implements the Bridge command surface.
//
// A Bridge owns one Supervisor and turns the shell-level commands (spawn,
// send a message, conversation management) into requests on the running
// child's request channel. Commands that carry no caller-supplied id get a
// fresh UUID, returned to the caller so responses can be correlated.
package client
