// Package headless runs a shell over plain pipes when a pseudo-terminal
// cannot or should not be allocated (sandboxes without /dev/ptmx access).
//
// Two background drain loops feed stdout and stderr into one bounded
// buffer; reads drain that buffer destructively. A drain loop ending early
// degrades output visibility but never kills the session.
package headless
