// Package command routes device commands to their handlers and endpoint
// results back to devices. It sits between the device sessions, the
// endpoint bridge and the config store, depending on each only through
// small interfaces so the wiring stays testable.
package command
