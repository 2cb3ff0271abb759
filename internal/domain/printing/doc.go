// Package printing contains the label printing bounded context.
// It models confirmed label payloads, the fixed label sheet geometry,
// the print job state machine and the typed results a job ends with.
// Nothing in this package performs I/O.
package printing
