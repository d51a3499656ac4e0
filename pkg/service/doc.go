// Package service implements the tracker operations exposed over HTTP.
//
// Each operation takes the resolved caller and runs the same sequence:
// input validation, loading the target or its parent, an access decision,
// and only then the write. Denials are returned as tracker.Forbidden errors
// and recorded in the audit log.
package service
