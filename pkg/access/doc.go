// Package access decides whether a user may touch a project-scoped object.
//
// Every check reduces to one membership lookup. Objects inside a project are
// checked through their stored owner project id, so the cost does not depend
// on how deeply the object is nested.
//
// The voter never returns an error. A storage failure is logged and counted
// as a denial; translating a denial into a forbidden response is the
// caller's job.
package access
