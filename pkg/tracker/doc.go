// Package tracker defines the domain model of the project tracker.
//
// # Ownership
//
// Boards, work items, bug items and comments all carry the id of the project
// that contains them. The id is copied from the immediate parent when the
// object is created and is never recomputed afterwards. Authorization reads
// this field directly through the Owned interface, so a check on a deeply
// nested work item costs the same as a check on its board.
//
// # Errors
//
// Failures are reported as *Error values carrying a Kind:
//
//	if errors.Is(err, tracker.ErrNotFound) {
//		// re-check input
//	}
//	if tracker.IsStructural(err) {
//		// cross-board link, cycle or duplicate relation; nothing was written
//	}
//
// # Related Packages
//
//   - pkg/access: permission voter
//   - pkg/hierarchy: work item tree constraints
//   - pkg/membership: team relations
package tracker
