// Package hierarchy enforces the structural rules of the work item tree:
// parents and children share a board, the tree never contains a cycle and
// a bug item is linked to at most one work item.
//
// Work items are addressed by id, so cycle detection is a walk up the
// parent chain and subtree deletion is delegated to the store.
package hierarchy
