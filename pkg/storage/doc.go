// Package storage defines the persistence contract of the tracker.
//
// Two backends implement Store:
//
//   - storage/memory: an arena of maps behind one RWMutex, for tests and
//     single-node development
//   - storage/postgres: database/sql over lib/pq, with multi-row mutations
//     (cascading deletes, bug relinking, subtree removal) inside a transaction
//
// Membership is kept as one row per team/user and team/project pair; the
// TeamIDs, MemberIDs and ProjectIDs slices on the domain types are views over
// those rows and are never written directly.
package storage
