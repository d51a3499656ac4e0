// Package membership owns the team/user and team/project relations.
//
// Graph answers read-only questions about who can see which project.
// Mutator changes the relations after checking that the caller has
// standing on both sides of the link being created or removed.
package membership
