// Package api exposes the tracker service over HTTP.
//
// All resource routes live under /api/v1 and require a bearer credential,
// either a plank API token or an OIDC ID token when an issuer is configured.
// Health checks and Prometheus metrics are served unauthenticated at /health,
// /health/live, /health/ready and /metrics.
//
// Errors are returned as {"error": "...", "kind": "..."} where kind is one of
// not_found, forbidden, validation, conflict, cross_board_linkage,
// cyclic_hierarchy or duplicate_membership.
package api
