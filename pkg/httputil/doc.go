// Package httputil provides the JSON response helpers, path parsing and
// middleware shared by the HTTP handlers.
//
// Handlers parse input with ParseJSONOrError and ParsePathInt64OrError,
// which write a 400 themselves and return false on failure:
//
//	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
//	if !ok {
//		return
//	}
//
// The middleware chain assigns a request id (a UUID unless the client sent
// X-Request-ID), recovers panics and logs each request through logrus.
package httputil
