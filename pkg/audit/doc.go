// Package audit records security-relevant events: token issuance, access
// denials, membership changes and destructive data mutations.
//
// Events flow through the Logger interface. LogrusLogger writes them as
// structured log lines, FileLogger appends JSON lines with optional
// rotation, and MultiLogger fans out to several sinks:
//
//	fileLogger, err := audit.NewFileLogger(audit.FileLoggerConfig{
//		BasePath: "/var/log/plank/audit",
//		Rotate:   true,
//	})
//	logger := audit.NewMultiLogger(audit.NewLogrusLogger(log), fileLogger)
//
// Callers normally use the Mutation and Denied helpers, which stamp the
// request id carried by the context.
package audit
