// Package logx provides a small structured logging facade over zerolog.
//
// The zero value of Logger is a safe no-op. Loggers created from a Service
// stay live across Service.Apply() calls, so runtime config reloads change
// sinks and levels without re-plumbing loggers through the app.
package logx
