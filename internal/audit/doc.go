// Package audit delivers security events to pluggable sinks.
//
// A [Sink] consumes [Event] values; the package ships channel, JSON line,
// slog, fan-out and no-op sinks. The [Dispatcher] sits between the gateway
// and a sink so that slow consumers never stall request handling: it either
// drops on a full buffer or makes the caller wait, bounded by the request
// context and an optional timeout.
//
// Which events exist and when they fire is decided by the gateway and the
// session manager. This package imports nothing from either.
package audit
