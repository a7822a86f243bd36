// Package middleware adapts goGate.Gateway decisions to HTTP handlers.
//
// # Guards
//
//   - [Require] authenticates user requests through Gateway.Authenticate.
//   - [RequireService] authenticates internal calls through
//     Gateway.AuthenticateService.
//   - [Gin] and [GinService] are the same guards for gin routers.
//
// A rejected request gets the gateway's response written verbatim: status,
// headers and JSON body. An accepted request continues with the
// [goGate.AuthContext] (or [goGate.ServiceContext]) attached to its
// context.
//
// # Helpers
//
//   - [IssueCSRF] sets the double-submit cookie on responses that need one.
//   - [SecurityHeaders] adds the browser hardening headers to every
//     response.
//   - [SetSessionCookie] and [ClearSessionCookie] manage the session cookie
//     around login and logout handlers.
//
// This package makes no authentication decisions of its own.
package middleware
