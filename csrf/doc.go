// Package csrf implements double-submit cookie validation. The browser
// holds a random token in a script-readable cookie and echoes it in the
// X-CSRF-Token header on state-changing requests.
package csrf
