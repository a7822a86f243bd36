// Package jwt issues and verifies the signed tokens that carry a session
// reference to the client. A token names the session, its user and its
// tenant; the session store stays authoritative for validity.
package jwt
