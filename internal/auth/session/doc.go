// Package session is the Session Controller: the state machine that owns the
// token pair and user profile and drives every login, recovery and logout
// flow.
//
// Consumers read State (or Subscribe to transitions) and call
// ValidateSessionBeforeRequest before any authenticated request. They never
// mutate tokens or the profile themselves.
//
// There is no background validity timer. Validation happens on demand through
// ValidateSessionBeforeRequest and HandleUnauthorized; a polling loop would
// change battery and network behaviour and is intentionally absent.
package session
