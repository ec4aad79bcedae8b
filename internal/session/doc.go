// Package session owns the client-side authentication state.
//
// A Session is created once per process, initialized from the credential
// store by Bootstrap before any protected routing decision, and mutated only
// through Login and Logout. Consumers read the state through State or follow
// it through Subscribe.
package session
