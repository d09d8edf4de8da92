// Package domain contains core concepts of the direct-messaging system.
// This file defines User entities as seen by the messaging core.
// No runtime, network, or UI logic should be added here.
package domain

// User is the public identity of an account. It is immutable for the
// duration of a connection session; credentials never travel with it.
type User struct {
	ID          string // stable opaque identifier
	Username    string // unique, case-sensitive presence key
	DisplayName string
	AvatarURL   string
}
