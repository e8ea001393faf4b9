// Package mongodb implements the store interfaces on top of MongoDB.
//
// Documents are persisted through small mapping structs rather than the
// domain types directly, so the wire schema stays stable even when domain
// types grow behavior. IDs are stored as canonical UUID strings.
package mongodb
