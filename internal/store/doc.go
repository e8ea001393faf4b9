// Package store defines the persistence interfaces used by the service
// layer, along with the sentinel errors all implementations must return.
// The MongoDB implementation lives in internal/platform/mongodb.
package store
