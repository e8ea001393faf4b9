// Package api exposes the notification pipeline over HTTP: request routing,
// decoding and validation, identity extraction, and response shaping. It
// translates HTTP concerns into calls on the internal services and maps
// their errors back to safe status codes and messages.
package api
