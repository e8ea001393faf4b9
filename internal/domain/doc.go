// Package domain defines the core business entities of the notification
// pipeline and the validation rules that govern them.
package domain
