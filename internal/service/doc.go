// Package service implements the notification pipeline's business logic:
// notification creation and lifecycle transitions, queue consumption,
// cleanup routines, and the task-mutation seams that trigger notifications.
package service
