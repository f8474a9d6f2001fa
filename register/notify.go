/*
notify.go - Outbound notification boundary

Notifications are a best-effort side effect. They run AFTER the store
transaction commits, and a failure is logged and swallowed - it must
never roll back or fail the core mutation.
*/
package register

import (
	"context"
	"log"
)

// Notifier delivers a message to a user. Implementations are external
// (email, SMS, in-app); the core only fires and forgets.
type Notifier interface {
	Notify(ctx context.Context, userID, title, message string) error
}

// LogNotifier writes notifications to the process log. Used as the
// default when no delivery channel is wired.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, userID, title, message string) error {
	log.Printf("[Notify] to=%s title=%q %s", userID, title, message)
	return nil
}

// notifyBestEffort swallows delivery failures.
func notifyBestEffort(ctx context.Context, n Notifier, userID, title, message string) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, userID, title, message); err != nil {
		log.Printf("[Notify] delivery to %s failed: %v", userID, err)
	}
}
