// Package notify delivers user-facing error notifications.
package notify

import "go.uber.org/zap"

// Notifier receives fire-and-forget error notifications.
type Notifier interface {
	NotifyError(message string)
}

// Func adapts a plain function to Notifier.
type Func func(message string)

func (f Func) NotifyError(message string) {
	f(message)
}

// Log writes notifications through a zap logger.
type Log struct {
	Logger *zap.Logger
}

func (l Log) NotifyError(message string) {
	l.Logger.Error("notification", zap.String("message", message))
}

// Multi fans a notification out to several notifiers.
type Multi []Notifier

func (m Multi) NotifyError(message string) {
	for _, n := range m {
		if n != nil {
			n.NotifyError(message)
		}
	}
}

// Nop drops every notification.
var Nop Notifier = Func(func(string) {})
