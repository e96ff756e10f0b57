package common

// NotifyKind classifies a user-visible notification.
type NotifyKind string

const (
	NotifyInfo    NotifyKind = "info"
	NotifySuccess NotifyKind = "success"
	NotifyError   NotifyKind = "error"
)

// Notifier receives user-visible notifications from the core. The
// presentation layer decides how to render them; the core never touches a UI
// toolkit.
type Notifier interface {
	Notify(kind NotifyKind, text string)
}

// NotifyFunc adapts a function to the Notifier interface.
type NotifyFunc func(kind NotifyKind, text string)

func (f NotifyFunc) Notify(kind NotifyKind, text string) { f(kind, text) }

// NopNotifier discards all notifications.
var NopNotifier Notifier = NotifyFunc(func(NotifyKind, string) {})
