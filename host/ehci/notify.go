package ehci

// Notifier receives the controller interrupt raised after every operation
// that changes USBSTS. Interrupt is called synchronously on the caller's
// goroutine and must not block.
type Notifier interface {
	Interrupt(id ControllerID)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(id ControllerID)

// Interrupt calls f(id).
func (f NotifierFunc) Interrupt(id ControllerID) {
	f(id)
}

type nopNotifier struct{}

func (nopNotifier) Interrupt(ControllerID) {}
