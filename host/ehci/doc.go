// Package ehci models the transfer-processing side of a USB 2.0 Enhanced
// Host Controller in memory.
//
// A driver stack written against real EHCI hardware builds queue heads and
// qTDs in descriptor memory, links them into schedules and waits for
// interrupts. This package stands in for the silicon: an [Engine] walks the
// same structures the way the controller would, retires qTDs, sets USBSTS
// and PORTSC bits and calls a [Notifier] in place of the interrupt line.
//
// # Descriptor Model
//
// Descriptors live in a [Memory] and are addressed by [Addr]. Chain-next
// references are [Link] values, either [End] or [Next]; the raw
// address-plus-terminate-bit encoding appears only in the MarshalTo and
// Parse functions that produce the 32-byte qTD and 48-byte queue head
// layouts.
//
// Each [QHD] carries an Overlay, a by-value copy of the [QTD] it is working
// on. Advancing a queue means retiring the next qTD and assigning it to the
// overlay, so later changes to the qTD never show through.
//
// # Operations
//
//   - [Engine.Run] drains the async and periodic rings of a controller
//   - [Engine.RunError] fails one pending qTD per async queue head
//   - [Engine.CompleteControlTransfer] answers a device's control transfer
//   - [Engine.Plug] and [Engine.Unplug] report root port connect changes
//
// Each operation that returns nil raises exactly one interrupt for the
// affected controller. An operation that fails raises none and may leave
// the schedules partially processed.
//
// # State
//
// Registers, schedule anchors and control pipes are found through a
// [Resolver]. [State] is a table-backed implementation owned by the caller;
// there is no package-level state.
//
// # Example
//
//	mem := ehci.NewMemory()
//	async, _, _ := mem.AllocQHD()
//	periodic, _, _ := mem.AllocQHD()
//	mem.LinkRing(async)
//	mem.LinkRing(periodic)
//
//	st := ehci.NewState(mem)
//	st.AddController(0, async, periodic)
//
//	eng := ehci.New(ehci.NotifierFunc(func(id ehci.ControllerID) {
//	    // driver interrupt service routine
//	}))
//	if err := eng.Run(st, 0); err != nil {
//	    log.Fatal(err)
//	}
package ehci
