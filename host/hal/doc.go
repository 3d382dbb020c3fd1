// Package hal holds the USB wire-level types shared between the EHCI engine
// and the driver stack that consumes it: connection speeds, the decoded
// root port status, device addresses and the SETUP packet that opens every
// control transfer. Standard request codes and the device descriptor are
// decoded here too, for logging and reporting.
//
// SETUP packets are carried in the buffer of a control pipe's first qTD in
// their 8-byte little-endian wire form:
//
//	var setup hal.SetupPacket
//	if !hal.ParseSetupPacket(buf, &setup) {
//	    return pkg.ErrSetupPacketTooShort
//	}
//	if setup.IsIn() && setup.Length > 0 {
//	    // device-to-host data stage
//	}
package hal
