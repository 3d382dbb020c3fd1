package hal

import (
	"fmt"

	"github.com/ardnew/softehci/pkg"
)

// Request is a standard bRequest code (USB 2.0 Table 9-4).
type Request uint8

// Standard request codes.
const (
	RequestGetStatus        Request = 0x00
	RequestClearFeature     Request = 0x01
	RequestSetFeature       Request = 0x03
	RequestSetAddress       Request = 0x05
	RequestGetDescriptor    Request = 0x06
	RequestSetDescriptor    Request = 0x07
	RequestGetConfiguration Request = 0x08
	RequestSetConfiguration Request = 0x09
	RequestGetInterface     Request = 0x0A
	RequestSetInterface     Request = 0x0B
	RequestSynchFrame       Request = 0x0C
)

var requestNames = map[Request]string{
	RequestGetStatus:        "GET_STATUS",
	RequestClearFeature:     "CLEAR_FEATURE",
	RequestSetFeature:       "SET_FEATURE",
	RequestSetAddress:       "SET_ADDRESS",
	RequestGetDescriptor:    "GET_DESCRIPTOR",
	RequestSetDescriptor:    "SET_DESCRIPTOR",
	RequestGetConfiguration: "GET_CONFIGURATION",
	RequestSetConfiguration: "SET_CONFIGURATION",
	RequestGetInterface:     "GET_INTERFACE",
	RequestSetInterface:     "SET_INTERFACE",
	RequestSynchFrame:       "SYNCH_FRAME",
}

// String returns the request name, or its code in hexadecimal.
func (r Request) String() string {
	if name, ok := requestNames[r]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X", uint8(r))
}

// bmRequestType type field.
const (
	RequestTypeStandard = 0x00
	RequestTypeClass    = 0x20
	RequestTypeVendor   = 0x40
	requestTypeMask     = 0x60
)

// IsStandard reports whether the request is a standard (chapter 9) request.
func (s *SetupPacket) IsStandard() bool {
	return s.RequestType&requestTypeMask == RequestTypeStandard
}

// Descriptor types.
const (
	DescriptorTypeDevice          = 0x01
	DescriptorTypeConfiguration   = 0x02
	DescriptorTypeString          = 0x03
	DescriptorTypeInterface       = 0x04
	DescriptorTypeEndpoint        = 0x05
	DescriptorTypeDeviceQualifier = 0x06
)

// DescriptorType returns the descriptor type requested by GET_DESCRIPTOR,
// carried in the high byte of wValue.
func (s *SetupPacket) DescriptorType() uint8 {
	return uint8(s.Value >> 8)
}

// DeviceDescriptor is a USB device descriptor.
type DeviceDescriptor struct {
	Length            uint8
	DescriptorType    uint8
	USBVersion        uint16 // bcdUSB
	DeviceClass       uint8
	DeviceSubClass    uint8
	DeviceProtocol    uint8
	MaxPacketSize0    uint8
	VendorID          uint16
	ProductID         uint16
	DeviceVersion     uint16 // bcdDevice
	ManufacturerIndex uint8
	ProductIndex      uint8
	SerialNumberIndex uint8
	NumConfigurations uint8
}

// DeviceDescriptorSize is the size of a device descriptor.
const DeviceDescriptorSize = 18

// ParseDeviceDescriptor decodes a device descriptor from data.
func ParseDeviceDescriptor(data []byte, out *DeviceDescriptor) error {
	if len(data) < DeviceDescriptorSize {
		return fmt.Errorf("%w: %d of %d bytes", pkg.ErrDescriptorTooShort, len(data), DeviceDescriptorSize)
	}
	if data[1] != DescriptorTypeDevice {
		return fmt.Errorf("%w: descriptor type 0x%02X", pkg.ErrInvalidParameter, data[1])
	}
	out.Length = data[0]
	out.DescriptorType = data[1]
	out.USBVersion = uint16(data[2]) | uint16(data[3])<<8
	out.DeviceClass = data[4]
	out.DeviceSubClass = data[5]
	out.DeviceProtocol = data[6]
	out.MaxPacketSize0 = data[7]
	out.VendorID = uint16(data[8]) | uint16(data[9])<<8
	out.ProductID = uint16(data[10]) | uint16(data[11])<<8
	out.DeviceVersion = uint16(data[12]) | uint16(data[13])<<8
	out.ManufacturerIndex = data[14]
	out.ProductIndex = data[15]
	out.SerialNumberIndex = data[16]
	out.NumConfigurations = data[17]
	return nil
}

// MaxPacketSize0 returns the default control endpoint packet size a host
// assumes before reading the device descriptor.
func (s Speed) MaxPacketSize0() uint16 {
	switch s {
	case SpeedFull, SpeedHigh:
		return 64
	default:
		return 8
	}
}
