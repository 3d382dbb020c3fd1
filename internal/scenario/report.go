package scenario

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/ardnew/softehci/host/ehci"
	"github.com/ardnew/softehci/host/hal"
	"github.com/ardnew/softehci/pkg"
)

// Report is a snapshot of a bench after execution.
type Report struct {
	Name        string             `yaml:"name"`
	Controllers []ControllerReport `yaml:"controllers"`
	Devices     []DeviceReport     `yaml:"devices,omitempty"`
}

// ControllerReport is the register and schedule state of one controller.
type ControllerReport struct {
	ID         uint8         `yaml:"id"`
	USBSTS     string        `yaml:"usbsts"`
	PORTSC     string        `yaml:"portsc"`
	Connected  bool          `yaml:"connected"`
	Speed      string        `yaml:"speed,omitempty"`
	Interrupts int           `yaml:"interrupts"`
	Async      []QueueReport `yaml:"async"`
	Periodic   []QueueReport `yaml:"periodic"`
}

// QueueReport is the state of one queue head.
type QueueReport struct {
	Name    string      `yaml:"name"`
	Address string      `yaml:"address"`
	Halted  bool        `yaml:"halted,omitempty"`
	Current string      `yaml:"current,omitempty"`
	Overlay QTDReport   `yaml:"overlay"`
	QTDs    []QTDReport `yaml:"qtds,omitempty"`
}

// QTDReport is the state of one qTD.
type QTDReport struct {
	Address string `yaml:"address,omitempty"`
	PID     string `yaml:"pid"`
	Status  string `yaml:"status"`
	Token   string `yaml:"token"`
	Bytes   uint16 `yaml:"bytes"`
	Next    string `yaml:"next"`
	Error   string `yaml:"error,omitempty"` // outcome of a retired qTD
}

// DeviceReport is the control request of a device and the data stage
// buffer it left behind.
type DeviceReport struct {
	Address    uint8             `yaml:"address"`
	Controller uint8             `yaml:"controller"`
	Request    string            `yaml:"request"`
	Data       HexBytes          `yaml:"data,omitempty"`
	Descriptor *DescriptorReport `yaml:"descriptor,omitempty"`
}

// DescriptorReport summarizes a device descriptor returned by
// GET_DESCRIPTOR(DEVICE).
type DescriptorReport struct {
	USB            string `yaml:"usb"`
	VendorID       string `yaml:"vendor_id"`
	ProductID      string `yaml:"product_id"`
	MaxPacketSize0 uint8  `yaml:"max_packet_size0"`
	Configurations uint8  `yaml:"configurations"`
}

// Report snapshots the bench.
func (b *Bench) Report() *Report {
	rep := &Report{Name: b.Name}

	for _, id := range b.state.Controllers() {
		c, _ := b.state.Controller(id)
		port := c.Registers.PortStatus()
		cr := ControllerReport{
			ID:         uint8(id),
			USBSTS:     fmt.Sprintf("0x%08x", uint32(c.Registers.Status)),
			PORTSC:     fmt.Sprintf("0x%08x", uint32(c.Registers.PortSC)),
			Connected:  port.Connected,
			Interrupts: b.interrupts[id],
		}
		if port.Connected {
			cr.Speed = port.Speed.String()
		}
		r := b.rings[id]
		for _, q := range r.async {
			cr.Async = append(cr.Async, b.queueReport(q))
		}
		for _, q := range r.periodic {
			cr.Periodic = append(cr.Periodic, b.queueReport(q))
		}
		rep.Controllers = append(rep.Controllers, cr)
	}

	for _, dev := range b.devices {
		rep.Devices = append(rep.Devices, b.deviceReport(dev))
	}
	return rep
}

func (b *Bench) deviceReport(dev hal.DeviceAddress) DeviceReport {
	binding, _ := b.state.Device(dev)
	dr := DeviceReport{Address: uint8(dev), Controller: uint8(binding.Controller)}

	setup, err := b.setupOf(binding.Pipe)
	if err != nil {
		return dr
	}
	dr.Request = hal.Request(setup.Request).String()
	if !setup.IsIn() || setup.Length == 0 {
		return dr
	}
	td, err := b.mem.QTD(binding.Pipe.Data)
	if err != nil || td.IsActive() {
		return dr
	}
	buf, err := b.mem.Buffer(td.Buffers[0], int(setup.Length))
	if err != nil {
		return dr
	}
	dr.Data = append(HexBytes(nil), buf...)

	if setup.IsStandard() &&
		hal.Request(setup.Request) == hal.RequestGetDescriptor &&
		setup.DescriptorType() == hal.DescriptorTypeDevice {
		var d hal.DeviceDescriptor
		if hal.ParseDeviceDescriptor(buf, &d) == nil {
			dr.Descriptor = &DescriptorReport{
				USB:            fmt.Sprintf("%x.%02x", d.USBVersion>>8, d.USBVersion&0xff),
				VendorID:       fmt.Sprintf("0x%04x", d.VendorID),
				ProductID:      fmt.Sprintf("0x%04x", d.ProductID),
				MaxPacketSize0: d.MaxPacketSize0,
				Configurations: d.NumConfigurations,
			}
		}
	}
	return dr
}

func (b *Bench) setupOf(pipe ehci.ControlPipe) (hal.SetupPacket, error) {
	var setup hal.SetupPacket
	td, err := b.mem.QTD(pipe.Setup)
	if err != nil {
		return setup, err
	}
	raw, err := b.mem.Buffer(td.Buffers[0], hal.SetupPacketSize)
	if err != nil {
		return setup, err
	}
	hal.ParseSetupPacket(raw, &setup)
	return setup, nil
}

func (b *Bench) queueReport(ref queueRef) QueueReport {
	qr := QueueReport{Name: ref.name, Address: ref.addr.String()}
	q, err := b.mem.QHD(ref.addr)
	if err != nil {
		return qr
	}
	qr.Halted = q.Overlay.IsHalted()
	if q.Current != 0 {
		qr.Current = q.Current.String()
	}
	qr.Overlay = qtdReport("", &q.Overlay)
	for _, addr := range ref.qtds {
		if td, err := b.mem.QTD(addr); err == nil {
			qr.QTDs = append(qr.QTDs, qtdReport(addr.String(), td))
		}
	}
	return qr
}

func qtdReport(addr string, td *ehci.QTD) QTDReport {
	st := td.TransferStatus()
	r := QTDReport{
		Address: addr,
		PID:     td.PID.String(),
		Status:  st.String(),
		Token:   fmt.Sprintf("0x%02x", uint8(td.Status)),
		Bytes:   td.TotalBytes,
		Next:    td.Next.String(),
	}
	if err := st.Error(); err != nil && !errors.Is(err, pkg.ErrPending) {
		r.Error = err.Error()
	}
	return r
}

// WriteYAML encodes the report as a YAML document.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

// WriteText writes a condensed table of controllers and queues.
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "scenario: %s\n", r.Name)
	for _, c := range r.Controllers {
		fmt.Fprintf(tw, "controller %d\tusbsts=%s\tportsc=%s\tinterrupts=%d\n",
			c.ID, c.USBSTS, c.PORTSC, c.Interrupts)
		for _, q := range c.Async {
			writeQueueLine(tw, "async", q)
		}
		for _, q := range c.Periodic {
			writeQueueLine(tw, "periodic", q)
		}
	}
	for _, d := range r.Devices {
		fmt.Fprintf(tw, "device %d\tcontroller=%d\t%s\tdata=%s\n",
			d.Address, d.Controller, d.Request, formatHex(d.Data))
		if desc := d.Descriptor; desc != nil {
			fmt.Fprintf(tw, "  descriptor\tusb=%s\tid=%s:%s\tmps0=%d\n",
				desc.USB, desc.VendorID, desc.ProductID, desc.MaxPacketSize0)
		}
	}
	return tw.Flush()
}

func writeQueueLine(w io.Writer, schedule string, q QueueReport) {
	active, failed := 0, 0
	for _, td := range q.QTDs {
		if td.Status == "active" {
			active++
		}
		if td.Error != "" {
			failed++
		}
	}
	fmt.Fprintf(w, "  %s %s\t%s\toverlay=%s\tactive=%d/%d\tfailed=%d\n",
		schedule, q.Name, q.Address, q.Overlay.Status, active, len(q.QTDs), failed)
}
