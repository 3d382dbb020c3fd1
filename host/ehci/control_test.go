package ehci

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ardnew/softehci/host/hal"
	"github.com/ardnew/softehci/pkg"
)

var getDeviceDescriptor = hal.SetupPacket{
	RequestType: 0x80,
	Request:     0x06,
	Value:       0x0100,
	Length:      18,
}

var deviceDescriptor = []byte{
	0x12, 0x01, 0x00, 0x02, 0x00, 0x00, 0x00, 0x40,
	0x6b, 0x1d, 0x04, 0x01, 0x00, 0x01, 0x01, 0x02,
	0x03, 0x01,
}

func expectPipeRetired(t *testing.T, f *fixture, pipe ControlPipe) {
	t.Helper()
	for _, addr := range []Addr{pipe.Setup, pipe.Data, pipe.Status} {
		if mustQTD(t, f.mem, addr).IsActive() {
			t.Errorf("qTD %v still active", addr)
		}
	}
	q := mustQHD(t, f.mem, pipe.QHD)
	if q.Overlay != *mustQTD(t, f.mem, pipe.Status) {
		t.Error("overlay does not match the Status qTD")
	}
	if q.Current != pipe.Status {
		t.Errorf("current = %v, want %v", q.Current, pipe.Status)
	}
}

func dataBuffer(t *testing.T, f *fixture, pipe ControlPipe, n int) []byte {
	t.Helper()
	buf, err := f.mem.Buffer(mustQTD(t, f.mem, pipe.Data).Buffers[0], n)
	if err != nil {
		t.Fatalf("data buffer: %v", err)
	}
	return buf
}

func TestCompleteControlTransfer_In(t *testing.T) {
	f := newFixture(t, 1, []int{1}, []int{0})
	pipe := f.addControlPipe(t, 5, getDeviceDescriptor, 64)

	if err := f.eng.CompleteControlTransfer(f.st, 5, deviceDescriptor); err != nil {
		t.Fatalf("CompleteControlTransfer: %v", err)
	}

	if got := dataBuffer(t, f, pipe, len(deviceDescriptor)); !bytes.Equal(got, deviceDescriptor) {
		t.Errorf("data buffer = % x, want % x", got, deviceDescriptor)
	}
	expectPipeRetired(t, f, pipe)

	regs, _ := f.st.Registers(f.id)
	if want := StatusAsyncComplete | StatusPeriodicComplete; regs.Status != want {
		t.Errorf("USBSTS = %#x, want %#x", regs.Status, want)
	}
	f.rec.expectInterrupts(t, f.id)
}

func TestCompleteControlTransfer_CopiesDeclaredLengthOnly(t *testing.T) {
	f := newFixture(t, 0, []int{0}, []int{0})
	setup := getDeviceDescriptor
	setup.Length = 8
	pipe := f.addControlPipe(t, 1, setup, 64)

	if err := f.eng.CompleteControlTransfer(f.st, 1, deviceDescriptor); err != nil {
		t.Fatalf("CompleteControlTransfer: %v", err)
	}

	buf := dataBuffer(t, f, pipe, 64)
	if !bytes.Equal(buf[:8], deviceDescriptor[:8]) {
		t.Errorf("data buffer = % x, want % x", buf[:8], deviceDescriptor[:8])
	}
	if !bytes.Equal(buf[8:], make([]byte, 56)) {
		t.Error("bytes beyond the declared length were written")
	}
}

func TestCompleteControlTransfer_NoDataCopy(t *testing.T) {
	tests := []struct {
		name  string
		setup hal.SetupPacket
	}{
		{"set address", hal.SetupPacket{RequestType: 0x00, Request: 0x05, Value: 5}},
		{"in with zero length", hal.SetupPacket{RequestType: 0x80, Request: 0x00}},
		{"out with data", hal.SetupPacket{RequestType: 0x21, Request: 0x09, Value: 0x0200, Length: 8}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 0, []int{0}, []int{0})
			pipe := f.addControlPipe(t, 3, tt.setup, 16)
			fill := bytes.Repeat([]byte{0xA5}, 16)
			copy(dataBuffer(t, f, pipe, 16), fill)

			if err := f.eng.CompleteControlTransfer(f.st, 3, deviceDescriptor); err != nil {
				t.Fatalf("CompleteControlTransfer: %v", err)
			}

			if got := dataBuffer(t, f, pipe, 16); !bytes.Equal(got, fill) {
				t.Errorf("data buffer = % x, want untouched", got)
			}
			expectPipeRetired(t, f, pipe)
			f.rec.expectInterrupts(t, f.id)
		})
	}
}

func TestCompleteControlTransfer_Preconditions(t *testing.T) {
	tests := []struct {
		name     string
		dev      hal.DeviceAddress
		dataCap  int
		response []byte
		wantErr  error
	}{
		{"unknown device", 9, 64, deviceDescriptor, pkg.ErrUnknownDevice},
		{"short response", 2, 64, deviceDescriptor[:10], pkg.ErrInvalidParameter},
		{"data buffer too small", 2, 16, deviceDescriptor, pkg.ErrBufferTooSmall},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 0, []int{0}, []int{0})
			pipe := f.addControlPipe(t, 2, getDeviceDescriptor, tt.dataCap)
			qhds, qtds := descriptors(f.mem)

			err := f.eng.CompleteControlTransfer(f.st, tt.dev, tt.response)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CompleteControlTransfer error = %v, want %v", err, tt.wantErr)
			}

			expectDescriptorsUnchanged(t, f.mem, qhds, qtds)
			if got := dataBuffer(t, f, pipe, tt.dataCap); !bytes.Equal(got, make([]byte, tt.dataCap)) {
				t.Error("data buffer written on failure")
			}
			f.rec.expectInterrupts(t)
		})
	}
}

func TestCompleteControlTransfer_MissingSetupBuffer(t *testing.T) {
	f := newFixture(t, 0, []int{0}, []int{0})
	pipe := f.addControlPipe(t, 4, getDeviceDescriptor, 64)
	mustQTD(t, f.mem, pipe.Setup).Buffers[0] = 0

	err := f.eng.CompleteControlTransfer(f.st, 4, deviceDescriptor)
	if !errors.Is(err, pkg.ErrSetupPacketTooShort) || !errors.Is(err, pkg.ErrInvalidAddress) {
		t.Fatalf("CompleteControlTransfer error = %v, want setup packet error", err)
	}
	f.rec.expectInterrupts(t)
}

func TestCompleteControlTransfer_Twice(t *testing.T) {
	f := newFixture(t, 0, []int{0}, []int{0})
	pipe := f.addControlPipe(t, 6, getDeviceDescriptor, 64)

	for i := 0; i < 2; i++ {
		if err := f.eng.CompleteControlTransfer(f.st, 6, deviceDescriptor); err != nil {
			t.Fatalf("CompleteControlTransfer #%d: %v", i+1, err)
		}
	}

	expectPipeRetired(t, f, pipe)
	f.rec.expectInterrupts(t, f.id, f.id)
}

func TestCompleteControlTransfer_ThenRun(t *testing.T) {
	f := newFixture(t, 0, []int{2}, []int{1})
	pipe := f.addControlPipe(t, 1, getDeviceDescriptor, 64)

	if err := f.eng.CompleteControlTransfer(f.st, 1, deviceDescriptor); err != nil {
		t.Fatalf("CompleteControlTransfer: %v", err)
	}
	status := mustQHD(t, f.mem, pipe.QHD).Overlay

	if err := f.eng.Run(f.st, f.id); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if mustQHD(t, f.mem, pipe.QHD).Overlay != status {
		t.Error("Run changed the overlay of a completed control pipe")
	}
	f.rec.expectInterrupts(t, f.id, f.id)
}
