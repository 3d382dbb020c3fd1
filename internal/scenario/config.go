// Package scenario drives the EHCI engine from YAML files. A scenario
// provisions controllers, schedule rings and device control pipes, then
// replays a list of hardware events against them.
package scenario

// Scenario is the root of a scenario file.
type Scenario struct {
	Name        string             `yaml:"name"`
	Controllers []ControllerConfig `yaml:"controllers"`
	Devices     []DeviceConfig     `yaml:"devices"`
	Steps       []StepConfig       `yaml:"steps"`
}

// ---- CONTROLLER ----

// ControllerConfig describes one host controller and its two rings. The
// first queue of each list is the ring anchor.
type ControllerConfig struct {
	ID       uint8         `yaml:"id"`
	Async    []QueueConfig `yaml:"async"`
	Periodic []QueueConfig `yaml:"periodic"`
}

// QueueConfig describes one queue head and the qTDs pending behind it.
type QueueConfig struct {
	Name      string      `yaml:"name"`
	Device    uint8       `yaml:"device"`
	Endpoint  uint8       `yaml:"endpoint"`
	MaxPacket uint16      `yaml:"max_packet"`
	Halted    bool        `yaml:"halted"`
	QTDs      []QTDConfig `yaml:"qtds"`
}

// QTDConfig describes one pending qTD.
type QTDConfig struct {
	PID   string `yaml:"pid"` // in, out or setup
	Bytes uint16 `yaml:"bytes"`
	IOC   bool   `yaml:"ioc"`
}

// ---- DEVICE ----

// DeviceConfig binds a device address to a control pipe on a controller.
type DeviceConfig struct {
	Address    uint8       `yaml:"address"`
	Controller uint8       `yaml:"controller"`
	Setup      SetupConfig `yaml:"setup"`

	// Buffer is the capacity of the Data qTD buffer. Zero means the setup
	// length.
	Buffer int `yaml:"buffer"`
}

// SetupConfig is the SETUP packet queued on a device's control pipe.
type SetupConfig struct {
	RequestType uint8  `yaml:"request_type"`
	Request     uint8  `yaml:"request"`
	Value       uint16 `yaml:"value"`
	Index       uint16 `yaml:"index"`
	Length      uint16 `yaml:"length"`
}

// ---- STEP ----

// Step operations.
const (
	OpRun      = "run"
	OpRunError = "run_error"
	OpControl  = "control"
	OpPlug     = "plug"
	OpUnplug   = "unplug"
	OpAck      = "ack"
)

// StepConfig is one event replayed against the engine.
type StepConfig struct {
	Op         string   `yaml:"op"`
	Controller uint8    `yaml:"controller"`
	Device     uint8    `yaml:"device"`
	Speed      string   `yaml:"speed"`
	Response   HexBytes `yaml:"response"`
}
