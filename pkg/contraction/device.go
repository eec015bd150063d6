package contraction

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// Device identifies one physical accelerator.
type Device struct {
	Name            string
	NumComputeUnits int
	ClockFrequency  int // MHz
	FlopsPerClock   int
}

func (d Device) String() string {
	return fmt.Sprintf("[Device; %s; %d; %d; %d]", d.Name, d.NumComputeUnits, d.ClockFrequency, d.FlopsPerClock)
}

// SanitizeDeviceName replaces every non-alphanumeric rune with '_'.
func SanitizeDeviceName(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, name)
}

// DeviceProfile is the ordered device list forming one logical target.
type DeviceProfile struct {
	Devices []Device
}

func NewDeviceProfile(devices ...Device) DeviceProfile {
	return DeviceProfile{Devices: slices.Clone(devices)}
}

func (p DeviceProfile) Clone() DeviceProfile {
	return DeviceProfile{Devices: slices.Clone(p.Devices)}
}

func (p DeviceProfile) Equal(o DeviceProfile) bool {
	return slices.Equal(p.Devices, o.Devices)
}

func (p DeviceProfile) Key() string {
	var k keyBuilder
	k.int(len(p.Devices))
	for _, d := range p.Devices {
		k.str(d.Name).int(d.NumComputeUnits).int(d.ClockFrequency).int(d.FlopsPerClock)
	}
	return k.String()
}

// LibString joins device names with '_'.
func (p DeviceProfile) LibString() string {
	names := make([]string, len(p.Devices))
	for i, d := range p.Devices {
		names[i] = d.Name
	}
	return strings.Join(names, "_")
}

func (p DeviceProfile) String() string {
	devs := make([]string, len(p.Devices))
	for i, d := range p.Devices {
		devs[i] = d.String()
	}
	return "[" + strings.Join(devs, ", ") + "]"
}
