package scenario

import (
	"sort"
	"time"

	"sounder-sim/internal/device"
)

func step(after time.Duration, cmd device.Command, note string) Step {
	return Step{After: after, Command: device.Format(cmd), Note: note}
}

// BuiltIn returns the predefined command scripts.
func BuiltIn() map[string]Script {
	return map[string]Script{
		"sweep": {
			Name:        "sweep",
			Description: "Pan the speaker across the yard, tilt it, report and return to the home position.",
			Steps: []Step{
				step(0, device.Rotate{Axis: device.AxisX, Delta: 30}, "pan right"),
				step(2*time.Second, device.Rotate{Axis: device.AxisX, Delta: -60}, "pan left"),
				step(2*time.Second, device.Rotate{Axis: device.AxisX, Delta: 30}, "back to centre"),
				step(2*time.Second, device.Rotate{Axis: device.AxisY, Delta: 15}, "tilt up"),
				step(2*time.Second, device.Rotate{Axis: device.AxisY, Delta: -15}, "tilt down"),
				step(time.Second, device.StatusQuery{}, "report"),
				step(time.Second, device.Reset{}, "home"),
			},
		},
		"camera-outage": {
			Name:        "camera-outage",
			Description: "Drop the main camera, report, then bring it and the rear camera back online.",
			Steps: []Step{
				step(0, device.SetCamera{ID: "main", Action: string(device.CameraOffline)}, "main camera lost"),
				step(time.Second, device.StatusQuery{}, "report outage"),
				step(5*time.Second, device.SetCamera{ID: "main", Action: string(device.CameraOnline)}, "main camera restored"),
				step(time.Second, device.SetCamera{ID: "rear", Action: string(device.CameraOnline)}, "rear camera restored"),
				step(time.Second, device.StatusQuery{}, "report recovery"),
			},
		},
		"identity-check": {
			Name:        "identity-check",
			Description: "Look up the two known badges and one stranger, then mark the end of the check.",
			Steps: []Step{
				step(0, device.Identify{Token: "123456789012345678"}, "employee badge"),
				step(2*time.Second, device.Identify{Token: "987654321098765432"}, "visitor badge"),
				step(2*time.Second, device.Identify{Token: "000000000000000000"}, "unknown badge"),
				step(time.Second, device.Echo{Payload: "identity check complete"}, ""),
			},
		},
	}
}

// Names lists the built-in scripts in alphabetical order.
func Names() []string {
	arcs := BuiltIn()
	names := make([]string, 0, len(arcs))
	for n := range arcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
