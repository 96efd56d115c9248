//go:build linux

package bluetooth

import "tinygo.org/x/bluetooth"

func openAdapter(name string) *bluetooth.Adapter {
	if name == "" {
		return bluetooth.DefaultAdapter
	}
	return bluetooth.NewAdapter(name)
}
