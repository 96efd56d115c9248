//go:build !linux

package bluetooth

import "tinygo.org/x/bluetooth"

func openAdapter(string) *bluetooth.Adapter {
	return bluetooth.DefaultAdapter
}
