package kernel

import (
	"errors"
	"fmt"

	"github.com/vishvananda/netlink"
)

// Devices answers interface-existence checks against the host's link
// table.
type Devices struct{}

func (Devices) DeviceExists(name string) (bool, error) {
	_, err := netlink.LinkByName(name)
	if err != nil {
		var notFound netlink.LinkNotFoundError
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up link %q: %w", name, err)
	}
	return true, nil
}
