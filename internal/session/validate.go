package session

import (
	"fmt"
	"regexp"
)

var deviceIDRegexp = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidateDeviceID checks that id is a plausible device identifier and safe
// to embed in filesystem paths and bus object paths.
func ValidateDeviceID(id string) error {
	if !deviceIDRegexp.MatchString(id) {
		return fmt.Errorf("invalid device id %q: must match ^[A-Za-z0-9_-]{1,64}$", id)
	}
	return nil
}
