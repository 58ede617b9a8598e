// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sstallion/go-hid"
)

// HID interface numbers of the headset.
const (
	sensorInterface  = 4
	controlInterface = 5
)

var (
	// ErrDeviceNotFound means no headset interface matched the identifiers.
	ErrDeviceNotFound = errors.New("headset not found")
	// ErrTimeout is returned by Device reads when no report arrived in time.
	ErrTimeout = errors.New("read timeout")
)

// Device is one opened HID interface. *hid.Device satisfies it once
// wrapped by hidDevice; tests use fakes.
type Device interface {
	ReadWithTimeout(p []byte, timeout time.Duration) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// Headset holds the opened interfaces. Either may be nil when only one
// role was requested.
type Headset struct {
	Sensor  Device
	Control Device
}

// Close closes every opened interface.
func (h *Headset) Close() error {
	var errs []error
	if h.Sensor != nil {
		errs = append(errs, h.Sensor.Close())
	}
	if h.Control != nil {
		errs = append(errs, h.Control.Close())
	}
	return errors.Join(errs...)
}

var hidInit = sync.OnceValue(hid.Init)

type hidDevice struct {
	dev *hid.Device
}

func (d hidDevice) ReadWithTimeout(p []byte, timeout time.Duration) (int, error) {
	n, err := d.dev.ReadWithTimeout(p, timeout)
	if errors.Is(err, hid.ErrTimeout) || (err == nil && n == 0) {
		return 0, ErrTimeout
	}
	return n, err
}

func (d hidDevice) Write(p []byte) (int, error) { return d.dev.Write(p) }
func (d hidDevice) Close() error                { return d.dev.Close() }

// OpenHeadset opens the sensor interface, the control interface, or both.
func OpenHeadset(sensor, control bool) (*Headset, error) {
	if err := hidInit(); err != nil {
		return nil, fmt.Errorf("headset: hid init: %w", err)
	}

	paths := map[int]string{}
	err := hid.Enumerate(VendorID, ProductID, func(info *hid.DeviceInfo) error {
		nbr := info.InterfaceNbr
		// Some backends report -1; the path still ends with the interface.
		if nbr < 0 {
			switch {
			case strings.HasSuffix(info.Path, ":04"):
				nbr = sensorInterface
			case strings.HasSuffix(info.Path, ":05"):
				nbr = controlInterface
			}
		}
		if _, seen := paths[nbr]; !seen {
			paths[nbr] = info.Path
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("headset: enumerate: %w", err)
	}

	h := &Headset{}
	if sensor {
		d, err := openInterface(paths, sensorInterface, "sensor")
		if err != nil {
			return nil, err
		}
		h.Sensor = d
	}
	if control {
		d, err := openInterface(paths, controlInterface, "control")
		if err != nil {
			_ = h.Close()
			return nil, err
		}
		h.Control = d
	}
	return h, nil
}

func openInterface(paths map[int]string, nbr int, name string) (Device, error) {
	path, ok := paths[nbr]
	if !ok {
		return nil, fmt.Errorf("headset %s interface %d: %w", name, nbr, ErrDeviceNotFound)
	}
	dev, err := hid.OpenPath(path)
	if err != nil {
		return nil, fmt.Errorf("headset %s interface: open %s: %w", name, path, err)
	}
	log.Debug().Str("component", "sensors").Str("interface", name).Str("path", path).Msg("opened headset interface")
	return hidDevice{dev: dev}, nil
}
