// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import "encoding/binary"

// Headset USB identifiers.
const (
	VendorID  uint16 = 0x054c
	ProductID uint16 = 0x09af
)

// Sensor report layout. Each axis is reported twice per packet; the two
// readings are summed.
const (
	PacketSize = 64

	offTimestamp = 16
	offRight1    = 20
	offTop1      = 22
	offRoll1     = 24
	offRight2    = 36
	offTop2      = 38
	offRoll2     = 40
)

// RateScale converts a summed raw reading into degrees per millisecond.
const RateScale = 0.00003125

// RawPacket is the undecoded content of one sensor report.
type RawPacket struct {
	Right      int32  `json:"right"`
	Top        int32  `json:"top"`
	Roll       int32  `json:"roll"`
	DeviceTime uint32 `json:"device_time"`
}

// Sample is one decoded angular-rate reading.
type Sample struct {
	RightRate float64 `json:"right_rate"` // degrees per millisecond
	TopRate   float64 `json:"top_rate"`
	RollRate  float64 `json:"roll_rate"`
	Micros    int64   `json:"micros"` // cumulative since the channel started
}

// DecodePacket parses a sensor report. Reports of unexpected length are
// rejected; some platforms append one trailing byte.
func DecodePacket(buf []byte) (RawPacket, bool) {
	if len(buf) != PacketSize && len(buf) != PacketSize+1 {
		return RawPacket{}, false
	}
	le := binary.LittleEndian
	pair := func(a, b int) int32 {
		return int32(int16(le.Uint16(buf[a:]))) + int32(int16(le.Uint16(buf[b:])))
	}
	return RawPacket{
		Right:      pair(offRight1, offRight2),
		Top:        pair(offTop1, offTop2),
		Roll:       pair(offRoll1, offRoll2),
		DeviceTime: le.Uint32(buf[offTimestamp:]),
	}, true
}

// Rates converts the raw readings into the tracker's axis convention:
// positive right turns right, positive top looks up, positive roll
// tilts clockwise.
func (p RawPacket) Rates() (right, top, roll float64) {
	return -float64(p.Right) * RateScale,
		float64(p.Top) * RateScale,
		-float64(p.Roll) * RateScale
}

// SplitModeCommand builds the control report that toggles the headset's
// split-screen mode.
func SplitModeCommand(on bool) []byte {
	cmd := []byte{0x23, 0x00, 0xaa, 0x04, 0x00, 0x00, 0x00, 0x00}
	if on {
		cmd[4] = 0x01
	}
	return cmd
}
