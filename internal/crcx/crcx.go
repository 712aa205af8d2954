// Package crcx provides the two checksum tables used by the wire and
// config codecs, built once on top of github.com/snksoft/crc the same
// way the NKT telegram codec does (see nkt/telegram.go: crcTable =
// crc.NewTable(crc.XMODEM)).
package crcx

import "github.com/snksoft/crc"

var (
	// frameTable computes CRC-16-CCITT (poly 0x1021, init 0xFFFF) over
	// wire frames, per spec.md 4.3.
	frameTable = crc.NewTable(crc.CCITT)

	// configTable computes the CRC-32 (IEEE) that covers a binary
	// configuration record after its header, per spec.md 3/6.
	configTable = crc.NewTable(crc.CRC32)
)

// Frame16 computes CRC-16-CCITT over buf, init value 0xFFFF.
func Frame16(buf []byte) uint16 {
	init := frameTable.InitCrc()
	init = frameTable.UpdateCrc(init, buf)
	return frameTable.CRC16(init)
}

// Config32 computes the CRC-32 covering a configuration record body.
func Config32(buf []byte) uint32 {
	init := configTable.InitCrc()
	init = configTable.UpdateCrc(init, buf)
	return configTable.CRC32(init)
}
