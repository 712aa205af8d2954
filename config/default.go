package config

import "github.com/rakyury/pmu-30-sub009/channel"

// defaultSystemChannels is the minimal built-in channel set every
// device-default configuration carries regardless of product variant:
// the always-present SystemReadOnly telemetry sources (spec.md section
// 4.2.14) a host needs to tell that the unit booted with no usable
// application configuration.
func defaultSystemChannels() []channel.Entry {
	mk := func(id uint16, name string, kind channel.SystemReadOnlyKind, unit string, decimals uint8) channel.Entry {
		return channel.Entry{
			ID:    id,
			Kind:  channel.KindSystemReadOnly,
			Name:  name,
			Flags: channel.FlagEnabled | channel.FlagBuiltin | channel.FlagReadOnly,
			Display: channel.Display{
				Unit:          unit,
				DecimalPlaces: decimals,
				DataType:      channel.DataTypeSigned,
			},
			Config: &channel.SystemReadOnlyConfig{Kind: kind},
		}
	}
	return []channel.Entry{
		mk(1000, "battery_voltage", channel.SystemBatteryVoltageMv, "V", 3),
		mk(1001, "board_temp", channel.SystemBoardTempC10, "C", 1),
		mk(1002, "mcu_temp", channel.SystemMcuTempC10, "C", 1),
		mk(1003, "uptime", channel.SystemUptimeMs, "s", 3),
	}
}

// Default builds the device-default configuration record a core falls
// back to when the stored record's CRC fails validation at boot
// (spec.md section 6: "invalid CRC -> fall back to a device-default
// configuration and set CONFIG_INVALID in system status"). It carries
// only the built-in system channels; every application-defined channel
// is gone until the host re-uploads a valid record.
func Default(deviceType uint16) []byte {
	data, err := Encode(deviceType, 0, defaultSystemChannels())
	if err != nil {
		// defaultSystemChannels is a fixed, well-formed literal; encoding
		// it can only fail if encodeConfig itself is broken.
		panic(err)
	}
	return data
}

// DefaultRegistry is Default, already built into a Registry, for
// callers (boot path, tests) that want the fallback as a ready-to-tick
// registry rather than bytes to re-parse.
func DefaultRegistry() *channel.Registry {
	reg, err := channel.Build(defaultSystemChannels())
	if err != nil {
		panic(err)
	}
	return reg
}
