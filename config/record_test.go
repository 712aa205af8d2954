package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rakyury/pmu-30-sub009/channel"
)

func sampleEntries() []channel.Entry {
	return []channel.Entry{
		{
			ID:      1,
			Kind:    channel.KindDigitalInput,
			Name:    "door_sw",
			Flags:   channel.FlagEnabled,
			Display: channel.Display{Unit: "", DecimalPlaces: 0, DataType: channel.DataTypeBool},
			Config: &channel.DigitalInputConfig{
				Mode:       channel.DigitalActiveLow,
				Pin:        3,
				Pullup:     true,
				DebounceMs: 20,
			},
		},
		{
			ID:      60,
			Kind:    channel.KindAnalogInput,
			Name:    "fuel_level",
			Flags:   channel.FlagEnabled,
			Display: channel.Display{Unit: "%", DecimalPlaces: 1, DataType: channel.DataTypeSigned},
			Config: &channel.AnalogInputConfig{
				Mode:     channel.AnalogCalibrated,
				Points:   []channel.CalPoint{{VoltageMv: 500, Value: 0}, {VoltageMv: 4500, Value: 1000}},
				MinValue: 0, MaxValue: 1000,
			},
		},
		{
			ID:    400,
			Kind:  channel.KindLogic,
			Name:  "door_or_fault",
			Flags: channel.FlagEnabled,
			Config: &channel.LogicConfig{
				Op:     channel.LogicOr,
				Inputs: []uint16{1},
			},
		},
		{
			ID:    110,
			Kind:  channel.KindPowerOutput,
			Name:  "fuel_pump",
			Flags: channel.FlagEnabled,
			Config: &channel.PowerOutputConfig{
				SourceID:       400,
				SoftStartMs:    100,
				InrushCurrentA: 22.5,
				InrushTimeMs:   50,
				CurrentLimitA:  15.0,
				RetryCount:     3,
				RetryDelayMs:   500,
				Pins:           []int{0, 1},
			},
		},
		{
			ID:    1300,
			Kind:  channel.KindPid,
			Name:  "fan_pid",
			Flags: channel.FlagEnabled,
			Config: &channel.PidConfig{
				PvID: 60, SetpointID: 60,
				Kp: 1.5, Ki: 0.25, Kd: 0.01,
				OutMin: 0, OutMax: 1000,
			},
		},
		{
			ID:    1280,
			Kind:  channel.KindEnum,
			Name:  "gear",
			Flags: channel.FlagEnabled,
			Config: &channel.EnumConfig{
				SourceID: 60,
				Labels:   map[int32]string{0: "P", 1: "R", 2: "N", 3: "D"},
			},
		},
	}
}

func TestEncodeParseRoundTrip(t *testing.T) {
	entries := sampleEntries()
	data, err := Encode(0x0042, 0, entries)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	rec, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if rec.Header.DeviceType != 0x0042 {
		t.Errorf("DeviceType = %#x, want 0x42", rec.Header.DeviceType)
	}
	if len(rec.Entries) != len(entries) {
		t.Fatalf("got %d entries, want %d", len(rec.Entries), len(entries))
	}
	for i, want := range entries {
		got := rec.Entries[i]
		if got.ID != want.ID || got.Kind != want.Kind || got.Name != want.Name {
			t.Errorf("entry %d: got %+v, want id/kind/name %d/%v/%s", i, got, want.ID, want.Kind, want.Name)
		}
		if diff := cmp.Diff(want.Config, got.Config); diff != "" {
			t.Errorf("entry %d config mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestParseRejectsBadMagic(t *testing.T) {
	data, _ := Encode(1, 0, sampleEntries())
	data[0] ^= 0xFF
	_, err := Parse(data)
	ce, ok := err.(*channel.ConfigError)
	if !ok || ce.Kind != channel.ErrBadMagic {
		t.Fatalf("got %v, want ErrBadMagic", err)
	}
}

func TestParseRejectsBadCrc(t *testing.T) {
	data, _ := Encode(1, 0, sampleEntries())
	data[len(data)-1] ^= 0xFF
	_, err := Parse(data)
	ce, ok := err.(*channel.ConfigError)
	if !ok || ce.Kind != channel.ErrBadCrc {
		t.Fatalf("got %v, want ErrBadCrc", err)
	}
}

func TestParseRejectsTruncated(t *testing.T) {
	data, _ := Encode(1, 0, sampleEntries())
	_, err := Parse(data[:headerSize+2])
	if err == nil {
		t.Fatal("expected error for truncated record")
	}
}

func TestBuildProducesWorkingRegistry(t *testing.T) {
	data, _ := Encode(1, 0, sampleEntries())
	reg, err := Build(data)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if reg.Len() != len(sampleEntries()) {
		t.Fatalf("registry has %d channels, want %d", reg.Len(), len(sampleEntries()))
	}
}

func TestDefaultRegistryBoots(t *testing.T) {
	reg := DefaultRegistry()
	if reg.Len() == 0 {
		t.Fatal("default registry has no channels")
	}
	data := Default(1)
	rec, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse(Default): %v", err)
	}
	if len(rec.Entries) != reg.Len() {
		t.Fatalf("Default() entry count %d != DefaultRegistry() count %d", len(rec.Entries), reg.Len())
	}
}
