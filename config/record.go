package config

import (
	"errors"

	"github.com/rakyury/pmu-30-sub009/channel"
	"github.com/rakyury/pmu-30-sub009/internal/crcx"
)

// Magic is the fixed configuration record magic number (spec.md
// section 3).
const Magic uint32 = 0x50434647

// Version is the only configuration format major version this core
// understands (spec.md section 6: "Parsers must reject unknown major
// versions").
const Version uint16 = 2

var (
	errShortBuffer  = errors.New("config: buffer too short")
	errUnterminated = errors.New("config: unterminated string in interning table")
)

// Header is the fixed-size record header (spec.md section 3).
type Header struct {
	Magic        uint32
	Version      uint16
	DeviceType   uint16
	TotalSize    uint32
	Crc32        uint32
	ChannelCount uint16
	Flags        uint16
}

const headerSize = 4 + 2 + 2 + 4 + 4 + 2 + 2

// Record is a fully decoded (but not yet registry-validated)
// configuration record.
type Record struct {
	Header   Header
	Entries  []channel.Entry
}

// Parse decodes and CRC-validates a binary configuration record,
// returning the *channel.ConfigError taxonomy of spec.md section 7 on
// any structural problem. It does not perform id-range, duplicate, or
// cycle validation; callers pass Record.Entries to channel.Build for
// that (spec.md section 4.1's apply_config aborts atomically on any
// failure from either stage).
func Parse(data []byte) (*Record, error) {
	if len(data) < headerSize {
		return nil, &channel.ConfigError{Kind: channel.ErrSizeMismatch, Detail: "record shorter than header"}
	}
	r := newReader(data)
	h := Header{
		Magic:        r.u32(),
		Version:      r.u16(),
		DeviceType:   r.u16(),
		TotalSize:    r.u32(),
		Crc32:        r.u32(),
		ChannelCount: r.u16(),
		Flags:        r.u16(),
	}
	if r.err != nil {
		return nil, &channel.ConfigError{Kind: channel.ErrSizeMismatch, Detail: r.err.Error()}
	}
	if h.Magic != Magic {
		return nil, &channel.ConfigError{Kind: channel.ErrBadMagic, Detail: "magic mismatch"}
	}
	if h.Version != Version {
		return nil, &channel.ConfigError{Kind: channel.ErrBadVersion, Detail: "unsupported major version"}
	}
	if int(h.TotalSize) != len(data) {
		return nil, &channel.ConfigError{Kind: channel.ErrSizeMismatch, Detail: "total_size field does not match record length"}
	}

	body := data[headerSize:]
	if crcx.Config32(body) != h.Crc32 {
		return nil, &channel.ConfigError{Kind: channel.ErrBadCrc, Detail: "crc32 mismatch"}
	}

	br := newReader(body)
	entries := make([]channel.Entry, 0, h.ChannelCount)
	rawEntries := make([]rawEntry, 0, h.ChannelCount)
	for i := 0; i < int(h.ChannelCount); i++ {
		re, err := decodeEntryHeader(br)
		if err != nil {
			return nil, err
		}
		rawEntries = append(rawEntries, re)
	}
	strings, err := decodeStringTable(br)
	if err != nil {
		return nil, err
	}
	if br.err != nil {
		return nil, &channel.ConfigError{Kind: channel.ErrSizeMismatch, Detail: br.err.Error()}
	}

	for _, re := range rawEntries {
		entry, err := re.resolve(strings)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return &Record{Header: h, Entries: entries}, nil
}

// Build parses a binary record and validates it into a fresh
// *channel.Registry in one call, the full apply_config contract of
// spec.md section 4.1.
func Build(data []byte) (*channel.Registry, error) {
	rec, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return channel.Build(rec.Entries)
}
