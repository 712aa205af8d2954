package main

import (
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rakyury/pmu-30-sub009/channel"
	"github.com/rakyury/pmu-30-sub009/config"
	"github.com/rakyury/pmu-30-sub009/drivers"
	"github.com/rakyury/pmu-30-sub009/wire"
)

// connState bundles the context handleFrame needs across every
// connection: the live registry/bank/protection status and the binary
// config path/reload hook shared with run()'s fsnotify watcher. reg
// and bank are swapped wholesale by reload, so handlers always read
// them through st rather than capturing a snapshot.
//
// mu serializes every access to reg/bank/prot: the tick loop (run's
// ticker, which also drives Bank's driver models), a config reload
// (fsnotify or CmdSetConfig), CmdChGetValue/CmdChSetValue, and
// telemetry sampling all touch the same Registry/Bank, and spec.md
// section 5 requires apply_config and tick be mutually exclusive and
// the swap happen at a tick boundary. Holding mu across the whole of
// each of those operations (not just the reg/bank pointer read) gives
// both: a reload can only land between two ticks, never inside one,
// and no reader ever observes a Channel/Bank field mid-Tick mutation.
type connState struct {
	mu sync.Mutex

	reg        *channel.Registry
	bank       *drivers.Bank
	prot       *drivers.Protection
	configPath string
	reload     func()
}

// telemetryPeriod is the CmdTelemData push rate; spec.md leaves the
// exact rate to the implementation, only requiring it be bounded by
// the control loop's own tick rate.
const telemetryPeriod = 100 * time.Millisecond

// handleConn runs one host connection's command loop: feed bytes to a
// wire.Parser, reply to each recognized frame. Each frame reads
// st.reg under st.mu, so a config reload mid-connection is picked up
// by the next frame handled after reload() has swapped the registry
// (spec.md places no concurrency requirement on the host link beyond
// "asynchronous").
func handleConn(conn net.Conn, st *connState) {
	defer conn.Close()

	// telemStop is non-nil only while a CmdTelemStart/CmdTelemStop pair
	// is open on this connection; at most one telemetry stream runs per
	// connection, matching spec.md section 4.3's single active stream
	// per link.
	var telemStop chan struct{}
	defer func() {
		if telemStop != nil {
			close(telemStop)
		}
	}()

	p := wire.NewParser()
	p.OnFrame = func(cmd wire.Command, payload []byte) {
		handleFrame(conn, st, &telemStop, cmd, payload)
	}
	p.OnError = func(kind wire.ErrorKind) {
		fail(conn, kind)
	}

	buf := make([]byte, 512)
	for {
		n, err := conn.Read(buf)
		for i := 0; i < n; i++ {
			p.Feed(buf[i])
		}
		if err != nil {
			return
		}
	}
}

func handleFrame(conn net.Conn, st *connState, telemStop *chan struct{}, cmd wire.Command, payload []byte) {
	switch cmd {
	case wire.CmdPing:
		reply(conn, wire.CmdPong, nil)

	case wire.CmdGetCaps:
		st.mu.Lock()
		caps := capsFor(st.reg)
		st.mu.Unlock()
		reply(conn, wire.CmdCapsResp, caps.Encode())

	case wire.CmdTelemStart:
		if *telemStop != nil {
			fail(conn, wire.ErrKindBusy)
			return
		}
		*telemStop = make(chan struct{})
		go streamTelemetry(conn, st, *telemStop)

	case wire.CmdTelemStop:
		if *telemStop == nil {
			fail(conn, wire.ErrKindNotConnected)
			return
		}
		close(*telemStop)
		*telemStop = nil

	case wire.CmdChGetValue:
		if len(payload) < 2 {
			fail(conn, wire.ErrKindInvalidParam)
			return
		}
		id := uint16(payload[0]) | uint16(payload[1])<<8
		st.mu.Lock()
		v, err := st.reg.GetValue(id)
		st.mu.Unlock()
		if err != nil {
			fail(conn, wire.ErrKindChannelInvalid)
			return
		}
		reply(conn, wire.CmdChValueResp, encodeChValue(id, v))

	case wire.CmdChSetValue:
		if len(payload) < 6 {
			fail(conn, wire.ErrKindInvalidParam)
			return
		}
		id := uint16(payload[0]) | uint16(payload[1])<<8
		v := int32(uint32(payload[2]) | uint32(payload[3])<<8 | uint32(payload[4])<<16 | uint32(payload[5])<<24)
		st.mu.Lock()
		err := st.reg.SetValue(id, v)
		st.mu.Unlock()
		if err != nil {
			fail(conn, wire.ErrKindChannelInvalid)
			return
		}
		reply(conn, wire.CmdChValueResp, encodeChValue(id, v))

	case wire.CmdGetConfig:
		data, err := os.ReadFile(st.configPath)
		if err != nil {
			fail(conn, wire.ErrKindNotSupported)
			return
		}
		reply(conn, wire.CmdConfigData, data)

	case wire.CmdSetConfig:
		// The whole record must fit in one frame (MaxPayloadLen
		// bytes); pmuctl's configset refuses to send anything larger
		// rather than attempt to chunk it.
		if _, err := config.Build(payload); err != nil {
			fail(conn, wire.ErrKindConfigInvalid)
			return
		}
		if err := os.WriteFile(st.configPath, payload, 0o644); err != nil {
			fail(conn, wire.ErrKindFlashError)
			return
		}
		st.reload()
		reply(conn, wire.CmdConfigAck, nil)

	default:
		fail(conn, wire.ErrKindUnknownCmd)
	}
}

func capsFor(reg *channel.Registry) wire.Caps {
	return wire.Caps{
		ProfetCount:  uint16(reg.Count(channel.KindPowerOutput)),
		HBridgeCount: uint16(reg.Count(channel.KindHBridge)),
		AdcCount:     uint16(reg.Count(channel.KindAnalogInput)),
		DinCount:     uint16(reg.Count(channel.KindDigitalInput)),
		CanCount:     uint16(reg.Count(channel.KindCanRx) + reg.Count(channel.KindCanTx)),
		MaxChannels:  channel.MaxChannels,
		Features:     wire.FeaturePid | wire.FeatureLogic | wire.FeatureTimers | wire.FeatureFilters | wire.FeatureTables2D | wire.FeatureTables3D,
	}
}

func encodeChValue(id uint16, v int32) []byte {
	return []byte{
		byte(id), byte(id >> 8),
		byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24),
	}
}

func reply(conn net.Conn, cmd wire.Command, payload []byte) {
	frame, err := wire.Build(cmd, payload)
	if err != nil {
		log.Printf("hostlink: building reply: %v", err)
		return
	}
	conn.Write(frame)
}

func fail(conn net.Conn, kind wire.ErrorKind) {
	reply(conn, wire.CmdError, wire.ErrorPayload{Kind: kind}.Encode())
}
