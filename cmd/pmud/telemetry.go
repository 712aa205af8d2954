package main

import (
	"context"
	"net"
	"time"

	"golang.org/x/time/rate"

	"github.com/rakyury/pmu-30-sub009/wire"
)

// streamTelemetry pushes one CmdTelemData frame at telemetryPeriod's
// rate until stop is closed, a write fails, or the limiter's context
// is canceled, implementing the unsolicited push side of spec.md
// section 4.3's CmdTelemStart/CmdTelemStop pair. Pacing follows
// nkt.AddressScan's rate.NewLimiter/Wait shape rather than a bare
// ticker, so a burst of catch-up packets after a slow write never
// exceeds the advertised cadence.
//
// It reads st.bank/st.prot fresh every packet through buildTelemetryFrame,
// which takes st.mu for the duration of the sample so a packet never
// straddles a tick or a config swap (spec.md section 5): a reload
// mid-stream is picked up whole on the next packet, never half-applied
// within one.
func streamTelemetry(conn net.Conn, st *connState, stop chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-stop
		cancel()
	}()
	defer cancel()

	limiter := rate.NewLimiter(rate.Every(telemetryPeriod), 1)
	start := time.Now()
	var seq uint32
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		tf := buildTelemetryFrame(st, seq, uint32(time.Since(start).Milliseconds()))
		seq++
		frame, err := wire.Build(wire.CmdTelemData, wire.BuildTelemetry(tf))
		if err != nil {
			return
		}
		if _, err := conn.Write(frame); err != nil {
			return
		}
	}
}

// buildTelemetryFrame samples the bank and protection status into a
// wire.TelemetryFrame. Outputs/currents/hbridges are written in
// Bank's ascending-hardware-index order (see Bank.OutputIndices'
// doc); a client that first calls CmdGetCaps gets the counts needed
// to decode these fixed-length sections.
func buildTelemetryFrame(st *connState, seq, nowMs uint32) wire.TelemetryFrame {
	st.mu.Lock()
	defer st.mu.Unlock()

	status := st.prot.Status()

	outIdx := st.bank.OutputIndices()
	states := make([]uint8, 0, len(outIdx))
	currents := make([]uint16, 0, len(outIdx))
	for _, idx := range outIdx {
		state, currentMa, _, ok := st.bank.OutputSnapshot(idx)
		if !ok {
			continue
		}
		states = append(states, uint8(state))
		currents = append(currents, clampToU16(currentMa))
	}

	hbIdx := st.bank.HBridgeIndices()
	hbSamples := make([]wire.HBridgeSample, 0, len(hbIdx))
	for _, idx := range hbIdx {
		s, ok := st.bank.HBridgeSnapshot(idx)
		if !ok {
			continue
		}
		hbSamples = append(hbSamples, wire.HBridgeSample{
			Mode:         s.Mode,
			DutyPermille: s.DutyPermille,
			CurrentMa:    s.CurrentMa,
			PositionRaw:  s.PositionRaw,
			Flags:        s.FaultBits,
		})
	}

	sections := wire.SectionOutputs | wire.SectionCurrents | wire.SectionHBridge | wire.SectionFaults

	return wire.TelemetryFrame{
		Header: wire.TelemetryHeader{
			Seq:         seq,
			TimestampMs: nowMs,
			VoltageMv:   clampToU16(status.BatteryVoltageMv),
			McuTempC10:  status.McuTempC,
			Sections:    sections,
		},
		OutputStates: states,
		CurrentsMa:   currents,
		HBridges:     hbSamples,
		FaultBits:    status.FaultFlags,
	}
}

func clampToU16(v int32) uint16 {
	if v < 0 {
		return 0
	}
	if v > 65535 {
		return 65535
	}
	return uint16(v)
}
