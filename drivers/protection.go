package drivers

// SystemFault is a bit in Protection's aggregate fault_flags (spec.md
// section 4.4.3).
type SystemFault uint32

const (
	FaultUndervoltage SystemFault = 1 << iota
	FaultOvervoltage
	FaultOvertempWarning
	FaultOvertempCritical
	FaultChannelLatched
)

const (
	undervoltageMv     = 6000
	overvoltageMv      = 22000
	overtempWarningC   = 100.0
	overtempCriticalC  = 125.0
)

// ProtectionStatus is the system-wide snapshot published every tick
// (spec.md section 4.4.3 / section 7's get_system_status).
type ProtectionStatus struct {
	BatteryVoltageMv int32
	BoardTempC       int32 // x10
	McuTempC         int32 // x10
	TotalCurrentMa   int32
	FaultFlags       uint32
}

// Protection aggregates per-channel PowerOutput/HBridge observations
// into the system-wide fault record. It holds no per-channel state of
// its own; Update is called once per tick with that tick's readings
// (spec.md section 4.4.3).
type Protection struct {
	AutoFaultsEnabled bool

	status ProtectionStatus
}

// Update recomputes the aggregate status from the tick's raw sensor
// readings and the per-channel fault bits already latched by the
// PowerOutput/HBridge drivers this tick.
func (p *Protection) Update(batteryMv int32, boardTempC10, mcuTempC10 int32, totalCurrentMa int32, anyChannelFault bool) ProtectionStatus {
	var flags uint32
	if p.AutoFaultsEnabled {
		if batteryMv < undervoltageMv {
			flags |= uint32(FaultUndervoltage)
		}
		if batteryMv > overvoltageMv {
			flags |= uint32(FaultOvervoltage)
		}
		if float64(boardTempC10)/10.0 >= overtempCriticalC {
			flags |= uint32(FaultOvertempCritical)
		} else if float64(boardTempC10)/10.0 >= overtempWarningC {
			flags |= uint32(FaultOvertempWarning)
		}
	}
	if anyChannelFault {
		flags |= uint32(FaultChannelLatched)
	}

	p.status = ProtectionStatus{
		BatteryVoltageMv: batteryMv,
		BoardTempC:       boardTempC10,
		McuTempC:         mcuTempC10,
		TotalCurrentMa:   totalCurrentMa,
		FaultFlags:       flags,
	}
	return p.status
}

// Status returns the most recently computed snapshot without
// recomputing it, used by the debug HTTP surface between ticks.
func (p *Protection) Status() ProtectionStatus { return p.status }
