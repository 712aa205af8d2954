package drivers

import "testing"

func TestProtectionFlagsUndervoltage(t *testing.T) {
	p := &Protection{AutoFaultsEnabled: true}
	st := p.Update(5000, 250, 300, 1000, false)
	if st.FaultFlags&uint32(FaultUndervoltage) == 0 {
		t.Fatalf("expected undervoltage flag, got %#x", st.FaultFlags)
	}
}

func TestProtectionFlagsOvervoltage(t *testing.T) {
	p := &Protection{AutoFaultsEnabled: true}
	st := p.Update(23000, 250, 300, 1000, false)
	if st.FaultFlags&uint32(FaultOvervoltage) == 0 {
		t.Fatalf("expected overvoltage flag, got %#x", st.FaultFlags)
	}
}

func TestProtectionOvertempCriticalSupersedesWarning(t *testing.T) {
	p := &Protection{AutoFaultsEnabled: true}
	st := p.Update(13800, 1300, 300, 1000, false)
	if st.FaultFlags&uint32(FaultOvertempCritical) == 0 {
		t.Fatalf("expected critical flag at 130C, got %#x", st.FaultFlags)
	}
	if st.FaultFlags&uint32(FaultOvertempWarning) != 0 {
		t.Fatalf("warning flag should not also be set once critical: %#x", st.FaultFlags)
	}
}

func TestProtectionDisabledSkipsAutoFaults(t *testing.T) {
	p := &Protection{AutoFaultsEnabled: false}
	st := p.Update(1000, 2000, 2000, 0, false)
	if st.FaultFlags != 0 {
		t.Fatalf("expected no flags with auto-faults disabled, got %#x", st.FaultFlags)
	}
}

func TestProtectionChannelLatchedBit(t *testing.T) {
	p := &Protection{AutoFaultsEnabled: false}
	st := p.Update(13800, 250, 250, 0, true)
	if st.FaultFlags&uint32(FaultChannelLatched) == 0 {
		t.Fatalf("expected channel-latched flag to be independent of AutoFaultsEnabled")
	}
}
