package drivers

import "testing"

func TestPowerOutputSoftStartRamps(t *testing.T) {
	o := NewPowerOutput(PowerOutputParams{SoftStartMs: 100, AutoFaultEnabled: true, CurrentLimitA: 50})
	o.Command(true, 1000)

	var last uint16
	for ms := uint64(0); ms < 120; ms += 10 {
		obs := o.Update(ms, 10, 13800)
		if obs.DutyPermille < last {
			t.Fatalf("duty decreased mid-ramp: %d -> %d", last, obs.DutyPermille)
		}
		last = obs.DutyPermille
	}
	if last != 1000 {
		t.Fatalf("duty did not reach full scale after ramp: %d", last)
	}
}

func TestPowerOutputOvercurrentLatchesAndRetries(t *testing.T) {
	o := NewPowerOutput(PowerOutputParams{
		RLoadOhm: 1.0, CurrentLimitA: 1.0, AutoFaultEnabled: true,
		RetryCount: 2, RetryDelayMs: 50,
	})
	o.Command(true, 1000)

	var sawFault bool
	nowMs := uint64(0)
	for i := 0; i < 10; i++ {
		nowMs += 10
		obs := o.Update(nowMs, 10, 13800)
		if obs.State == uint8(StateOC) {
			sawFault = true
		}
	}
	if !sawFault {
		t.Fatal("expected overcurrent fault to be detected")
	}

	var sawRetryWait bool
	for i := 0; i < 20; i++ {
		nowMs += 10
		obs := o.Update(nowMs, 10, 13800)
		if obs.State == uint8(StateRetryWait) {
			sawRetryWait = true
		}
	}
	if !sawRetryWait {
		t.Fatal("expected state to move to RetryWait after a latched fault")
	}
}

func TestPowerOutputOffReturnsToIdle(t *testing.T) {
	o := NewPowerOutput(PowerOutputParams{})
	o.Command(true, 1000)
	o.Update(0, 10, 13800)
	o.Command(false, 0)
	obs := o.Update(10, 10, 13800)
	if obs.State != uint8(StateOff) {
		t.Fatalf("state = %d, want StateOff", obs.State)
	}
	if obs.DutyPermille != 0 {
		t.Fatalf("duty = %d, want 0 after off", obs.DutyPermille)
	}
}

func TestPowerOutputThermalRisesUnderLoad(t *testing.T) {
	o := NewPowerOutput(PowerOutputParams{RLoadOhm: 0.5, CurrentLimitA: 1000})
	o.Command(true, 1000)
	var last int32
	nowMs := uint64(0)
	for i := 0; i < 50; i++ {
		nowMs += 100
		obs := o.Update(nowMs, 100, 13800)
		last = obs.TemperatureC10
	}
	if last <= int32(ambientC*10) {
		t.Fatalf("temperature did not rise under sustained load: %d", last)
	}
}
