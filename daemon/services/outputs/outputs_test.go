package outputs

import (
	"sync"
	"testing"
	"time"

	"github.com/kdys14/smokehouse-controller/daemon/dto"
)

type recordingDriver struct {
	mu       sync.Mutex
	ssr      map[int]uint8
	fanOn    bool
	smoke    uint8
	buzzerOn bool
}

func newRecordingDriver() *recordingDriver {
	return &recordingDriver{ssr: make(map[int]uint8)}
}

func (d *recordingDriver) WriteSSR(channel int, duty uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ssr[channel] = duty
}
func (d *recordingDriver) WriteFan(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fanOn = on
}
func (d *recordingDriver) WriteSmokeFan(duty uint8) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.smoke = duty
}
func (d *recordingDriver) WriteBuzzer(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buzzerOn = on
}
func (d *recordingDriver) get(ch int) uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ssr[ch]
}

func TestMapPowerToHeatersMode1(t *testing.T) {
	drv := newRecordingDriver()
	o := New(drv)
	o.InitHeaterEnable()
	o.he.H1, o.he.H2, o.he.H3 = true, true, true

	o.MapPowerToHeaters(50, 1)
	if got := drv.get(1); got != uint8(50*2.55+0.5) {
		t.Errorf("SSR1 = %d, want %d", got, uint8(50*2.55+0.5))
	}
	if got := drv.get(2); got != 0 {
		t.Errorf("SSR2 = %d, want 0", got)
	}
}

func TestMapPowerToHeatersMode2(t *testing.T) {
	drv := newRecordingDriver()
	o := New(drv)
	o.he.H1, o.he.H2, o.he.H3 = true, true, true

	o.MapPowerToHeaters(75, 2)
	// p=75 > 50: p1=100, p2=2*(75-50)=50
	wantP1 := uint8(100 * 2.55)
	wantP2 := uint8(50*2.55 + 0.5)
	if got := drv.get(1); got != wantP1 {
		t.Errorf("SSR1 = %d, want %d", got, wantP1)
	}
	if got := drv.get(2); got != wantP2 {
		t.Errorf("SSR2 = %d, want %d", got, wantP2)
	}
}

func TestMapPowerToHeatersRespectsSoftEnable(t *testing.T) {
	drv := newRecordingDriver()
	o := New(drv)
	o.InitHeaterEnable() // all false

	o.MapPowerToHeaters(100, 3)
	if got := drv.get(1); got != 0 {
		t.Errorf("SSR1 = %d, want 0 (not soft-enabled)", got)
	}
	if got := drv.get(2); got != 0 {
		t.Errorf("SSR2 = %d, want 0 (not soft-enabled)", got)
	}
	if got := drv.get(3); got != 0 {
		t.Errorf("SSR3 = %d, want 0 (not soft-enabled)", got)
	}
}

func TestSoftEnableStagger(t *testing.T) {
	o := New(newRecordingDriver())
	o.heaterMutex.Lock(time.Second)
	o.he = dto.HeaterEnable{
		T1: time.Now().Add(-2 * time.Second),
		T2: time.Now().Add(-2 * time.Second),
		T3: time.Now().Add(-2 * time.Second),
	}
	o.heaterMutex.Unlock()

	o.ApplySoftEnable()
	if o.AreHeatersReady() {
		t.Error("expected heaters not ready: h3 requires >3s, only 2s elapsed")
	}
	if !o.he.H1 || !o.he.H2 {
		t.Errorf("expected h1,h2 enabled after 2s, got he=%+v", o.he)
	}
	if o.he.H3 {
		t.Error("expected h3 still disabled after only 2s")
	}
}

func TestAllOutputsOffZeroesEverything(t *testing.T) {
	drv := newRecordingDriver()
	o := New(drv)
	o.he.H1, o.he.H2, o.he.H3 = true, true, true
	o.MapPowerToHeaters(100, 1)
	o.writeFan(true)

	o.AllOutputsOff()

	if got := drv.get(1); got != 0 {
		t.Errorf("SSR1 = %d after AllOutputsOff, want 0", got)
	}
	if drv.fanOn {
		t.Error("fan still on after AllOutputsOff")
	}
	if drv.smoke != 0 {
		t.Errorf("smoke fan = %d after AllOutputsOff, want 0", drv.smoke)
	}
}

func TestBuzzerBeepPattern(t *testing.T) {
	drv := newRecordingDriver()
	o := New(drv)

	o.Beep(2, time.Millisecond, time.Millisecond)
	if !o.BuzzerActive() {
		t.Fatal("expected buzzer active immediately after Beep")
	}
	if !drv.buzzerOn {
		t.Fatal("expected buzzer GPIO high immediately after Beep")
	}

	deadline := time.Now().Add(time.Second)
	for o.BuzzerActive() && time.Now().Before(deadline) {
		o.HandleBuzzer()
		time.Sleep(time.Millisecond)
	}
	if o.BuzzerActive() {
		t.Error("buzzer pattern never completed")
	}
}

func TestBuzzerIgnoresOverlappingBeep(t *testing.T) {
	o := New(newRecordingDriver())
	o.Beep(5, time.Second, time.Second)
	o.Beep(1, time.Millisecond, time.Millisecond)
	if o.buzzer.beepsRemaining != 5 {
		t.Errorf("beepsRemaining = %d, want 5 (second Beep should be ignored)", o.buzzer.beepsRemaining)
	}
}

func TestFanCyclicTogglesPhases(t *testing.T) {
	drv := newRecordingDriver()
	o := New(drv)

	onTime := 5 * time.Millisecond
	offTime := 5 * time.Millisecond

	o.HandleFanLogic(dto.FanCyclic, onTime, offTime)
	if !drv.fanOn {
		t.Fatal("expected fan on at start of cyclic phase")
	}

	time.Sleep(onTime + 2*time.Millisecond)
	o.HandleFanLogic(dto.FanCyclic, onTime, offTime)
	if drv.fanOn {
		t.Error("expected fan off after onTime elapsed")
	}
}

func TestFanModeOffAndOn(t *testing.T) {
	drv := newRecordingDriver()
	o := New(drv)

	o.HandleFanLogic(dto.FanOn, 0, 0)
	if !drv.fanOn {
		t.Error("expected fan on for FanOn mode")
	}
	o.HandleFanLogic(dto.FanOff, 0, 0)
	if drv.fanOn {
		t.Error("expected fan off for FanOff mode")
	}
}
