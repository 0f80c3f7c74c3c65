package keypad

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sweeney/keypad-driver/internal/gpio"
)

func newTestDriver(t *testing.T, mode Mode) (*Driver, *gpio.FakeMatrix) {
	t.Helper()
	f := gpio.NewFakeMatrix(testRows, testCols)
	d, err := New(f, Config{
		Mode:         mode,
		PollInterval: time.Millisecond,
		Capacity:     16,
		Rows:         testRows,
		Cols:         testCols,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d, f
}

func readAll(t *testing.T, d *Driver, want int) string {
	t.Helper()
	var got []byte
	p := make([]byte, 4)
	waitFor(t, "keys", func() bool {
		n, err := d.Read(p)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		got = append(got, p[:n]...)
		return len(got) >= want
	})
	return string(got)
}

func TestDriverPollMode(t *testing.T) {
	d, f := newTestDriver(t, ModePoll)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	f.Press(3, 1) // '0'
	if got := readAll(t, d, 1); got != "0" {
		t.Errorf("keys: got %q, want %q", got, "0")
	}
	f.Release(3, 1)
	waitFor(t, "release sweep", func() bool { return len(d.Held()) == 0 })
	f.Press(0, 0)
	if got := readAll(t, d, 1); got != "1" {
		t.Errorf("keys: got %q, want %q", got, "1")
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for _, r := range testRows {
		if f.Level(r) != gpio.Low {
			t.Errorf("row %d after Close: got %d, want Low", r, f.Level(r))
		}
	}
	if d.Stats().Keys != 2 {
		t.Errorf("Keys: got %d, want 2", d.Stats().Keys)
	}
}

func TestDriverInterruptMode(t *testing.T) {
	d, f := newTestDriver(t, ModeInterrupt)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	f.Press(0, 1) // '2'
	if got := readAll(t, d, 1); got != "2" {
		t.Errorf("keys: got %q, want %q", got, "2")
	}
	waitFor(t, "armed", func() bool { return d.HandlerState() == Armed })

	// Nothing sweeps without an edge: holding the key adds nothing.
	time.Sleep(10 * time.Millisecond)
	if st := d.Stats(); st.Sweeps != 1 {
		t.Errorf("Sweeps: got %d, want 1", st.Sweeps)
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for _, c := range testCols {
		if !f.Masked(c) {
			t.Errorf("column %d not masked after Close", c)
		}
	}
	if d.HandlerState() != Armed {
		t.Errorf("HandlerState after Close: got %s, want ARMED", d.HandlerState())
	}
}

func TestDriverInterruptModeRepeatedKey(t *testing.T) {
	f := gpio.NewFakeMatrix(testRows, testCols)
	d, err := New(f, Config{
		Mode:        ModeInterrupt,
		ReleasePoll: time.Millisecond,
		Rows:        testRows,
		Cols:        testCols,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for i := 0; i < 3; i++ {
		f.Press(2, 1) // '8'
		waitFor(t, "key", func() bool { return d.Stats().Keys == uint64(i+1) })
		f.Release(2, 1)
		waitFor(t, "armed", func() bool { return d.HandlerState() == Armed && unmasked(f) })
	}
	if got := readAll(t, d, 3); got != "888" {
		t.Errorf("keys: got %q, want %q", got, "888")
	}
}

func TestDriverInterruptModeNeedsNotifier(t *testing.T) {
	f := gpio.NewFakeMatrix(testRows, testCols)
	lines := struct{ gpio.Lines }{f}

	if _, err := New(lines, Config{Mode: ModeInterrupt, Rows: testRows, Cols: testCols}); err == nil {
		t.Error("expected error for lines without edge notification")
	}
}

func TestDriverDefaults(t *testing.T) {
	f := gpio.NewFakeMatrix(gpio.DefaultRows, gpio.DefaultCols)
	d, err := New(f, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	if d.Mode() != ModePoll {
		t.Errorf("Mode: got %q, want %q", d.Mode(), ModePoll)
	}
	if d.buf.Cap() != DefaultCapacity {
		t.Errorf("capacity: got %d, want %d", d.buf.Cap(), DefaultCapacity)
	}
	if d.cfg.PollInterval != DefaultPollInterval {
		t.Errorf("PollInterval: got %v, want %v", d.cfg.PollInterval, DefaultPollInterval)
	}
}

func TestDriverStartTwice(t *testing.T) {
	d, _ := newTestDriver(t, ModePoll)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Start(context.Background()); err == nil {
		t.Error("expected error on second Start")
	}
	d.Close()
	if err := d.Start(context.Background()); err == nil {
		t.Error("expected error on Start after Close")
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestDriverSweepWithoutStart(t *testing.T) {
	d, f := newTestDriver(t, ModePoll)
	f.Press(1, 2)

	if got := d.Sweep(); string(got) != "6" {
		t.Errorf("Sweep: got %q, want %q", got, "6")
	}
	if d.Buffered() != 1 {
		t.Errorf("Buffered: got %d, want 1", d.Buffered())
	}
}

func TestDriversAreIndependent(t *testing.T) {
	d1, f1 := newTestDriver(t, ModePoll)
	d2, f2 := newTestDriver(t, ModePoll)

	f1.Press(0, 0)
	f2.Press(3, 2)
	d1.Sweep()
	d2.Sweep()

	b1, _ := io.ReadAll(io.LimitReader(d1, 1))
	b2, _ := io.ReadAll(io.LimitReader(d2, 1))
	if string(b1) != "1" || string(b2) != "#" {
		t.Errorf("got %q and %q, want %q and %q", b1, b2, "1", "#")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"poll", ModePoll, false},
		{"irq", ModeInterrupt, false},
		{"edge", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q): err=%v, wantErr=%v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}
