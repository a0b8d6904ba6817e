package clock

import (
	"testing"
	"time"
)

func TestFakeClock_TickerFiresOnAdvance(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Fake(start)
	tk := c.NewTicker(10 * time.Second)

	c.Advance(9 * time.Second)
	select {
	case <-tk.C:
		t.Fatalf("ticker fired early")
	default:
	}

	c.Advance(time.Second)
	select {
	case got := <-tk.C:
		if want := start.Add(10 * time.Second); !got.Equal(want) {
			t.Fatalf("tick time: want %v, got %v", want, got)
		}
	default:
		t.Fatalf("ticker did not fire at its deadline")
	}
}

func TestFakeClock_StoppedTickerIsSilent(t *testing.T) {
	t.Parallel()

	c := Fake(time.Unix(0, 0))
	tk := c.NewTicker(time.Second)
	tk.Stop()
	c.Advance(5 * time.Second)

	select {
	case <-tk.C:
		t.Fatalf("stopped ticker fired")
	default:
	}
	if n := c.ActiveTickers(); n != 0 {
		t.Fatalf("active tickers: want 0, got %d", n)
	}
}

func TestFakeClock_NowAdvances(t *testing.T) {
	t.Parallel()

	start := time.Unix(100, 0)
	c := Fake(start)
	c.Advance(time.Minute)
	if got := c.Now(); !got.Equal(start.Add(time.Minute)) {
		t.Fatalf("Now: want %v, got %v", start.Add(time.Minute), got)
	}
}
