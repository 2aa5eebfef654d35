package domain

import (
	"testing"
	"time"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestDirectionString(t *testing.T) {
	cases := []struct {
		dir  Direction
		want string
		sign float64
	}{
		{Flat, "FLAT", 0},
		{Long, "LONG", 1},
		{Short, "SHORT", -1},
	}
	for _, c := range cases {
		if got := c.dir.String(); got != c.want {
			t.Errorf("Direction(%d).String() = %q, want %q", c.dir, got, c.want)
		}
		if got := c.dir.Sign(); got != c.sign {
			t.Errorf("Direction(%d).Sign() = %v, want %v", c.dir, got, c.sign)
		}
	}
}

func TestPositionDirection(t *testing.T) {
	long := &Position{Quantity: 10}
	if long.Direction() != Long {
		t.Errorf("Direction() = %v, want Long", long.Direction())
	}
	short := &Position{Quantity: -10}
	if short.Direction() != Short {
		t.Errorf("Direction() = %v, want Short", short.Direction())
	}
	flat := &Position{}
	if flat.Direction() != Flat {
		t.Errorf("Direction() = %v, want Flat", flat.Direction())
	}
}

func TestValidateBars(t *testing.T) {
	ok := []Bar{
		{Timestamp: day(0), Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1000},
		{Timestamp: day(1), Open: 100.5, High: 102, Low: 100, Close: 101, Volume: 1200},
	}
	if err := ValidateBars(ok); err != nil {
		t.Errorf("ValidateBars(valid) = %v, want nil", err)
	}

	if err := ValidateBars(nil); err != nil {
		t.Errorf("ValidateBars(nil) = %v, want nil", err)
	}

	unsorted := []Bar{
		{Timestamp: day(1), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1},
		{Timestamp: day(0), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1},
	}
	if err := ValidateBars(unsorted); err == nil {
		t.Error("ValidateBars should reject out-of-order timestamps")
	}

	duplicate := []Bar{
		{Timestamp: day(0), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1},
		{Timestamp: day(0), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1},
	}
	if err := ValidateBars(duplicate); err == nil {
		t.Error("ValidateBars should reject duplicate timestamps")
	}

	badPrice := []Bar{
		{Timestamp: day(0), Open: 100, High: 101, Low: 99, Close: 0, Volume: 1},
	}
	if err := ValidateBars(badPrice); err == nil {
		t.Error("ValidateBars should reject non-positive close")
	}

	badVolume := []Bar{
		{Timestamp: day(0), Open: 100, High: 101, Low: 99, Close: 100, Volume: -1},
	}
	if err := ValidateBars(badVolume); err == nil {
		t.Error("ValidateBars should reject negative volume")
	}
}
