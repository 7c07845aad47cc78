package core

import (
	"testing"
	"time"
)

func TestDate_Value(t *testing.T) {
	d := NewDate(2026, time.September, 2)
	v, err := d.Value()
	if err != nil {
		t.Fatalf("Value() failed: %v", err)
	}
	if v != "2026-09-02" {
		t.Errorf("Value() = %v, want 2026-09-02", v)
	}
}

func TestDate_Scan(t *testing.T) {
	want := NewDate(2026, time.September, 2)

	tests := []struct {
		name string
		src  interface{}
	}{
		{name: "date string", src: "2026-09-02"},
		{name: "bytes", src: []byte("2026-09-02")},
		{name: "timestamp string", src: "2026-09-02 00:00:00+00:00"},
		{name: "time", src: time.Date(2026, time.September, 2, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Date
			if err := d.Scan(tt.src); err != nil {
				t.Fatalf("Scan(%v) failed: %v", tt.src, err)
			}
			if !d.Equal(want) {
				t.Errorf("Scan(%v) = %s, want %s", tt.src, d, want)
			}
		})
	}
}

func TestDate_ScanNil(t *testing.T) {
	d := NewDate(2026, time.September, 2)
	if err := d.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) failed: %v", err)
	}
	if !d.IsZero() {
		t.Errorf("Scan(nil) = %s, want zero", d)
	}
}
