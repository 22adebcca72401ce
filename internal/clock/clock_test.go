package clock

import (
	"testing"
	"time"
)

func TestStampFormats(t *testing.T) {
	s := At(time.Date(2025, time.March, 4, 23, 30, 0, 0, time.Local))
	if got := s.Sortable(); got != "2025-03-04 23:30:00" {
		t.Fatalf("sortable: got %q", got)
	}
	if got := s.Human(); got != "Tuesday, March 4, 2025 at 11:30 PM" {
		t.Fatalf("human: got %q", got)
	}
}

func TestHumanHourNotPadded(t *testing.T) {
	s := At(time.Date(2025, time.March, 5, 2, 5, 0, 0, time.Local))
	if got := s.Human(); got != "Wednesday, March 5, 2025 at 2:05 AM" {
		t.Fatalf("human: got %q", got)
	}
}

func TestSortableIsSortable(t *testing.T) {
	a := At(time.Date(2025, time.March, 4, 9, 0, 0, 0, time.Local)).Sortable()
	b := At(time.Date(2025, time.March, 4, 23, 30, 0, 0, time.Local)).Sortable()
	if !(a < b) {
		t.Fatalf("expected %q < %q", a, b)
	}
}
