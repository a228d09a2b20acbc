package rate

import (
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	burst := 1
	lm := NewLimiter(burst, 1, Every(100*time.Millisecond))

	if !lm.Check("shopper-a") {
		t.Fatal("first request should pass")
	}
	if lm.Check("shopper-a") {
		t.Fatal("second immediate request should be throttled")
	}
	if !lm.Check("shopper-b") {
		t.Fatal("different actor should not share the budget")
	}

	time.Sleep(150 * time.Millisecond)
	if !lm.Check("shopper-a") {
		t.Fatal("request after refill interval should pass")
	}
}
