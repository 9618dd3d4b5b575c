package util_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/omclab/oscacq/util"
)

func ExampleIntSliceToCSV() {
	fmt.Println(util.IntSliceToCSV([]int{2, 1, 4}))
	// Output: 2,1,4
}

func ExampleUniqueInt() {
	fmt.Println(util.UniqueInt([]int{2, 2, 1, 4, 1}))
	// Output: [2 1 4]
}

func TestIntSliceToCSVEmpty(t *testing.T) {
	if got := util.IntSliceToCSV(nil); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestSecsToDuration(t *testing.T) {
	if got := util.SecsToDuration(1.5); got != 1500*time.Millisecond {
		t.Errorf("got %v, want 1.5s", got)
	}
	if got := util.SecsToDuration(0); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
}

func TestUniqueIntPreservesOrder(t *testing.T) {
	got := util.UniqueInt([]int{4, 1, 4, 2, 1})
	want := []int{4, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %d, want %d", i, got[i], want[i])
		}
	}
}
