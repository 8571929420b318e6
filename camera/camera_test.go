package camera

import (
	"testing"
	"time"

	"github.com/corefan/flexrender/library"
	"github.com/corefan/flexrender/types"
)

func testDef() *library.CameraDef {
	return &library.CameraDef{
		Eye:  types.XYZ(0, 0, -5),
		Look: types.XYZ(0, 0, 0),
		Up:   types.XYZ(0, 1, 0),
	}
}

func TestAdvanceCursor_Order(t *testing.T) {
	c := New(testDef(), 2, 2, 2)
	c.SetChunk(0, 2)

	type coord struct{ x, y, i, j uint32 }
	var got []coord
	for n := 0; n < 2*2*2*2; n++ {
		got = append(got, coord{c.x, c.y, c.i, c.j})
		c.advanceCursor()
	}

	// j must cycle fastest, then i, then y, then x.
	want := []coord{
		{0, 0, 0, 0}, {0, 0, 0, 1},
		{0, 0, 1, 0}, {0, 0, 1, 1},
		{0, 1, 0, 0}, {0, 1, 0, 1},
		{0, 1, 1, 0}, {0, 1, 1, 1},
		{1, 0, 0, 0}, {1, 0, 0, 1},
		{1, 0, 1, 0}, {1, 0, 1, 1},
		{1, 1, 0, 0}, {1, 1, 0, 1},
		{1, 1, 1, 0}, {1, 1, 1, 1},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d coords, want %d", len(got), len(want))
	}
	for n := range want {
		if got[n] != want[n] {
			t.Fatalf("step %d: got %+v, want %+v", n, got[n], want[n])
		}
	}
}

func TestGeneratePrimary_TransmittanceSumsToOne(t *testing.T) {
	const aa = 2
	c := New(testDef(), 4, 4, aa)
	c.SetChunk(0, 4)

	var total float32
	for n := 0; n < aa*aa; n++ {
		ray := c.GeneratePrimary()
		if ray == nil {
			t.Fatalf("sample %d: unexpected throttle/exhaustion", n)
		}
		total += ray.Transmittance
		time.Sleep(300 * time.Microsecond)
	}
	if diff := total - 1.0; diff > 1e-4 || diff < -1e-4 {
		t.Fatalf("summed transmittance over one pixel's AA grid = %v, want 1.0", total)
	}
}

func TestGeneratePrimary_NoAA_TransmittanceIsOne(t *testing.T) {
	c := New(testDef(), 4, 4, 1)
	c.SetChunk(0, 4)

	ray := c.GeneratePrimary()
	if ray == nil {
		t.Fatal("GeneratePrimary returned nil")
	}
	if ray.Transmittance != 1 {
		t.Fatalf("Transmittance = %v, want 1", ray.Transmittance)
	}
}

func TestGeneratePrimary_Throttle(t *testing.T) {
	c := New(testDef(), 4, 4, 1)
	c.SetChunk(0, 4)

	first := c.GeneratePrimary()
	if first == nil {
		t.Fatal("first GeneratePrimary returned nil")
	}
	if second := c.GeneratePrimary(); second != nil {
		t.Fatal("second immediate GeneratePrimary should be throttled to nil")
	}

	time.Sleep(300 * time.Microsecond)
	if third := c.GeneratePrimary(); third == nil {
		t.Fatal("GeneratePrimary after throttle window elapsed should succeed")
	}
}

func TestGeneratePrimary_ExhaustedReturnsNil(t *testing.T) {
	c := New(testDef(), 1, 1, 1)
	c.SetChunk(0, 1)

	if ray := c.GeneratePrimary(); ray == nil {
		t.Fatal("first sample of a 1x1 chunk should succeed")
	}
	time.Sleep(300 * time.Microsecond)
	if ray := c.GeneratePrimary(); ray != nil {
		t.Fatal("camera should be exhausted after its one pixel is scanned")
	}
}

func TestGeneratePrimary_UnstartedReturnsNil(t *testing.T) {
	c := New(testDef(), 4, 4, 1)
	if ray := c.GeneratePrimary(); ray != nil {
		t.Fatal("GeneratePrimary before SetChunk should return nil")
	}
}
