package grid

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/precipgrid/precipgrid/pkg/types"
)

func TestPartition_Height45Batch20(t *testing.T) {
	got, err := Partition(45, 20)
	if err != nil {
		t.Fatalf("Partition() error = %v", err)
	}
	want := []RowRange{{0, 20}, {20, 40}, {40, 45}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Partition(45, 20) = %v, want %v", got, want)
	}
}

func TestPartition_Coverage(t *testing.T) {
	tests := []struct {
		height, batch, count int
	}{
		{0, 5, 0},
		{1, 5, 1},
		{5, 5, 1},
		{6, 5, 2},
		{100, 1, 100},
		{171, 20, 9},
	}
	for _, tc := range tests {
		got, err := Partition(tc.height, tc.batch)
		if err != nil {
			t.Fatalf("Partition(%d, %d) error = %v", tc.height, tc.batch, err)
		}
		if len(got) != tc.count {
			t.Errorf("Partition(%d, %d) count = %d, want %d", tc.height, tc.batch, len(got), tc.count)
		}
		next := 0
		for _, rr := range got {
			if rr.Start != next {
				t.Fatalf("Partition(%d, %d): gap or overlap at %v, want start %d", tc.height, tc.batch, rr, next)
			}
			if rr.End <= rr.Start || rr.End-rr.Start > tc.batch {
				t.Fatalf("Partition(%d, %d): bad range %v", tc.height, tc.batch, rr)
			}
			next = rr.End
		}
		if next != tc.height {
			t.Errorf("Partition(%d, %d) covers [0,%d), want [0,%d)", tc.height, tc.batch, next, tc.height)
		}
	}
}

func TestPartition_InvalidArgument(t *testing.T) {
	for _, tc := range []struct{ height, batch int }{{10, 0}, {10, -3}, {-1, 5}} {
		if _, err := Partition(tc.height, tc.batch); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Partition(%d, %d) error = %v, want ErrInvalidArgument", tc.height, tc.batch, err)
		}
	}
}

func TestNew_ShapeAndCentres(t *testing.T) {
	g, err := New(Bounds{West: -73.5, East: -69.9, South: 41.2, North: 42.9}, 0.1)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if g.Width != 36 || g.Height != 17 {
		t.Fatalf("shape = %dx%d, want 17x36", g.Height, g.Width)
	}
	if len(g.Lons) != g.Height || len(g.Lats[0]) != g.Width {
		t.Fatalf("array shape does not match Height/Width")
	}
	if got := g.Lons[0][0]; math.Abs(got-(-73.45)) > 1e-9 {
		t.Errorf("Lons[0][0] = %v, want -73.45", got)
	}
	if got := g.Lats[0][0]; math.Abs(got-42.85) > 1e-9 {
		t.Errorf("Lats[0][0] = %v, want 42.85", got)
	}
	if got := g.Lats[16][35]; math.Abs(got-41.25) > 1e-9 {
		t.Errorf("Lats[16][35] = %v, want 41.25", got)
	}
	if x, y := g.Transform.Apply(0, 0); x != -73.5 || y != 42.9 {
		t.Errorf("Transform origin = (%v, %v), want (-73.5, 42.9)", x, y)
	}
}

func TestNew_InvalidBounds(t *testing.T) {
	tests := []struct {
		name string
		b    Bounds
		res  float64
	}{
		{"west>=east", Bounds{West: 1, East: 1, South: 0, North: 1}, 0.1},
		{"south>=north", Bounds{West: 0, East: 1, South: 2, North: 1}, 0.1},
		{"zero resolution", Bounds{West: 0, East: 1, South: 0, North: 1}, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.b, tc.res); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("New() error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestBatches_SliceGridAndMask(t *testing.T) {
	g, err := New(Bounds{West: 0, East: 3, South: 0, North: 5}, 1)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	known := &types.KnownData{}
	mask := make(types.Mask, g.Height)
	for r := range mask {
		mask[r] = []bool{r%2 == 0, true, false}
	}

	batches, err := Batches(g, known, 2.5, 2, mask)
	if err != nil {
		t.Fatalf("Batches() error = %v", err)
	}
	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}
	last := batches[2]
	if last.StartRow != 4 || last.EndRow != 5 || last.Rows() != 1 {
		t.Errorf("last batch range = [%d,%d), want [4,5)", last.StartRow, last.EndRow)
	}
	for i, b := range batches {
		if b.Known != known {
			t.Errorf("batch %d does not share the station set", i)
		}
		if b.Power != 2.5 {
			t.Errorf("batch %d power = %v, want 2.5", i, b.Power)
		}
		if b.Mask == nil || len(*b.Mask) != b.Rows() {
			t.Fatalf("batch %d mask rows mismatch", i)
		}
		if !reflect.DeepEqual(b.Lats, g.Lats[b.StartRow:b.EndRow]) {
			t.Errorf("batch %d lats are not the grid slice", i)
		}
	}
	if (*batches[1].Mask)[0][0] != true || (*batches[1].Mask)[1][0] != false {
		t.Errorf("batch 1 mask rows not taken from grid rows 2 and 3")
	}
}

func TestBatches_NoMask(t *testing.T) {
	g, _ := New(Bounds{West: 0, East: 2, South: 0, North: 2}, 1)
	batches, err := Batches(g, &types.KnownData{}, 2, 10, nil)
	if err != nil {
		t.Fatalf("Batches() error = %v", err)
	}
	if len(batches) != 1 || batches[0].Mask != nil {
		t.Errorf("want one unmasked batch, got %+v", batches)
	}
}
