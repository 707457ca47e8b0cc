package contenthash_test

import (
	"testing"

	"darkroom/internal/contenthash"
	"darkroom/internal/services/images"
)

func img(id, checksum string) images.Image {
	return images.Image{ID: id, Checksum: checksum}
}

func TestComputeIsDeterministic(t *testing.T) {
	set := []images.Image{img("a", "c1"), img("b", "c2"), img("c", "c3")}
	first := contenthash.Compute(set)
	second := contenthash.Compute(set)
	if first != second {
		t.Fatalf("same input produced different hashes: %s vs %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("expected hex sha256, got %q", first)
	}
}

func TestComputeSensitivity(t *testing.T) {
	base := []images.Image{img("a", "c1"), img("b", "c2"), img("c", "c3")}
	baseHash := contenthash.Compute(base)

	cases := []struct {
		name string
		set  []images.Image
	}{
		{"image added", []images.Image{img("a", "c1"), img("b", "c2"), img("c", "c3"), img("d", "c4")}},
		{"image removed", []images.Image{img("a", "c1"), img("b", "c2")}},
		{"images reordered", []images.Image{img("b", "c2"), img("a", "c1"), img("c", "c3")}},
		{"content changed", []images.Image{img("a", "c1"), img("b", "zz"), img("c", "c3")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if contenthash.Compute(tc.set) == baseHash {
				t.Fatalf("expected hash to change for %s", tc.name)
			}
		})
	}
}

func TestComputeFramingResistsBoundaryShifts(t *testing.T) {
	a := contenthash.Compute([]images.Image{img("ab", "c")})
	b := contenthash.Compute([]images.Image{img("a", "bc")})
	if a == b {
		t.Fatal("boundary shift between id and checksum must change the hash")
	}
}

func TestEmptyHashIsStable(t *testing.T) {
	if contenthash.EmptyHash != contenthash.Compute(nil) {
		t.Fatal("EmptyHash must equal Compute(nil)")
	}
	if contenthash.EmptyHash != contenthash.Compute([]images.Image{}) {
		t.Fatal("nil and empty slices must hash identically")
	}
}
