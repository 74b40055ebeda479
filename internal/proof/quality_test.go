package proof

import (
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	longDesc := strings.Repeat("x", 51)

	cases := []struct {
		name string
		ev   Evidence
		want QualityTier
	}{
		{
			name: "full evidence package",
			ev:   Evidence{Description: longDesc, PhotoURLs: []string{"a", "b"}, HasBeforeAfter: true},
			want: TierComprehensive,
		},
		{
			name: "before/after but description too short",
			ev:   Evidence{Description: strings.Repeat("x", 50), PhotoURLs: []string{"a", "b"}, HasBeforeAfter: true},
			want: TierStandard,
		},
		{
			name: "before/after but only one photo",
			ev:   Evidence{Description: longDesc, PhotoURLs: []string{"a"}, HasBeforeAfter: true},
			want: TierStandard,
		},
		{
			name: "long description and two photos without before/after",
			ev:   Evidence{Description: longDesc, PhotoURLs: []string{"a", "b"}},
			want: TierStandard,
		},
		{
			name: "single photo only",
			ev:   Evidence{PhotoURLs: []string{"a"}},
			want: TierStandard,
		},
		{
			name: "description only",
			ev:   Evidence{Description: longDesc},
			want: TierBasic,
		},
		{
			name: "empty evidence",
			ev:   Evidence{},
			want: TierBasic,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.ev); got != tc.want {
				t.Errorf("Classify(%+v) = %s, want %s", tc.ev, got, tc.want)
			}
		})
	}
}

// Classification must be a pure function of the evidence.
func TestClassifyDeterministic(t *testing.T) {
	ev := Evidence{Description: strings.Repeat("d", 80), PhotoURLs: []string{"a", "b"}, HasBeforeAfter: true}
	first := Classify(ev)
	for i := 0; i < 100; i++ {
		if got := Classify(ev); got != first {
			t.Fatalf("classification changed between calls: %s then %s", first, got)
		}
	}
}
