package app

import "testing"

func TestAvatarForCyclesDistinctAvatars(t *testing.T) {
	seen := make(map[string]struct{})
	for i := range avatars {
		a := avatarFor(i)
		if a == "" {
			t.Fatalf("empty avatar at index %d", i)
		}
		seen[a] = struct{}{}
	}
	if len(seen) != len(avatars) {
		t.Fatalf("expected %d distinct avatars, got %d", len(avatars), len(seen))
	}
	if avatarFor(len(avatars)) != avatarFor(0) {
		t.Fatalf("avatar assignment does not wrap")
	}
}
