package main

import "testing"

func TestSeedIDsAreStable(t *testing.T) {
	first := defaultMenu()
	second := defaultMenu()
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("expected stable id for %q, got %s then %s", first[i].Name, first[i].ID, second[i].ID)
		}
	}

	seen := map[string]string{}
	for _, item := range defaultMenu() {
		seen[item.ID] = item.Name
	}
	for _, loc := range defaultLocations() {
		if name, dup := seen[loc.ID]; dup {
			t.Fatalf("id collision between %q and %q", name, loc.Name)
		}
		seen[loc.ID] = loc.Name
	}
	for _, event := range defaultEvents() {
		if name, dup := seen[event.ID]; dup {
			t.Fatalf("id collision between %q and %q", name, event.Title)
		}
		seen[event.ID] = event.Title
	}
}
