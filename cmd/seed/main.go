package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/burgerbus/memberclub/internal/domain"
	"github.com/burgerbus/memberclub/internal/storage/sqlite"
)

// seed populates a fresh database with the menu, the truck schedule and the
// event calendar so the ordering flow is usable immediately after first boot.
// IDs derive from the record names, so re-running updates rows in place
// instead of duplicating them.

func main() {
	var (
		dbPath = flag.String("db", "memberclub.db", "path to the sqlite database")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, err := sqlite.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	for _, item := range defaultMenu() {
		if err := store.UpsertMenuItem(ctx, item); err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed %q: %v\n", item.Name, err)
			os.Exit(1)
		}
	}
	for _, loc := range defaultLocations() {
		if err := store.UpsertLocation(ctx, loc); err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed %q: %v\n", loc.Name, err)
			os.Exit(1)
		}
	}
	for _, event := range defaultEvents() {
		if err := store.UpsertEvent(ctx, event); err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed %q: %v\n", event.Title, err)
			os.Exit(1)
		}
	}
	fmt.Printf("seeded %d menu items, %d locations and %d events into %s\n",
		len(defaultMenu()), len(defaultLocations()), len(defaultEvents()), *dbPath)
}

// seedID derives a stable UUID from the record name so re-runs upsert the
// same rows.
func seedID(kind, name string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(kind+"/"+name)).String()
}

func defaultMenu() []domain.MenuItem {
	items := []domain.MenuItem{
		{Name: "Classic Smash Burger", Description: "Double patty, american cheese, house sauce", PublicPrice: 14, MemberPrice: 11, Category: "burgers"},
		{Name: "BBQ Bacon Burger", Description: "Smoked bacon, cheddar, bbq glaze", PublicPrice: 16, MemberPrice: 13, Category: "burgers"},
		{Name: "Hand-Cut Fries", Description: "Twice fried, sea salt", PublicPrice: 6, MemberPrice: 4, Category: "sides"},
		{Name: "Rosemary Lemonade", Description: "Fresh squeezed", PublicPrice: 5, MemberPrice: 3, Category: "drinks"},
	}
	for i := range items {
		items[i].ID = seedID("menu", items[i].Name)
		items[i].Available = true
	}
	return items
}

func defaultLocations() []domain.TruckLocation {
	locations := []domain.TruckLocation{
		{Name: "Downtown Farmers Market", Address: "400 Main St", Date: "2026-09-05", StartTime: "11:00", EndTime: "15:00"},
		{Name: "Riverside Park", Address: "12 River Rd", Date: "2026-09-06", StartTime: "12:00", EndTime: "16:00"},
		{Name: "Members-Only Brewery Night", Address: "77 Hop Ln", Date: "2026-09-12", StartTime: "18:00", EndTime: "22:00", MemberExclusive: true},
	}
	for i := range locations {
		locations[i].ID = seedID("location", locations[i].Name)
	}
	return locations
}

func defaultEvents() []domain.MemberEvent {
	events := []domain.MemberEvent{
		{Title: "Burger Lab Tasting", Description: "Preview next season's menu", Date: "2026-09-19", Time: "19:00", Location: "The Test Kitchen", MaxAttendees: 24},
		{Title: "Grill Masterclass", Description: "Smash technique with the head cook", Date: "2026-10-03", Time: "17:00", Location: "Riverside Park", MaxAttendees: 12},
	}
	for i := range events {
		events[i].ID = seedID("event", events[i].Title)
	}
	return events
}
