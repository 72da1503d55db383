package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/burgerbus/memberclub/internal/domain"
)

// --- Truck locations ---

func (s *Store) UpsertLocation(ctx context.Context, loc domain.TruckLocation) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO truck_locations (id, name, address, date, start_time, end_time, member_exclusive)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   name = excluded.name,
		   address = excluded.address,
		   date = excluded.date,
		   start_time = excluded.start_time,
		   end_time = excluded.end_time,
		   member_exclusive = excluded.member_exclusive`,
		loc.ID, loc.Name, loc.Address, loc.Date, loc.StartTime, loc.EndTime,
		boolToInt(loc.MemberExclusive),
	)
	if err != nil {
		return fmt.Errorf("upsert location %s: %w", loc.ID, err)
	}
	return nil
}

func (s *Store) ListLocations(ctx context.Context, includeExclusive bool) ([]domain.TruckLocation, error) {
	query := `SELECT id, name, address, date, start_time, end_time, member_exclusive
	 FROM truck_locations`
	if !includeExclusive {
		query += ` WHERE member_exclusive = 0`
	}
	query += ` ORDER BY date ASC, start_time ASC`

	rows, err := s.sqlDB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	var locations []domain.TruckLocation
	for rows.Next() {
		var (
			loc       domain.TruckLocation
			exclusive int
		)
		if err := rows.Scan(&loc.ID, &loc.Name, &loc.Address, &loc.Date,
			&loc.StartTime, &loc.EndTime, &exclusive); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		loc.MemberExclusive = exclusive != 0
		locations = append(locations, loc)
	}
	return locations, rows.Err()
}

// --- Member events ---

func (s *Store) UpsertEvent(ctx context.Context, event domain.MemberEvent) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO member_events (id, title, description, date, time, location, max_attendees, current_attendees)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title,
		   description = excluded.description,
		   date = excluded.date,
		   time = excluded.time,
		   location = excluded.location,
		   max_attendees = excluded.max_attendees`,
		event.ID, event.Title, event.Description, event.Date, event.Time,
		event.Location, event.MaxAttendees, event.CurrentAttendees,
	)
	if err != nil {
		return fmt.Errorf("upsert event %s: %w", event.ID, err)
	}
	return nil
}

const eventColumns = `id, title, description, date, time, location, max_attendees, current_attendees`

func (s *Store) ListEvents(ctx context.Context) ([]domain.MemberEvent, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM member_events ORDER BY date ASC, title ASC`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.MemberEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// JoinEvent bumps the attendee count; the guarded update makes the capacity
// check race-free.
func (s *Store) JoinEvent(ctx context.Context, eventID string) (domain.MemberEvent, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE member_events SET current_attendees = current_attendees + 1
		 WHERE id = ? AND current_attendees < max_attendees`, eventID)
	if err != nil {
		return domain.MemberEvent{}, fmt.Errorf("join event %s: %w", eventID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.MemberEvent{}, err
	}
	if affected == 0 {
		// Distinguish missing from full.
		if _, getErr := s.getEvent(ctx, eventID); getErr != nil {
			return domain.MemberEvent{}, getErr
		}
		return domain.MemberEvent{}, fmt.Errorf("%w: event is full", domain.ErrValidation)
	}
	return s.getEvent(ctx, eventID)
}

func (s *Store) getEvent(ctx context.Context, id string) (domain.MemberEvent, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM member_events WHERE id = ?`, id)
	return scanEvent(row)
}

func scanEvent(row rowScanner) (domain.MemberEvent, error) {
	var event domain.MemberEvent
	err := row.Scan(&event.ID, &event.Title, &event.Description, &event.Date,
		&event.Time, &event.Location, &event.MaxAttendees, &event.CurrentAttendees)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.MemberEvent{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.MemberEvent{}, fmt.Errorf("scan event: %w", err)
	}
	return event, nil
}
