package audit

import (
	"testing"
	"time"

	"github.com/dalemusser/unigrading/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_LogAndQuery(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	userID := primitive.NewObjectID()
	actorID := primitive.NewObjectID()
	base := time.Now().Add(-time.Hour)

	events := []Event{
		{Category: CategoryAuth, EventType: EventLoginSuccess, UserID: &userID, Success: true, CreatedAt: base},
		{Category: CategoryAuth, EventType: EventLoginFailedWrongPassword, UserID: &userID, CreatedAt: base.Add(time.Minute)},
		{Category: CategoryAdmin, EventType: EventUserDisabled, UserID: &userID, ActorID: &actorID, Success: true, CreatedAt: base.Add(2 * time.Minute)},
		{Category: CategoryLibrary, EventType: EventFileDeleted, ActorID: &actorID, Success: true, CreatedAt: base.Add(3 * time.Minute)},
	}
	for _, e := range events {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
	}

	tests := []struct {
		name   string
		filter QueryFilter
		want   int
	}{
		{"all", QueryFilter{}, 4},
		{"by user", QueryFilter{UserID: &userID}, 3},
		{"by actor", QueryFilter{ActorID: &actorID}, 2},
		{"by category", QueryFilter{Category: CategoryAuth}, 2},
		{"by event type", QueryFilter{EventType: EventFileDeleted}, 1},
		{"since", QueryFilter{StartTime: timePtr(base.Add(90 * time.Second))}, 2},
		{"until", QueryFilter{EndTime: timePtr(base.Add(30 * time.Second))}, 1},
		{"limit", QueryFilter{Limit: 3}, 3},
		{"offset", QueryFilter{Offset: 3}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("Query() = %d events, want %d", len(got), tt.want)
			}
		})
	}

	all, _ := store.Query(ctx, QueryFilter{})
	if all[0].EventType != EventFileDeleted {
		t.Errorf("newest event = %s, want %s", all[0].EventType, EventFileDeleted)
	}

	n, err := store.Count(ctx, QueryFilter{Category: CategoryAuth, Limit: 1})
	if err != nil || n != 2 {
		t.Errorf("Count() = %d, %v; limit should not apply", n, err)
	}
}

func TestStore_LogDefaults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.Log(ctx, Event{Category: CategoryAuth, EventType: EventLogout}); err != nil {
		t.Fatalf("Log() error = %v", err)
	}
	got, _ := store.Query(ctx, QueryFilter{})
	if len(got) != 1 || got[0].ID.IsZero() || got[0].CreatedAt.IsZero() {
		t.Errorf("stored event = %+v, want ID and CreatedAt filled in", got)
	}
}

func timePtr(t time.Time) *time.Time { return &t }
