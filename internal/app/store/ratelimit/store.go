// Package ratelimit throttles password guessing per login id.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/unigrading/internal/app/system/normalize"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Attempt is the failure counter for one login id.
type Attempt struct {
	LoginID     string     `bson:"_id"`
	Failures    int        `bson:"failures"`
	WindowStart time.Time  `bson:"window_start"`
	LockedUntil *time.Time `bson:"locked_until,omitempty"`
	LastFailure time.Time  `bson:"last_failure"` // TTL field
}

// Store counts failed logins in a sliding window and locks the login id out
// once MaxFailures is reached.
type Store struct {
	c           *mongo.Collection
	maxFailures int
	window      time.Duration
	lockout     time.Duration
	now         func() time.Time
}

// New returns a Store over the login_attempts collection.
func New(db *mongo.Database, maxFailures int, window, lockout time.Duration) *Store {
	return &Store{
		c:           db.Collection("login_attempts"),
		maxFailures: maxFailures,
		window:      window,
		lockout:     lockout,
		now:         time.Now,
	}
}

// LockedUntil returns when the lockout on loginID ends, or nil if logins are
// allowed. Lookup errors fail open.
func (s *Store) LockedUntil(ctx context.Context, loginID string) *time.Time {
	a, err := s.get(ctx, loginID)
	if err != nil || a == nil || a.LockedUntil == nil {
		return nil
	}
	if s.now().Before(*a.LockedUntil) {
		return a.LockedUntil
	}
	return nil
}

// RecordFailure counts one failed login and returns the lockout end if this
// failure triggered or extended a lockout.
func (s *Store) RecordFailure(ctx context.Context, loginID string) (*time.Time, error) {
	id := normalize.LoginID(loginID)
	now := s.now()

	a, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil || now.After(a.WindowStart.Add(s.window)) {
		a = &Attempt{LoginID: id, WindowStart: now}
	}
	a.Failures++
	a.LastFailure = now
	a.LockedUntil = nil
	if a.Failures >= s.maxFailures {
		until := now.Add(s.lockout)
		a.LockedUntil = &until
	}

	_, err = s.c.ReplaceOne(ctx, bson.M{"_id": id}, a, options.Replace().SetUpsert(true))
	if err != nil {
		return nil, err
	}
	return a.LockedUntil, nil
}

// Clear forgets all failures for loginID after a successful login.
func (s *Store) Clear(ctx context.Context, loginID string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": normalize.LoginID(loginID)})
	return err
}

func (s *Store) get(ctx context.Context, loginID string) (*Attempt, error) {
	var a Attempt
	err := s.c.FindOne(ctx, bson.M{"_id": normalize.LoginID(loginID)}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
