// Package txn runs a group of MongoDB writes atomically.
//
// Course trees are written in several collections at once (a subject and its
// default categories, a subject and everything under it). Run wraps those
// writes in a session transaction. Deployments without a replica set cannot
// run transactions, so Run falls back to plain execution there and logs that
// atomicity is reduced.
package txn

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Func performs the writes. ctx is a session context when a transaction is
// active and must be passed to every collection call.
type Func func(ctx context.Context) error

// Run executes fn inside a transaction on db's client. An error returned by fn
// aborts the transaction and is returned unchanged. log may be nil.
func Run(ctx context.Context, db *mongo.Database, log *zap.Logger, fn Func) error {
	session, err := db.Client().StartSession()
	if err != nil {
		warn(log, "cannot start session; writing without a transaction", err)
		return fn(ctx)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		warn(log, "transactions unavailable; writing without a transaction", err)
		return fn(ctx)
	}
	return err
}

func warn(log *zap.Logger, msg string, err error) {
	if log != nil {
		log.Warn(msg, zap.Error(err))
	}
}

// IsNotSupported reports whether err means the deployment cannot run
// multi-document transactions (standalone mongod, DocumentDB without them).
//
// Codes: 20 IllegalOperation on standalone, 51, 263 OperationNotSupportedInTransaction.
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}

	if cmdErr, ok := err.(mongo.CommandError); ok {
		switch cmdErr.Code {
		case 20, 51, 263:
			return true
		}
	}

	// Message matching needs two hits so ordinary write errors that mention a
	// "session" are not mistaken for missing transaction support.
	msg := strings.ToLower(err.Error())
	hits := 0
	for _, kw := range []string{"transaction", "replica set", "session", "not supported", "illegal operation"} {
		if strings.Contains(msg, kw) {
			hits++
		}
	}
	return hits >= 2
}
