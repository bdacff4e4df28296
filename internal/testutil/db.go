// Package testutil sets up databases and authenticated requests for tests.
package testutil

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/unigrading/internal/app/system/indexes"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoURIEnv overrides the server tests connect to.
const MongoURIEnv = "UNIGRADING_TEST_MONGO_URI"

const (
	defaultURI = "mongodb://localhost:27017"
	dbPrefix   = "ugt_"
	// MongoDB database names are limited to 63 bytes.
	maxDBName = 63
)

var (
	sharedOnce   sync.Once
	sharedClient *mongo.Client
	sharedErr    error
)

func connect() (*mongo.Client, error) {
	sharedOnce.Do(func() {
		uri := os.Getenv(MongoURIEnv)
		if uri == "" {
			uri = defaultURI
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Packages run in parallel and every test opens its own database.
		opts := options.Client().
			ApplyURI(uri).
			SetMaxPoolSize(200).
			SetServerSelectionTimeout(10 * time.Second)
		sharedClient, sharedErr = mongo.Connect(ctx, opts)
		if sharedErr == nil {
			sharedErr = sharedClient.Ping(ctx, nil)
		}
	})
	return sharedClient, sharedErr
}

// SetupTestDB gives t an empty database with the production indexes. The
// database is named after the test and dropped when the test ends.
func SetupTestDB(t *testing.T) *mongo.Database {
	t.Helper()

	client, err := connect()
	if err != nil {
		t.Fatalf("connect to test MongoDB (set %s to override): %v", MongoURIEnv, err)
	}
	db := client.Database(DBName(t.Name()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Drop(ctx); err != nil {
		t.Fatalf("drop stale test database: %v", err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.Drop(ctx); err != nil {
			t.Logf("drop test database: %v", err)
		}
	})
	return db
}

// DBName maps a test name to a legal database name. Names that would be too
// long are cut and suffixed with a hash of the full name so subtests that
// share a long prefix still get distinct databases.
func DBName(testName string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, testName)

	if len(dbPrefix)+len(name) <= maxDBName {
		return dbPrefix + name
	}
	sum := sha1.Sum([]byte(testName))
	suffix := "_" + hex.EncodeToString(sum[:4])
	return dbPrefix + name[:maxDBName-len(dbPrefix)-len(suffix)] + suffix
}

// TestContext bounds a test's database calls.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}
