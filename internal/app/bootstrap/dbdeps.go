// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/unigrading/internal/app/system/blobstore"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds database and backend dependencies for this WAFFLE app.
//
// It is created in ConnectDB and passed to EnsureSchema, Startup,
// BuildHandler and Shutdown.
type DBDeps struct {
	// MongoDB client and database
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	// Blobs stores uploaded course files, instrumented with metrics.
	Blobs blobstore.Store
}
