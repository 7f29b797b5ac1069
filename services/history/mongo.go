package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"budvest_data_service/scheduler"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoJobRunsCollection is the collection mirroring job runs
const MongoJobRunsCollection = "job_runs"

// MongoRecorder mirrors job runs into MongoDB
type MongoRecorder struct {
	client     *mongo.Client
	collection *mongo.Collection

	mu        sync.RWMutex
	lastError string
}

// ConnectMongo connects to uri and prepares the job_runs collection
func ConnectMongo(ctx context.Context, uri, database string) (*MongoRecorder, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetMaxPoolSize(10).
		SetMinPoolSize(1).
		SetMaxConnIdleTime(30 * time.Second).
		SetConnectTimeout(30 * time.Second).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Verify connection with ping
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := client.Database(database).Collection(MongoJobRunsCollection)
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "job", Value: 1}, {Key: "started_at", Value: -1}},
	})
	if err != nil {
		logrus.Warnf("Failed to create job_runs index: %v", err)
	}

	logrus.WithField("database", database).Info("MongoDB job history mirror connected")
	return &MongoRecorder{client: client, collection: collection}, nil
}

// Record inserts one run; the run ID is the document _id
func (m *MongoRecorder) Record(ctx context.Context, res scheduler.RunResult) error {
	_, err := m.collection.InsertOne(ctx, res.Model())
	m.mu.Lock()
	if err != nil {
		m.lastError = err.Error()
	} else {
		m.lastError = ""
	}
	m.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to mirror run %s: %w", res.RunID, err)
	}
	return nil
}

// Status returns the mirror's connection state for health checks
func (m *MongoRecorder) Status(ctx context.Context) map[string]interface{} {
	status := map[string]interface{}{"connected": true}
	if err := m.client.Ping(ctx, nil); err != nil {
		status["connected"] = false
		status["error"] = err.Error()
	}
	m.mu.RLock()
	if m.lastError != "" {
		status["last_write_error"] = m.lastError
	}
	m.mu.RUnlock()
	return status
}

// Close closes the MongoDB connection
func (m *MongoRecorder) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
