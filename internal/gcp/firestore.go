package gcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/firestore"
)

// FirestoreDatabaseID names the database that holds the tag collection.
// Deployments that keep tags outside the default database set FIRESTORE_DATABASE.
func FirestoreDatabaseID() string {
	if id := GetEnv("FIRESTORE_DATABASE", ""); id != "" {
		return id
	}
	return firestore.DefaultDatabaseID
}

// NewFirestoreClient opens the tag database for projectID. Every service and
// the replay tool share it, so a tag written by one is read by the others.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to open the tag database")
	}
	databaseID := FirestoreDatabaseID()

	logCtx := slog.With("projectId", projectID, "database", databaseID)
	if host := os.Getenv("FIRESTORE_EMULATOR_HOST"); host != "" {
		logCtx = logCtx.With("emulator", host)
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		logCtx.Error("Failed to open tag database", "error", err)
		return nil, fmt.Errorf("failed to create Firestore client for database %s: %w", databaseID, err)
	}
	logCtx.Info("Opened tag database.")
	return client, nil
}
