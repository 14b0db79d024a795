package gcp

import (
	"context"
	"strings"
	"testing"

	"cloud.google.com/go/firestore"
)

func TestFirestoreDatabaseID(t *testing.T) {
	t.Setenv("FIRESTORE_DATABASE", "")
	if got := FirestoreDatabaseID(); got != firestore.DefaultDatabaseID {
		t.Fatalf("FirestoreDatabaseID() = %q, want %q", got, firestore.DefaultDatabaseID)
	}
	t.Setenv("FIRESTORE_DATABASE", "tags-eu")
	if got := FirestoreDatabaseID(); got != "tags-eu" {
		t.Fatalf("FirestoreDatabaseID() = %q, want tags-eu", got)
	}
}

func TestNewFirestoreClientRequiresProject(t *testing.T) {
	_, err := NewFirestoreClient(context.Background(), "")
	if err == nil || !strings.Contains(err.Error(), "projectID") {
		t.Fatalf("err = %v, want projectID error", err)
	}
}
