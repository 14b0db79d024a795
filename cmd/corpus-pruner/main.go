package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/arfiletagger/internal/services"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

var (
	prunerInstance *services.CorpusPrunerFunction
	once           sync.Once
	initErr        error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("PruneTags", pruneTags)
}

// main is required by the Go Functions Framework.
func main() {}

// pruneTags removes the tag of a reference image deleted from the corpus bucket.
func pruneTags(ctx context.Context, e cloudevents.Event) error {
	if e.Type() != services.ObjectDeletedEventType {
		slog.Info("Ignoring event", "type", e.Type(), "id", e.ID())
		return nil
	}

	once.Do(func() {
		prunerInstance, initErr = services.NewCorpusPruner(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent services.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// Returning the error marks the invocation as failed so it is retried.
	return prunerInstance.Process(ctx, gcsEvent)
}
