package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/arfiletagger/internal/models"
	"github.com/Lllllllleong/arfiletagger/internal/services"
)

var (
	managerInstance *services.TagManagerFunction
	once            sync.Once
	initErr         error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleListTags", handleListTags)
	functions.HTTP("HandleSaveTag", handleSaveTag)
	functions.HTTP("HandleDeleteTag", handleDeleteTag)
	functions.HTTP("HandleSuggestTag", handleSuggestTag)
}

// main is required by the Go Functions Framework.
func main() {}

func instance(w http.ResponseWriter) *services.TagManagerFunction {
	once.Do(func() {
		managerInstance, initErr = services.NewTagManager(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return nil
	}
	return managerInstance
}

func handleListTags(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	f := instance(w)
	if f == nil {
		return
	}
	res, err := f.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res)
}

func handleSaveTag(w http.ResponseWriter, r *http.Request) {
	var req models.SaveTagRequest
	if !decode(w, r, &req) {
		return
	}
	f := instance(w)
	if f == nil {
		return
	}
	res, err := f.Save(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res)
}

func handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	var req models.DeleteTagRequest
	if !decode(w, r, &req) {
		return
	}
	f := instance(w)
	if f == nil {
		return
	}
	res, err := f.Delete(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res)
}

func handleSuggestTag(w http.ResponseWriter, r *http.Request) {
	var req models.SuggestTagRequest
	if !decode(w, r, &req) {
		return
	}
	f := instance(w)
	if f == nil {
		return
	}
	res, err := f.Suggest(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res)
}

// decode reads a JSON POST body into v, answering the request itself on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		slog.Error("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
	case errors.Is(err, models.ErrNotFound):
		http.Error(w, "Not Found", http.StatusNotFound)
	default:
		// The specific error is already logged inside the service.
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
		http.Error(w, "Internal Server Error: failed to encode response", http.StatusInternalServerError)
	}
}
