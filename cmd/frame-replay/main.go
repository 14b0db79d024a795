package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Lllllllleong/arfiletagger/internal/corpus"
	"github.com/Lllllllleong/arfiletagger/internal/gcp"
	"github.com/Lllllllleong/arfiletagger/internal/tagstore"
)

// replayConfig is filled from flags, which default to the environment.
type replayConfig struct {
	Store         string
	ProjectID     string
	Collection    string
	CorpusDir     string
	CorpusBucket  string
	CorpusPrefix  string
	CorpusExt     string
	Interval      time.Duration
	LookupTimeout time.Duration
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("frame-replay failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := replayConfig{}
	cmd := &cobra.Command{
		Use:           "frame-replay SCRIPT.yaml",
		Short:         "Replay a scripted AR session through the tagging engine",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.Store, "store", gcp.GetEnv("TAG_STORE", "memory"), "tag store backend: memory or firestore")
	flags.StringVar(&cfg.ProjectID, "project", gcp.GetEnv("PROJECT_ID", ""), "GCP project for the firestore store")
	flags.StringVar(&cfg.Collection, "collection", gcp.GetEnv("TAGS_COLLECTION", tagstore.DefaultCollection), "firestore collection holding tags")
	flags.StringVar(&cfg.CorpusDir, "corpus-dir", gcp.GetEnv("CORPUS_DIR", "./corpus"), "directory of reference images")
	flags.StringVar(&cfg.CorpusBucket, "corpus-bucket", gcp.GetEnv("CORPUS_BUCKET", ""), "Cloud Storage bucket of reference images; overrides --corpus-dir")
	flags.StringVar(&cfg.CorpusPrefix, "corpus-prefix", gcp.GetEnv("CORPUS_PREFIX", ""), "object name prefix inside the corpus bucket")
	flags.StringVar(&cfg.CorpusExt, "corpus-ext", gcp.GetEnv("CORPUS_EXT", corpus.DefaultExt), "image file extension (png or jpg)")
	flags.DurationVar(&cfg.Interval, "interval", gcp.GetDurationEnv("FRAME_INTERVAL", 33*time.Millisecond), "time between frames")
	flags.DurationVar(&cfg.LookupTimeout, "lookup-timeout", gcp.GetDurationEnv("LOOKUP_TIMEOUT", 10*time.Second), "deadline for one tag lookup")
	return cmd
}

func run(ctx context.Context, scriptPath string, cfg replayConfig) error {
	script, err := LoadScript(scriptPath)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	c, closeCorpus, err := openCorpus(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCorpus()

	logger := slog.Default().With("script", scriptPath)
	snap, err := replay(ctx, script, store, c, cfg.Interval, cfg.LookupTimeout, logger)
	if err != nil {
		return err
	}
	logger.Info("Replay finished.", "overlays", len(snap.Overlays), "awaiting", len(snap.Awaiting))
	return nil
}

func openStore(ctx context.Context, cfg replayConfig) (tagstore.Store, func(), error) {
	switch cfg.Store {
	case "", "memory":
		return tagstore.NewMemory(), func() {}, nil
	case "firestore":
		if cfg.ProjectID == "" {
			return nil, nil, fmt.Errorf("PROJECT_ID environment variable must be set for the firestore store")
		}
		client, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		return tagstore.NewFirestore(client, cfg.Collection, slog.Default()), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown tag store %q", cfg.Store)
	}
}

func openCorpus(ctx context.Context, cfg replayConfig) (corpus.Corpus, func(), error) {
	if cfg.CorpusBucket == "" {
		c, err := corpus.NewFileCorpus(cfg.CorpusDir, cfg.CorpusExt, slog.Default())
		if err != nil {
			return nil, nil, err
		}
		return c, func() {}, nil
	}
	client, err := gcp.NewStorageClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	c, err := corpus.NewBucketCorpus(client, cfg.CorpusBucket, cfg.CorpusPrefix, cfg.CorpusExt, slog.Default())
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return c, func() { _ = client.Close() }, nil
}
