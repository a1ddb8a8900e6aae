package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/fatih/color"

	"streamsift/internal/cli"
	"streamsift/internal/config"
	"streamsift/internal/extract"
	"streamsift/internal/metadata"
	"streamsift/internal/platform"
	"streamsift/internal/relay"
	"streamsift/internal/resolve"
	"streamsift/internal/sandbox"
	"streamsift/pkg/dirs"
	"streamsift/pkg/logger"
	"streamsift/pkg/progress"
)

func main() {
	args := &cli.Args{}
	rootCmd := cli.NewRootCommand(args, func() error {
		return run(args)
	})
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type output struct {
	Kind       string               `json:"kind"`
	URL        string               `json:"url,omitempty"`
	NeedsRelay bool                 `json:"needsRelay,omitempty"`
	Items      []extract.PickerItem `json:"items,omitempty"`
	EmbedURL   string               `json:"embedUrl,omitempty"`
	Metadata   *metadata.Meta       `json:"metadata,omitempty"`
}

func run(a *cli.Args) error {
	cfg, err := config.Load(a.ConfigPath)
	if err != nil {
		return err
	}

	logger.InitDefaultLogger(a.Debug || cfg.Debug, a.LogFile)

	quality := a.Quality
	if quality == 0 {
		quality = cfg.Quality
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rc := relay.New(cfg, nil)

	var sb *sandbox.Manager
	if !a.NoSandbox {
		dataDir, err := dirs.GetDataDir()
		if err != nil {
			return err
		}
		sb = sandbox.NewManager(cfg, rc, dataDir)
		// Bootstrap in the background while the platform chain runs, so a
		// fallthrough to the universal extractor doesn't start cold.
		sb.Prewarm(0)
	}
	router := resolve.New(cfg, rc, sb)

	ref := platform.Classify(a.URL)
	slog.Debug("classified", "platform", ref.Platform)

	var notify extract.ProgressFunc
	var reporter *progress.Reporter
	if !a.NoProgress && !a.JSON {
		reporter = progress.New(os.Stderr)
		notify = reporter.Notify
	}

	res := router.Resolve(ctx, extract.Request{
		URL:      a.URL,
		Platform: ref.Platform,
		Quality:  quality,
		Notify:   notify,
	})
	if reporter != nil {
		reporter.Done()
	}

	out := output{
		Kind:       res.Kind.String(),
		URL:        res.URL,
		NeedsRelay: res.NeedsRelay,
		Items:      res.Items,
	}
	if res.Kind == extract.KindEmbedOnly {
		out.EmbedURL = platform.EmbedURL(a.URL, ref.Platform)
	}
	if a.Metadata {
		meta := metadata.New(cfg, rc, nil, metadata.ChromeRenderer{}).Fetch(ctx, a.URL)
		out.Metadata = &meta
	}

	if a.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	printHuman(a.URL, ref, out)
	return nil
}

func printHuman(rawURL string, ref platform.Ref, out output) {
	bold := color.New(color.Bold)
	switch out.Kind {
	case "direct":
		bold.Printf("stream: ")
		color.Green(out.URL)
		if out.NeedsRelay {
			fmt.Println("(served through a CORS relay)")
		}
	case "picker":
		bold.Println("multiple streams found, pick one:")
		for i, item := range out.Items {
			fmt.Printf("  %2d. %s\n", i+1, item.URL)
		}
	case "embed-only":
		bold.Printf("no direct stream for %s; embed instead:\n", ref.Platform)
		if out.EmbedURL != "" {
			color.Cyan(out.EmbedURL)
		} else {
			fmt.Println(rawURL)
		}
	default:
		color.Red("no stream found")
		fmt.Printf("try the embed, or open the original URL: %s\n", rawURL)
	}
	if out.Metadata != nil && out.Metadata.Title != "" {
		fmt.Printf("title: %s\n", out.Metadata.Title)
	}
}
