// Command import adds audio files to the player library without starting
// playback. It takes the same data directory lock as the player.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/listenupapp/listenup-player/internal/instance"
	"github.com/listenupapp/listenup-player/internal/library"
	"github.com/listenupapp/listenup-player/internal/store/sqlite"
)

func main() {
	dataPath := flag.String("data-path", os.Getenv("DATA_PATH"), "Player data directory")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Println("Usage: import [-data-path dir] <file-or-directory>...")
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if *dataPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			logger.Error("resolve home directory", "error", err)
			os.Exit(1)
		}
		*dataPath = filepath.Join(home, "ListenUp", "player")
	}

	if err := run(*dataPath, flag.Args(), logger); err != nil {
		logger.Error("import failed", "error", err)
		os.Exit(1)
	}
}

func run(dataPath string, paths []string, logger *slog.Logger) error {
	lock, err := instance.Acquire(filepath.Join(dataPath, "player.lock"))
	if err != nil {
		return err
	}
	defer lock.Release()

	db, err := sqlite.Open(filepath.Join(dataPath, "library.db"), logger)
	if err != nil {
		return err
	}
	defer db.Close()

	importer := library.NewImporter(db, nil, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	started := time.Now()
	total, chapterCount := 0, 0
	for _, path := range paths {
		episodes, err := importer.ImportPath(ctx, path)
		if err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
		for _, ep := range episodes {
			chs, err := db.Chapters(ctx, ep.ID)
			if err != nil {
				return err
			}
			fmt.Printf("%s  %s (%d chapters)\n", ep.ID, ep.Title, len(chs))
			chapterCount += len(chs)
		}
		total += len(episodes)
	}

	fmt.Printf("\n=== Import Complete ===\n")
	fmt.Printf("Duration: %s\n", time.Since(started).Round(time.Millisecond))
	fmt.Printf("Episodes: %d\n", total)
	fmt.Printf("Chapters: %d\n", chapterCount)
	return nil
}
