// Command chaptest prints the metadata and chapters the library importer
// would read from an audio file, marking chapters an auto-skip rule file
// would skip.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/listenupapp/listenup-player/internal/chapters"
	"github.com/listenupapp/listenup-player/internal/library"
)

func main() {
	rulesPath := flag.String("rules", "", "Auto-skip rules (TOML)")
	limit := flag.Int("limit", 10, "Maximum chapters to print")
	flag.Parse()

	if flag.NArg() < 1 {
		log.Fatal("Usage: chaptest [-rules file] <audio_file>")
	}

	path := flag.Arg(0)
	fmt.Printf("Testing: %s\n\n", path)

	rules, err := chapters.LoadRules(*rulesPath)
	if err != nil {
		log.Fatalf("Failed to load rules: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	meta, err := library.AudiometaReader{}.Read(ctx, path)
	if err != nil {
		log.Fatalf("Failed to read file: %v", err)
	}

	podcast := meta.Album
	if podcast == "" {
		podcast = meta.Artist
	}

	fmt.Printf("Duration: %.1f sec\n", meta.Duration)
	fmt.Printf("Podcast: %s\n", podcast)
	fmt.Printf("Title: %s\n", meta.Title)
	fmt.Printf("Rules: %d\n", rules.Len())
	fmt.Println()

	fmt.Printf("Chapters: %d\n", len(meta.Chapters))
	skipped := 0
	for i, ch := range meta.Chapters {
		skip := rules.Matches(podcast, ch.Title)
		if skip {
			skipped++
		}
		if i >= *limit {
			continue
		}

		mark := " "
		if skip {
			mark = "S"
		}
		fmt.Printf("  %s [%d] %s (%.1f - %.1f sec)\n", mark, i, ch.Title, ch.Start, ch.End)
	}
	if len(meta.Chapters) > *limit {
		fmt.Printf("  ... and %d more chapters\n", len(meta.Chapters)-*limit)
	}
	fmt.Printf("Would skip: %d\n", skipped)
}
