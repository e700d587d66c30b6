// Command sessions prints the listening session journal: every session with
// its rate segments, or only those still open after an unclean shutdown.
//
// The journal is opened read-only, so the player must not be running.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/listenupapp/listenup-player/internal/domain"
	"github.com/listenupapp/listenup-player/internal/store"
)

func main() {
	dataPath := flag.String("data-path", os.Getenv("DATA_PATH"), "Player data directory")
	episodeID := flag.String("episode", "", "Only show sessions of this episode")
	openOnly := flag.Bool("open", false, "Only show sessions without an end time")
	flag.Parse()

	if *dataPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to resolve home directory: %v", err)
		}
		*dataPath = filepath.Join(home, "ListenUp", "player")
	}

	journal, err := store.OpenReadOnly(filepath.Join(*dataPath, "sessions"), nil)
	if err != nil {
		log.Fatalf("Failed to open session journal: %v", err)
	}
	defer journal.Close()

	ctx := context.Background()

	var sessions []*domain.PlaySession
	switch {
	case *openOnly:
		sessions, err = journal.ListOpenSessions(ctx)
	case *episodeID != "":
		sessions, err = journal.ListSessionsForEpisode(ctx, *episodeID)
	default:
		sessions, err = journal.ListSessions(ctx)
	}
	if err != nil {
		log.Fatalf("Failed to list sessions: %v", err)
	}

	if *openOnly && *episodeID != "" {
		filtered := sessions[:0]
		for _, s := range sessions {
			if s.EpisodeID == *episodeID {
				filtered = append(filtered, s)
			}
		}
		sessions = filtered
	}

	printSessions(os.Stdout, sessions)
}

func printSessions(w io.Writer, sessions []*domain.PlaySession) {
	fmt.Fprintln(w, "=== Session Journal ===")
	fmt.Fprintln(w)

	var content, wall float64
	open := 0
	for _, s := range sessions {
		status := "closed"
		switch {
		case s.IsOpen():
			status = "OPEN"
			open++
		case s.EndedCleanly != nil && !*s.EndedCleanly:
			status = "recovered"
		}

		fmt.Fprintf(w, "%s  episode=%s  %s\n", s.ID, s.EpisodeID, status)
		fmt.Fprintf(w, "  started %s at %s\n", s.StartTime.Local().Format(time.DateTime), formatPosition(s.StartPosition))
		if s.EndTime != nil && s.EndPosition != nil {
			fmt.Fprintf(w, "  ended   %s at %s\n", s.EndTime.Local().Format(time.DateTime), formatPosition(*s.EndPosition))
		}

		for i, seg := range s.Segments {
			end := "open"
			if seg.EndPosition != nil {
				end = formatPosition(*seg.EndPosition)
			}
			fmt.Fprintf(w, "  [%d] %.2fx  %s -> %s\n", i, seg.Rate, formatPosition(seg.StartPosition), end)
		}
		fmt.Fprintln(w)

		if !s.IsOpen() {
			content += s.ContentSeconds()
			wall += s.WallSeconds()
		}
	}

	fmt.Fprintln(w, "=== Summary ===")
	fmt.Fprintf(w, "Sessions: %d (%d open)\n", len(sessions), open)
	fmt.Fprintf(w, "Content listened: %s\n", time.Duration(content*float64(time.Second)).Round(time.Second))
	fmt.Fprintf(w, "Wall time: %s\n", time.Duration(wall*float64(time.Second)).Round(time.Second))
}

func formatPosition(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
