// Package chapters derives chapter state from a playback position and applies
// auto-skip rules. Everything here is pure: no I/O, no shared state.
package chapters

import "github.com/listenupapp/listenup-player/internal/domain"

// Resolution is the chapter state for one position.
type Resolution struct {
	Current  *domain.Chapter
	Next     *domain.Chapter
	Previous *domain.Chapter
	Progress float64
}

// Resolve computes current, next, previous chapter and chapter progress.
// The returned chapters point into the given slice.
func Resolve(position float64, chapters []domain.Chapter, episodeDuration float64) Resolution {
	var res Resolution

	idx := CurrentIndex(position, chapters)
	if idx >= 0 {
		res.Current = &chapters[idx]
		if idx > 0 {
			res.Previous = &chapters[idx-1]
		}
		res.Progress = progressAt(position, idx, chapters, episodeDuration)
	}
	res.Next = Next(position, chapters)

	return res
}

// CurrentIndex returns the index of the chapter with the greatest start <= position,
// or -1 if none qualifies. Ties go to the later entry.
func CurrentIndex(position float64, chapters []domain.Chapter) int {
	idx := -1
	for i := range chapters {
		if chapters[i].Start <= position {
			idx = i
			continue
		}
		break
	}
	return idx
}

// Current returns the chapter playing at position, or nil.
func Current(position float64, chapters []domain.Chapter) *domain.Chapter {
	idx := CurrentIndex(position, chapters)
	if idx < 0 {
		return nil
	}
	return &chapters[idx]
}

// Next returns the first playable chapter starting after position, or nil.
func Next(position float64, chapters []domain.Chapter) *domain.Chapter {
	for i := range chapters {
		if chapters[i].ShouldPlay && chapters[i].Start > position {
			return &chapters[i]
		}
	}
	return nil
}

// Previous returns the chapter before the current one, or nil.
func Previous(position float64, chapters []domain.Chapter) *domain.Chapter {
	idx := CurrentIndex(position, chapters)
	if idx <= 0 {
		return nil
	}
	return &chapters[idx-1]
}

// End returns the end of chapter i: the next chapter's start, the episode
// duration for the last chapter, or false when neither is known.
func End(i int, chapters []domain.Chapter, episodeDuration float64) (float64, bool) {
	if i < 0 || i >= len(chapters) {
		return 0, false
	}
	if i+1 < len(chapters) {
		return chapters[i+1].Start, true
	}
	if episodeDuration > 0 {
		return episodeDuration, true
	}
	return 0, false
}

// EndOf is End for a chapter reference taken from chapters.
func EndOf(chapter *domain.Chapter, chapters []domain.Chapter, episodeDuration float64) (float64, bool) {
	return End(indexOf(chapter, chapters), chapters, episodeDuration)
}

// Progress returns (position - start) / (end - start) for chapter.
// When no end can be resolved the chapter is treated as zero length and progress is 0.
// Values above 1 are possible once position runs past the resolvable end.
func Progress(position float64, chapter *domain.Chapter, chapters []domain.Chapter, episodeDuration float64) float64 {
	if chapter == nil {
		return 0
	}
	idx := indexOf(chapter, chapters)
	if idx < 0 {
		end := chapter.Start
		if episodeDuration > 0 {
			end = episodeDuration
		}
		return ratio(position, chapter.Start, end)
	}
	return progressAt(position, idx, chapters, episodeDuration)
}

func progressAt(position float64, idx int, chapters []domain.Chapter, episodeDuration float64) float64 {
	start := chapters[idx].Start
	end, ok := End(idx, chapters, episodeDuration)
	if !ok {
		end = start
	}
	return ratio(position, start, end)
}

func ratio(position, start, end float64) float64 {
	length := end - start
	if length <= 0 {
		return 0
	}
	return (position - start) / length
}

func indexOf(chapter *domain.Chapter, chapters []domain.Chapter) int {
	if chapter == nil {
		return -1
	}
	for i := range chapters {
		if chapters[i].SameAs(chapter) {
			return i
		}
	}
	return -1
}
