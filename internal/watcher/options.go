package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

// Options configures the file watcher behavior.
type Options struct {
	// SettleDelay is how long a file must stay unchanged before it is
	// reported. Defaults to 2s; podcast files are often still being copied.
	SettleDelay time.Duration
	// Accept filters files by path. Nil accepts everything.
	Accept func(path string) bool
	// IncludeHidden reports dot files and descends into dot directories.
	IncludeHidden bool
}

func (o *Options) setDefaults() {
	if o.SettleDelay <= 0 {
		o.SettleDelay = 2 * time.Second
	}
}

// ignored reports whether a path is never watched or reported.
func (o *Options) ignored(path string) bool {
	if !o.IncludeHidden {
		for part := range strings.SplitSeq(filepath.Clean(path), string(filepath.Separator)) {
			if strings.HasPrefix(part, ".") && part != "." && part != ".." {
				return true
			}
		}
	}
	return false
}

// accepts reports whether a settled file should be reported.
func (o *Options) accepts(path string) bool {
	return o.Accept == nil || o.Accept(path)
}
