// Package transcript renders a completed deliberation to a
// human-readable markdown document on disk.
package transcript

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/blueman82/go-counsel/internal/errs"
	"github.com/blueman82/go-counsel/internal/log"
	"github.com/blueman82/go-counsel/pkg/domain"
)

// Writer renders a DeliberationResult to a markdown file under Dir,
// named YYYYMMDD_HHMMSS_<slug>.md. A single reusable *zstd.Encoder is
// held for the writer's lifetime rather than constructed per rotation
// call.
type Writer struct {
	Dir string

	// RetainUncompressed is how many of the newest transcript files in
	// Dir are left as plain markdown; older ones are zstd-compressed
	// in place on the next Write call. Zero disables rotation.
	RetainUncompressed int

	encoder *zstd.Encoder
}

// New creates a Writer rooted at dir, creating it if absent.
func New(dir string, retainUncompressed int) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Storage(err, "transcript directory %q", dir)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, errs.Storage(err, "zstd encoder init")
	}
	return &Writer{Dir: dir, RetainUncompressed: retainUncompressed, encoder: enc}, nil
}

var nonSlugChar = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(question string, maxLen int) string {
	s := strings.ToLower(strings.TrimSpace(question))
	s = nonSlugChar.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		s = "deliberation"
	}
	if len(s) > maxLen {
		s = strings.TrimRight(s[:maxLen], "-")
	}
	return s
}

// Write renders result to disk and returns the path written. The
// filename timestamp is taken from time.Now(); use WriteAt to supply
// it explicitly.
func (w *Writer) Write(ctx context.Context, req domain.DeliberateRequest, result domain.DeliberationResult) (string, error) {
	return w.WriteAt(ctx, req, result, time.Now())
}

// WriteAt is Write with an explicit timestamp, exercised directly by
// tests that need deterministic filenames.
func (w *Writer) WriteAt(ctx context.Context, req domain.DeliberateRequest, result domain.DeliberationResult, now time.Time) (string, error) {
	name := fmt.Sprintf("%s_%s.md", now.UTC().Format("20060102_150405"), slugify(req.Question, 60))
	path := filepath.Join(w.Dir, name)

	body := render(req, result)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", errs.Storage(err, "writing transcript %q", path)
	}

	if w.RetainUncompressed > 0 {
		if err := w.rotate(); err != nil {
			log.Warn("transcript rotation failed", zap.Error(err))
		}
	}
	return path, nil
}

func render(req domain.DeliberateRequest, result domain.DeliberationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Deliberation: %s\n\n", req.Question)
	fmt.Fprintf(&b, "- Status: %s\n", result.Status)
	fmt.Fprintf(&b, "- Mode: %s\n", result.Mode)
	fmt.Fprintf(&b, "- Rounds completed: %d / %d\n", result.RoundsCompleted, result.RoundsRequested)
	fmt.Fprintf(&b, "- Participants: %s\n\n", strings.Join(result.Participants, ", "))

	if result.ConvergenceInfo != nil {
		ci := result.ConvergenceInfo
		fmt.Fprintf(&b, "## Convergence\n\n- Status: %s\n- Final similarity: %.3f\n\n", ci.Status, ci.FinalSimilarity)
	}

	if result.VotingResult != nil {
		vr := result.VotingResult
		b.WriteString("## Votes\n\n")
		keys := make([]string, 0, len(vr.FinalTally))
		for k := range vr.FinalTally {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %d\n", k, vr.FinalTally[k])
		}
		if vr.WinningOption != nil {
			fmt.Fprintf(&b, "\nWinning option: **%s**\n", *vr.WinningOption)
		}
		b.WriteString("\n")
	}

	if result.Summary != nil {
		s := result.Summary
		b.WriteString("## Summary\n\n")
		fmt.Fprintf(&b, "%s\n\n", s.Consensus)
		if len(s.KeyAgreements) > 0 {
			b.WriteString("**Agreements:**\n\n")
			for _, a := range s.KeyAgreements {
				fmt.Fprintf(&b, "- %s\n", a)
			}
			b.WriteString("\n")
		}
		if len(s.KeyDisagreements) > 0 {
			b.WriteString("**Disagreements:**\n\n")
			for _, d := range s.KeyDisagreements {
				fmt.Fprintf(&b, "- %s\n", d)
			}
			b.WriteString("\n")
		}
		if s.FinalRecommendation != "" {
			fmt.Fprintf(&b, "**Recommendation:** %s\n\n", s.FinalRecommendation)
		}
	}

	b.WriteString("## Full debate\n\n")
	titleCaser := cases.Title(language.English)
	for _, r := range result.FullDebate {
		fmt.Fprintf(&b, "### Round %d — %s (%s)\n\n%s\n\n", r.Round, r.Participant, titleCaser.String(string(r.Stance)), r.Text)
	}

	return b.String()
}

// rotate zstd-compresses every .md file in Dir beyond the newest
// RetainUncompressed, writing a .md.zst and removing the original.
// Best-effort: a failure on one file does not stop the rest.
func (w *Writer) rotate() error {
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		return errs.Storage(err, "reading transcript directory")
	}
	var mdFiles []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			mdFiles = append(mdFiles, e.Name())
		}
	}
	sort.Strings(mdFiles) // filenames are timestamp-prefixed, so lexical order is chronological
	if len(mdFiles) <= w.RetainUncompressed {
		return nil
	}
	for _, name := range mdFiles[:len(mdFiles)-w.RetainUncompressed] {
		if err := w.compressOne(filepath.Join(w.Dir, name)); err != nil {
			log.Warn("transcript compression failed", zap.String("file", name), zap.Error(err))
		}
	}
	return nil
}

func (w *Writer) compressOne(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path + ".zst")
	if err != nil {
		return err
	}
	defer dst.Close()

	w.encoder.Reset(dst)
	if _, err := io.Copy(w.encoder, src); err != nil {
		return err
	}
	if err := w.encoder.Close(); err != nil {
		return err
	}
	src.Close()
	return os.Remove(path)
}
