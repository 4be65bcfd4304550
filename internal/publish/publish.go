// Package publish writes a generated newsletter to disk: the dated JSON
// and HTML artifacts, the latest.json pointer, and the archive index.
package publish

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/kingdomembassy/newsletter/internal/generate"
)

// ArchiveEntry is one line of the archive index, keyed by dateKey. The
// index behaves as a map even though it is stored newest-first as a list.
type ArchiveEntry struct {
	DateKey     string `json:"dateKey"`
	Title       string `json:"title"`
	DateString  string `json:"dateString"`
	Theme       string `json:"theme"`
	GeneratedAt string `json:"generatedAt"`
	JSONFile    string `json:"jsonFile"`
	HTMLFile    string `json:"htmlFile"`
}

// Result reports where a publish run wrote its artifacts.
type Result struct {
	DateKey        string
	JSONPath       string
	HTMLPath       string
	LatestPath     string
	ArchivePath    string
	ArchiveEntries []ArchiveEntry
}

// Publisher owns the output directory.
//
// Known gap: archive.json and latest.json are read-modify-written with no
// file locking, so concurrent publishes race. Runs are on demand and
// serial in practice.
type Publisher struct {
	dir string
	log zerolog.Logger
}

// New builds a Publisher rooted at dir.
func New(dir string, log zerolog.Logger) *Publisher {
	return &Publisher{dir: dir, log: log}
}

// Dir returns the output directory.
func (p *Publisher) Dir() string { return p.dir }

// Publish writes the issue's three files and updates the archive index.
// Publishing the same (month, year) twice replaces the prior artifacts
// and leaves exactly one archive entry for that dateKey.
func (p *Publisher) Publish(n *generate.Newsletter) (*Result, error) {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	dateKey := fmt.Sprintf("%04d-%02d", n.Metadata.Year, n.Metadata.Month)

	data, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling newsletter: %w", err)
	}

	jsonPath := filepath.Join(p.dir, dateKey+".json")
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", jsonPath, err)
	}

	latestPath := filepath.Join(p.dir, "latest.json")
	if err := os.WriteFile(latestPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", latestPath, err)
	}

	html, err := Render(n)
	if err != nil {
		return nil, fmt.Errorf("rendering HTML: %w", err)
	}
	htmlPath := filepath.Join(p.dir, dateKey+".html")
	if err := os.WriteFile(htmlPath, []byte(html), 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", htmlPath, err)
	}

	entry := ArchiveEntry{
		DateKey:     dateKey,
		Title:       n.Metadata.Title,
		DateString:  n.Metadata.DateString,
		Theme:       n.Metadata.Theme,
		GeneratedAt: n.Metadata.GeneratedAt,
		JSONFile:    dateKey + ".json",
		HTMLFile:    dateKey + ".html",
	}
	entries, err := p.updateArchive(entry)
	if err != nil {
		return nil, err
	}

	p.log.Info().Str("dateKey", dateKey).Str("html", htmlPath).Int("archived", len(entries)).Msg("newsletter published")

	return &Result{
		DateKey:        dateKey,
		JSONPath:       jsonPath,
		HTMLPath:       htmlPath,
		LatestPath:     latestPath,
		ArchivePath:    p.ArchivePath(),
		ArchiveEntries: entries,
	}, nil
}

// ArchivePath returns the location of the archive index.
func (p *Publisher) ArchivePath() string {
	return filepath.Join(p.dir, "archive.json")
}

// ReadArchive loads the archive index. A missing or unparsable file
// yields an empty archive: corruption resets the index rather than
// blocking publication.
func (p *Publisher) ReadArchive() []ArchiveEntry {
	data, err := os.ReadFile(p.ArchivePath())
	if err != nil {
		return nil
	}
	var entries []ArchiveEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		p.log.Warn().Err(err).Msg("archive index unparsable, resetting")
		return nil
	}
	return entries
}

// updateArchive removes any entry sharing the new entry's dateKey,
// prepends the new entry, and rewrites the index in full.
func (p *Publisher) updateArchive(entry ArchiveEntry) ([]ArchiveEntry, error) {
	existing := p.ReadArchive()

	entries := make([]ArchiveEntry, 0, len(existing)+1)
	entries = append(entries, entry)
	for _, e := range existing {
		if e.DateKey == entry.DateKey {
			continue
		}
		entries = append(entries, e)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling archive: %w", err)
	}
	if err := os.WriteFile(p.ArchivePath(), data, 0o644); err != nil {
		return nil, fmt.Errorf("writing archive: %w", err)
	}
	return entries, nil
}
