// Package source discovers and reads the extracted-text catalog documents
// a batch run operates on. Discovery is "all matching extension in one
// directory", no recursion.
package source

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Document is one discovered source file.
type Document struct {
	Path string
	Name string
	// CatalogDate is the "YYYY-MM" publication period parsed from the
	// filename; empty when the filename carries no date.
	CatalogDate string
}

// catalogDateRe matches the publication period embedded in source
// filenames such as "catalog-2019-08.txt".
var catalogDateRe = regexp.MustCompile(`(\d{4})-(\d{2})`)

// Discover lists every file with the given extension directly inside dir,
// sorted by name. Sub-directories are not recursed into.
func Discover(dir, ext string) ([]Document, error) {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read source directory %s: %w", dir, err)
	}

	var docs []Document
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ext) {
			continue
		}
		docs = append(docs, Document{
			Path:        filepath.Join(dir, entry.Name()),
			Name:        entry.Name(),
			CatalogDate: DateOf(entry.Name()),
		})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

// FromPaths builds Documents from an explicit file list.
func FromPaths(paths []string) []Document {
	docs := make([]Document, 0, len(paths))
	for _, p := range paths {
		docs = append(docs, Document{
			Path:        p,
			Name:        filepath.Base(p),
			CatalogDate: DateOf(filepath.Base(p)),
		})
	}
	return docs
}

// DateOf extracts the "YYYY-MM" period from a filename, or "" when none is
// present. Callers treat "" as "use the latest format generation".
func DateOf(name string) string {
	m := catalogDateRe.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	month := m[2]
	if month < "01" || month > "12" {
		return ""
	}
	return m[1] + "-" + month
}

// Read loads the raw text of a source document and determines its page
// count. When a sidecar PDF sits next to the text file its page count is
// authoritative; otherwise form feeds left by text extraction are counted,
// with a rough length-based estimate as the last resort.
func Read(doc Document) (string, int, error) {
	raw, err := os.ReadFile(doc.Path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read source %s: %w", doc.Path, err)
	}
	text := string(raw)
	return text, pageCount(doc, text), nil
}

// charsPerPage approximates how much extracted text one catalog page
// yields, used only when no better page signal exists.
const charsPerPage = 3000

func pageCount(doc Document, text string) int {
	sidecar := strings.TrimSuffix(doc.Path, filepath.Ext(doc.Path)) + ".pdf"
	if _, err := os.Stat(sidecar); err == nil {
		if n, err := api.PageCountFile(sidecar); err == nil && n > 0 {
			return n
		} else if err != nil {
			slog.Warn("Sidecar PDF present but unreadable; falling back to text heuristics.", "pdf", sidecar, "error", err)
		}
	}
	if n := strings.Count(text, "\f"); n > 0 {
		return n + 1
	}
	n := len(text) / charsPerPage
	if n < 1 {
		n = 1
	}
	return n
}
