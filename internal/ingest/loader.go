// Package ingest turns reference documents into embedded chunks for a document store.
package ingest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// Document is the plain text of one source file
type Document struct {
	SourceID string // path relative to the indexed root
	Text     string
}

// Supported reports whether path has an extension LoadFile understands
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".markdown", ".html", ".htm":
		return true
	}
	return false
}

// LoadFile reads a text, markdown or HTML file into a Document
func LoadFile(path, sourceID string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", path, err)
	}

	text := string(raw)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		text, err = ExtractText(text)
		if err != nil {
			return Document{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".txt", ".md", ".markdown":
	default:
		return Document{}, fmt.Errorf("unsupported file type: %s", path)
	}

	return Document{SourceID: sourceID, Text: strings.TrimSpace(text)}, nil
}

// LoadDir loads every supported file under root in lexical order. A
// regular file is loaded on its own.
func LoadDir(root string) ([]Document, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		doc, err := LoadFile(root, filepath.Base(root))
		if err != nil {
			return nil, err
		}
		return []Document{doc}, nil
	}

	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if Supported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(paths)

	docs := make([]Document, 0, len(paths))
	for _, path := range paths {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		doc, err := LoadFile(path, filepath.ToSlash(rel))
		if err != nil {
			return nil, err
		}
		if doc.Text == "" {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// ExtractText returns the visible text of an HTML document, skipping
// scripts, styles and navigation chrome. Block elements end a line.
func ExtractText(htmlContent string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "nav", "header", "footer":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.Join(strings.Fields(n.Data), " ")
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && isBlock(n.Data) {
			buf.WriteString("\n")
		}
	}
	walk(doc)

	lines := strings.Split(buf.String(), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n"), nil
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "li", "tr", "br", "h1", "h2", "h3", "h4", "h5", "h6",
		"blockquote", "pre", "section", "article", "table", "ul", "ol":
		return true
	}
	return false
}
