// Package wudoc reads and writes per-unit documents: one Markdown file
// per work unit with a YAML frontmatter block carrying the structured
// record. The coordination core only interprets the frontmatter; the
// Markdown body is authored externally and passes through untouched.
package wudoc

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wucoord/wu/internal/types"
)

const fence = "---"

// Doc is one unit document: the structured record plus the opaque body.
type Doc struct {
	Unit types.WorkUnit
	Body string
	Path string
}

// PathFor returns the canonical document path for a unit id.
func PathFor(dir, id string) string {
	return filepath.Join(dir, id+".md")
}

// Read parses a unit document from disk.
func Read(path string) (*Doc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("unit document %s: %w", path, types.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read unit document: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	doc.Path = path
	return doc, nil
}

// ReadByID reads the canonical document for a unit id from dir.
func ReadByID(dir, id string) (*Doc, error) {
	if err := types.ValidateID(id); err != nil {
		return nil, err
	}
	return Read(PathFor(dir, id))
}

// Parse splits frontmatter from body and decodes the work unit record.
func Parse(data []byte) (*Doc, error) {
	text := string(data)
	if !strings.HasPrefix(text, fence+"\n") && text != fence {
		return nil, fmt.Errorf("unit document missing frontmatter fence")
	}
	rest := strings.TrimPrefix(text, fence+"\n")
	idx := strings.Index(rest, "\n"+fence)
	if idx < 0 {
		return nil, fmt.Errorf("unit document frontmatter is unterminated")
	}
	front := rest[:idx+1]
	body := rest[idx+len("\n"+fence):]
	// The first newline terminates the fence line; the second is the
	// blank separator before the body. Neither belongs to the body.
	body = strings.TrimPrefix(body, "\n")
	body = strings.TrimPrefix(body, "\n")

	var unit types.WorkUnit
	if err := yaml.Unmarshal([]byte(front), &unit); err != nil {
		return nil, fmt.Errorf("malformed unit frontmatter: %w", err)
	}
	return &Doc{Unit: unit, Body: body}, nil
}

// Write serializes the document to its path, creating parent directories
// as needed. The full read-modify-write happens inside one workspace, so
// no cross-process locking is attempted here.
func Write(doc *Doc) error {
	if doc.Path == "" {
		return fmt.Errorf("unit document has no path")
	}
	if err := doc.Unit.Validate(); err != nil {
		return fmt.Errorf("refusing to write: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(fence + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc.Unit); err != nil {
		return fmt.Errorf("failed to encode unit frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode unit frontmatter: %w", err)
	}
	buf.WriteString(fence + "\n")
	if doc.Body != "" {
		buf.WriteString("\n")
		buf.WriteString(doc.Body)
		if !strings.HasSuffix(doc.Body, "\n") {
			buf.WriteString("\n")
		}
	}

	if err := os.MkdirAll(filepath.Dir(doc.Path), 0755); err != nil {
		return fmt.Errorf("failed to create unit directory: %w", err)
	}
	if err := os.WriteFile(doc.Path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write unit document: %w", err)
	}
	return nil
}

// List reads every unit document in dir, sorted by filename for
// deterministic iteration. Documents that fail to parse are skipped and
// reported in the returned problem list rather than aborting the scan.
func List(dir string) ([]*Doc, []string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to list unit documents: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var docs []*Doc
	var problems []string
	for _, name := range names {
		doc, err := Read(filepath.Join(dir, name))
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		docs = append(docs, doc)
	}
	return docs, problems, nil
}

// Rename moves a document to the canonical path for newID, rewriting the
// internal id field to match. Used by duplicate-identifier repair.
func Rename(doc *Doc, dir, newID string) error {
	if err := types.ValidateID(newID); err != nil {
		return err
	}
	oldPath := doc.Path
	doc.Unit.ID = newID
	doc.Path = PathFor(dir, newID)
	if err := Write(doc); err != nil {
		return err
	}
	if oldPath != "" && oldPath != doc.Path {
		if err := os.Remove(oldPath); err != nil {
			return fmt.Errorf("failed to remove old unit document: %w", err)
		}
	}
	return nil
}
