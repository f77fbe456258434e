package rag

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

/*
A profile document looks like:

	personal_info:
	  name: Jane Doe
	  title: Backend Engineer
	education:
	  - degree: BSc Computer Science
	    school: State University
	skills:
	  core: [Go, Kubernetes, PostgreSQL]
	experience:
	  - company: Acme
	    role: Senior Engineer

JSON profiles are read the same way since JSON is valid YAML.
*/

var ErrEmptyProfile = errors.New("profile produced no chunks")

// Chunk is one titled snippet of the profile, ready to embed.
type Chunk struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// LoadProfile reads a JSON or YAML profile document from path.
func LoadProfile(path string) (*yaml.Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile: %w", err)
	}
	defer f.Close()

	return ParseProfile(f)
}

// ParseProfile decodes a profile document, keeping key order.
func ParseProfile(r io.Reader) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}

	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("failed to parse profile: top level must be a mapping")
	}

	return root, nil
}

// ChunkProfile splits a profile into titled chunks. IDs are assigned in
// output order as chunk_0, chunk_1, ... so re-ingesting replaces entries.
func ChunkProfile(profile *yaml.Node) []Chunk {
	var chunks []Chunk
	add := func(title, content string) {
		content = strings.TrimSpace(content)
		if content == "" {
			return
		}
		chunks = append(chunks, Chunk{Title: title, Content: content})
	}

	if info := mappingValue(profile, "personal_info"); info != nil && info.Kind == yaml.MappingNode {
		var parts []string
		forEachPair(info, func(key string, value *yaml.Node) {
			if value.Kind == yaml.ScalarNode && value.Value != "" {
				parts = append(parts, fmt.Sprintf("%s: %s", key, value.Value))
			}
		})
		add("Personal Info", strings.Join(parts, " "))
	}

	addEntries(profile, "education", "Education", add)
	chunkSkills(profile, add)
	addEntries(profile, "experience", "Experience", add)
	addEntries(profile, "projects", "Projects", add)

	for i := range chunks {
		chunks[i].ID = fmt.Sprintf("chunk_%d", i)
	}

	return chunks
}

// addEntries turns each element of a list section into its own chunk.
func addEntries(profile *yaml.Node, key, title string, add func(title, content string)) {
	entries := mappingValue(profile, key)
	if entries == nil || entries.Kind != yaml.SequenceNode {
		return
	}
	for _, entry := range entries.Content {
		add(title, renderValue(entry, ", "))
	}
}

func chunkSkills(profile *yaml.Node, add func(title, content string)) {
	skills := mappingValue(profile, "skills")
	if skills == nil {
		return
	}

	switch skills.Kind {
	case yaml.SequenceNode:
		add("Skills", renderValue(skills, ", "))
	case yaml.MappingNode:
		forEachPair(skills, func(key string, value *yaml.Node) {
			if key == "core" {
				add("Skills", renderValue(value, ", "))
				return
			}
			add("Skills: "+humanize(key), renderValue(value, ", "))
		})
	}
}

// ExportFormat represents supported export formats
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
)

// ExportChunks writes chunks in the given format.
func ExportChunks(chunks []Chunk, format string, writer io.Writer) error {
	if ExportFormat(strings.ToLower(format)) != FormatJSON {
		return fmt.Errorf("unsupported export format: %s (supported: json)", format)
	}
	if chunks == nil {
		chunks = []Chunk{}
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(chunks)
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func forEachPair(node *yaml.Node, fn func(key string, value *yaml.Node)) {
	for i := 0; i+1 < len(node.Content); i += 2 {
		fn(node.Content[i].Value, node.Content[i+1])
	}
}

// renderValue flattens a node into one line of text.
func renderValue(node *yaml.Node, sep string) string {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Value
	case yaml.SequenceNode:
		var parts []string
		for _, item := range node.Content {
			if s := renderValue(item, "; "); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, sep)
	case yaml.MappingNode:
		var parts []string
		forEachPair(node, func(key string, value *yaml.Node) {
			if s := renderValue(value, "; "); s != "" {
				parts = append(parts, fmt.Sprintf("%s: %s", key, s))
			}
		})
		return strings.Join(parts, sep)
	case yaml.AliasNode:
		if node.Alias != nil {
			return renderValue(node.Alias, sep)
		}
	}
	return ""
}

func humanize(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
