package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/Yates-Labs/twin/internal/rag"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"a longer sentence", 8, "a longe…"},
		{"héllo wörld", 5, "héll…"},
		{"abc", 1, "a"},
	}

	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestHandleExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.json")
	chunks := []rag.Chunk{
		{ID: "chunk_0", Title: "Personal Info", Content: "name: Jane"},
		{ID: "chunk_1", Title: "Skills", Content: "Go"},
	}

	if err := handleExport(chunks, path); err != nil {
		t.Fatalf("handleExport failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}
	var decoded []rag.Chunk
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if len(decoded) != 2 || decoded[1] != chunks[1] {
		t.Errorf("unexpected export: %+v", decoded)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"serve": false, "ask": false, "ingest": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}
