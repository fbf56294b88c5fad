package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidateFile_SampleHunts(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("..", "..", "data", "hunts", "*.json"))
	if err != nil {
		t.Fatalf("Failed to list hunts: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("Expected sample hunt files")
	}
	for _, f := range files {
		if err := validateFile(f); err != nil {
			t.Errorf("Expected %s to be valid: %v", f, err)
		}
	}
}

func TestValidateFile_Rejects(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"wrong extension", "hunt.yaml", `{}`},
		{"unknown field", "hunt.json", `{"id":"h","secret":1,"clues":[{"id":"c1","question":"q","answer":"a"}]}`},
		{"camel case id", "hunt.json", `{"id":"myHunt","clues":[{"id":"c1","question":"q","answer":"a"}]}`},
		{"missing question", "hunt.json", `{"id":"h","clues":[{"id":"c1","answer":"a"}]}`},
		{"no clues", "hunt.json", `{"id":"h","clues":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatalf("Failed to write file: %v", err)
			}
			if err := validateFile(path); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}
