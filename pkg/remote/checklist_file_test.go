package remote

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const sampleChecklist = `categories:
  - id: beginning
    name: Beginning
    criteria:
      - id: greeting
        text: Operator greeted the client
        required: true
      - id: verification
        text: Operator verified identity
  - id: closing
    name: Closing
    criteria:
      - id: farewell
        text: Operator said goodbye
`

func TestFileChecklists(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "standard.yaml"), []byte(sampleChecklist), 0644); err != nil {
		t.Fatalf("write checklist: %v", err)
	}

	categories, err := NewFileChecklists(dir).Checklist(context.Background(), "standard")
	if err != nil {
		t.Fatalf("Checklist: %v", err)
	}
	if len(categories) != 2 {
		t.Fatalf("categories = %d, want 2", len(categories))
	}
	if categories[0].Name != "Beginning" || len(categories[0].Criteria) != 2 {
		t.Fatalf("categories[0] = %+v", categories[0])
	}
	greeting := categories[0].Criteria[0]
	if greeting.CategoryID != "beginning" || !greeting.Required {
		t.Fatalf("greeting = %+v", greeting)
	}
	if categories[0].Criteria[1].Required {
		t.Fatal("verification should not be required")
	}
}

func TestFileChecklistsMissing(t *testing.T) {
	if _, err := NewFileChecklists(t.TempDir()).Checklist(context.Background(), "absent"); err == nil {
		t.Fatal("expected error for missing checklist file")
	}
}

func TestFileChecklistsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "empty.yaml"), []byte("categories: []\n"), 0644); err != nil {
		t.Fatalf("write checklist: %v", err)
	}
	if _, err := NewFileChecklists(dir).Checklist(context.Background(), "empty"); err == nil {
		t.Fatal("expected error for empty checklist")
	}
}
