package document

import (
	"testing"

	"go.uber.org/zap"
)

func TestValidatePages(t *testing.T) {
	tests := []struct {
		name    string
		pages   []PageText
		wantErr bool
	}{
		{
			name:    "empty list",
			pages:   nil,
			wantErr: true,
		},
		{
			name:  "single page",
			pages: []PageText{{Page: 1, Text: "hello"}},
		},
		{
			name: "dense pages out of order",
			pages: []PageText{
				{Page: 2, Text: "b"},
				{Page: 1, Text: "a"},
				{Page: 3, Text: "c"},
			},
		},
		{
			name: "duplicate page",
			pages: []PageText{
				{Page: 1, Text: "a"},
				{Page: 1, Text: "b"},
			},
			wantErr: true,
		},
		{
			name:    "zero page number",
			pages:   []PageText{{Page: 0, Text: "a"}},
			wantErr: true,
		},
		{
			name: "gap in numbering",
			pages: []PageText{
				{Page: 1, Text: "a"},
				{Page: 3, Text: "c"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePages(tt.pages)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePages() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestStoreVersioning(t *testing.T) {
	store := NewStore(zap.NewNop())

	if _, err := store.Current(); err != ErrNoDocument {
		t.Fatalf("Current() on empty store = %v, want ErrNoDocument", err)
	}

	first, err := store.Load("doc-a", []PageText{{Page: 1, Text: "alpha"}})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if first.Version != 1 {
		t.Errorf("first version = %d, want 1", first.Version)
	}
	if !store.StillCurrent(first.Version) {
		t.Error("first document should be current after load")
	}

	second, err := store.Load("doc-b", []PageText{{Page: 1, Text: "beta"}})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if second.Version != 2 {
		t.Errorf("second version = %d, want 2", second.Version)
	}
	if store.StillCurrent(first.Version) {
		t.Error("superseded version must not be current")
	}
	if !store.StillCurrent(second.Version) {
		t.Error("latest version must be current")
	}

	cur, err := store.Current()
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if cur.ID != "doc-b" {
		t.Errorf("current document = %s, want doc-b", cur.ID)
	}
}

func TestStoreLoadGeneratesID(t *testing.T) {
	store := NewStore(zap.NewNop())
	doc, err := store.Load("", []PageText{{Page: 1, Text: "x"}})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if doc.ID == "" {
		t.Error("Load() should generate an ID when none is given")
	}
}

func TestDocumentText(t *testing.T) {
	doc := &Document{Pages: []PageText{{Page: 1, Text: "one"}, {Page: 2, Text: "two"}}}
	if txt, ok := doc.Text(2); !ok || txt != "two" {
		t.Errorf("Text(2) = %q, %v", txt, ok)
	}
	if _, ok := doc.Text(5); ok {
		t.Error("Text(5) should report missing page")
	}
}
