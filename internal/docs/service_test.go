package docs

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"
)

func TestGetDocRendersAndCaches(t *testing.T) {
	fsys := fstest.MapFS{
		"intro.adoc": {Data: []byte("= Intro\n\nSend a *Yo!*.\n")},
		"notes.txt":  {Data: []byte("ignored")},
	}
	svc := NewService(fsys)

	html, err := svc.GetDoc(context.Background(), "intro.adoc")
	if err != nil {
		t.Fatalf("GetDoc: %v", err)
	}
	if !strings.Contains(html, "<strong>Yo!</strong>") {
		t.Errorf("expected rendered emphasis, got %q", html)
	}

	// Cached copy survives the source going away.
	delete(fsys, "intro.adoc")
	if _, err := svc.GetDoc(context.Background(), "intro.adoc"); err != nil {
		t.Fatalf("expected cached doc: %v", err)
	}

	docs, err := svc.ListDocs()
	if err != nil {
		t.Fatalf("ListDocs: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected no docs after removal, got %v", docs)
	}
}

func TestGetDocRejectsPaths(t *testing.T) {
	svc := NewService(fstest.MapFS{})
	for _, name := range []string{"../secret.adoc", "a/b.adoc", "plain.txt"} {
		if _, err := svc.GetDoc(context.Background(), name); !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("%s: expected not exist, got %v", name, err)
		}
	}
}

func TestEmbeddedContent(t *testing.T) {
	docs, err := NewService(Content()).ListDocs()
	if err != nil {
		t.Fatalf("ListDocs: %v", err)
	}
	want := map[string]bool{"api.adoc": false, "yo.adoc": false}
	for _, d := range docs {
		if _, ok := want[d]; ok {
			want[d] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing embedded doc %s", name)
		}
	}
}
