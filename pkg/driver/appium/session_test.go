package appium

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	json "github.com/json-iterator/go"

	"github.com/devicelab-dev/uiscope/pkg/core"
	"github.com/devicelab-dev/uiscope/pkg/locator"
)

// fakeServer answers element finds from a table keyed by "using=value".
type fakeServer struct {
	mu       sync.Mutex
	root     map[string][]string
	children map[string]map[string][]string
	attrs    map[string]map[string]string
	scripts  []map[string]interface{}
}

func (f *fakeServer) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		path := strings.TrimPrefix(r.URL.Path, "/session/s1")
		var body map[string]interface{}
		if r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		key := func() string { return body["using"].(string) + "=" + body["value"].(string) }
		refs := func(ids []string) []interface{} {
			out := []interface{}{}
			for _, id := range ids {
				out = append(out, elemRef(id))
			}
			return out
		}

		switch {
		case path == "/elements":
			writeJSON(w, map[string]interface{}{"value": refs(f.root[key()])})
		case path == "/execute/sync":
			f.scripts = append(f.scripts, body)
			writeJSON(w, map[string]interface{}{"value": refs([]string{"s1"})})
		default:
			id, rest, _ := strings.Cut(strings.TrimPrefix(path, "/element/"), "/")
			switch {
			case rest == "elements":
				writeJSON(w, map[string]interface{}{"value": refs(f.children[id][key()])})
			case strings.HasPrefix(rest, "attribute/"):
				v, ok := f.attrs[id][strings.TrimPrefix(rest, "attribute/")]
				if !ok {
					writeJSON(w, map[string]interface{}{"value": nil})
					return
				}
				writeJSON(w, map[string]interface{}{"value": v})
			default:
				t.Logf("unhandled %s %s", r.Method, r.URL.Path)
				writeError(w, http.StatusNotFound, "unknown command", path)
			}
		}
	})
}

func newFakeSession(t *testing.T, f *fakeServer) *Session {
	server := httptest.NewServer(f.handler(t))
	t.Cleanup(server.Close)
	c := NewClient(server.URL)
	c.Attach("s1")
	return NewSession(c)
}

func TestSession_ResolveThroughResolver(t *testing.T) {
	f := &fakeServer{
		root: map[string][]string{
			"id=row":   {"r1", "r2"},
			"name=row": {"r2", "r3"},
		},
		attrs: map[string]map[string]string{
			"r1": {"text": "Alpha"},
			"r2": {"text": "Beta"},
			"r3": {"text": "Gamma"},
		},
	}
	s := newFakeSession(t, f)
	r := locator.NewResolver()

	els, err := r.Resolve(context.Background(), s, "identifier=row", "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(els) != 3 {
		t.Fatalf("Expected 3 unique elements, got %d", len(els))
	}

	els, err = r.Resolve(context.Background(), s, "identifier=row | text=*a", "")
	if err != nil {
		t.Fatalf("Resolve with extras failed: %v", err)
	}
	var ids []string
	for _, e := range els {
		ids = append(ids, e.ID())
	}
	if len(ids) != 3 || ids[0] != "r1" || ids[1] != "r2" || ids[2] != "r3" {
		t.Errorf("Expected [r1 r2 r3], got %v", ids)
	}

	els, err = r.Resolve(context.Background(), s, "identifier=row | text.regex=^G.*", "")
	if err != nil {
		t.Fatalf("Resolve with regex failed: %v", err)
	}
	if len(els) != 1 || els[0].ID() != "r3" {
		t.Errorf("Expected [r3], got %v", els)
	}
}

func TestElement_ScopedFind(t *testing.T) {
	f := &fakeServer{
		children: map[string]map[string][]string{
			"table": {"class name=Row": {"c1", "c2"}},
		},
	}
	s := newFakeSession(t, f)

	els, err := s.Element("table").FindElements(context.Background(), core.ByClassName, "Row")
	if err != nil {
		t.Fatalf("FindElements failed: %v", err)
	}
	if len(els) != 2 || els[0].ID() != "c1" {
		t.Errorf("Expected [c1 c2], got %v", els)
	}
}

func TestSession_ScriptStrategy(t *testing.T) {
	f := &fakeServer{}
	s := newFakeSession(t, f)

	els, err := locator.NewResolver().Resolve(context.Background(), s, "jquery=div.item", "")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(els) != 1 || els[0].ID() != "s1" {
		t.Errorf("Expected [s1], got %v", els)
	}

	_, err = locator.NewResolver().Resolve(context.Background(), s.Element("parent"), "jquery=div.item", "")
	if err != nil {
		t.Fatalf("scoped Resolve failed: %v", err)
	}
	_, err = s.Element("parent").FindElements(context.Background(), core.ByScript, "return arguments[0].children;")
	if err != nil {
		t.Fatalf("element script failed: %v", err)
	}

	if len(f.scripts) != 3 {
		t.Fatalf("Expected 3 scripts, got %d", len(f.scripts))
	}
	if f.scripts[0]["script"] != "return jQuery('div.item').get();" {
		t.Errorf("Unexpected script %v", f.scripts[0]["script"])
	}
	if f.scripts[1]["script"] != "return jQuery(arguments[0]).find('div.item').get();" {
		t.Errorf("Expected jQuery lookup scoped to the element, got %v", f.scripts[1]["script"])
	}
	if f.scripts[2]["script"] != "return arguments[0].children;" {
		t.Errorf("Expected custom script unchanged, got %v", f.scripts[2]["script"])
	}
	args, _ := f.scripts[1]["args"].([]interface{})
	if len(args) != 1 {
		t.Fatalf("Expected element argument, got %v", f.scripts[1]["args"])
	}
	if ref, _ := args[0].(map[string]interface{}); ref[w3cElementKey] != "parent" {
		t.Errorf("Expected parent reference, got %v", args[0])
	}
}

func TestSession_Diagnoser(t *testing.T) {
	var _ core.Diagnoser = (*Session)(nil)
	var _ core.SearchContext = (*Session)(nil)
	var _ core.Element = (*Element)(nil)
}
