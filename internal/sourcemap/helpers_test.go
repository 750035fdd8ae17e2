package sourcemap

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// testMap maps generated line 1 to a node_modules file and generated line 2
// to app.ts:42:7.
const testMap = `{
  "version": 3,
  "file": "bundle.js",
  "sources": ["node_modules/react/index.js", "app.ts"],
  "names": [],
  "mappings": "AAAA;ACyCO"
}`

// rebuiltMap is testMap after a rebuild moved the second line's code to
// app.ts:100:7.
const rebuiltMap = `{
  "version": 3,
  "file": "bundle.js",
  "sources": ["node_modules/react/index.js", "app.ts"],
  "names": [],
  "mappings": "AAAA;ACmGO"
}`

const testStack = `Error: boom
    at render (%[1]s/bundle.js:1:10)
    at App (%[1]s/bundle.js:2:10)`

func resetDefault() {
	initOnce = sync.Once{}
	initErr = nil
	defaultResolver.Store(nil)
}

// mapServer serves generated files and maps the way a dev server does,
// answering conditional requests with 304. It counts requests and full
// downloads per path.
type mapServer struct {
	*httptest.Server
	mu        sync.Mutex
	hits      map[string]int
	downloads map[string]int
	bundleMap string
	// gate, when set, blocks map responses until closed
	gate chan struct{}
}

func newMapServer(t *testing.T, gate chan struct{}) *mapServer {
	t.Helper()
	ms := &mapServer{
		hits:      make(map[string]int),
		downloads: make(map[string]int),
		bundleMap: testMap,
		gate:      gate,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/bundle.js", func(w http.ResponseWriter, r *http.Request) {
		ms.hit(r.URL.Path)
		ms.serve(w, r, "var a=1;\n//# sourceMappingURL=bundle.js.map\n")
	})
	mux.HandleFunc("/bundle.js.map", func(w http.ResponseWriter, r *http.Request) {
		ms.hit(r.URL.Path)
		if ms.gate != nil {
			<-ms.gate
		}
		ms.mu.Lock()
		body := ms.bundleMap
		ms.mu.Unlock()
		ms.serve(w, r, body)
	})
	mux.HandleFunc("/inline.js", func(w http.ResponseWriter, r *http.Request) {
		ms.hit(r.URL.Path)
		encoded := base64.StdEncoding.EncodeToString([]byte(testMap))
		fmt.Fprintf(w, "var a=1;\n//# sourceMappingURL=data:application/json;charset=utf-8;base64,%s\n", encoded)
	})
	mux.HandleFunc("/plain.js", func(w http.ResponseWriter, r *http.Request) {
		ms.hit(r.URL.Path)
		fmt.Fprint(w, "var a=1;\n")
	})
	mux.HandleFunc("/plain.js.map", func(w http.ResponseWriter, r *http.Request) {
		ms.hit(r.URL.Path)
		fmt.Fprint(w, testMap)
	})
	mux.HandleFunc("/broken.js", func(w http.ResponseWriter, r *http.Request) {
		ms.hit(r.URL.Path)
		fmt.Fprint(w, "var a=1;\n//# sourceMappingURL=missing.js.map\n")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		ms.hit(r.URL.Path)
		http.NotFound(w, r)
	})

	ms.Server = httptest.NewServer(mux)
	t.Cleanup(ms.Close)
	return ms
}

func (ms *mapServer) hit(path string) {
	ms.mu.Lock()
	ms.hits[path]++
	ms.mu.Unlock()
}

// serve writes body with an ETag derived from its content.
func (ms *mapServer) serve(w http.ResponseWriter, r *http.Request, body string) {
	sum := sha256.Sum256([]byte(body))
	etag := `"` + hex.EncodeToString(sum[:8]) + `"`
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	ms.mu.Lock()
	ms.downloads[r.URL.Path]++
	ms.mu.Unlock()
	fmt.Fprint(w, body)
}

// setMap replaces the map served for bundle.js, as a rebuild would.
func (ms *mapServer) setMap(body string) {
	ms.mu.Lock()
	ms.bundleMap = body
	ms.mu.Unlock()
}

func (ms *mapServer) downloaded(path string) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.downloads[path]
}

func (ms *mapServer) count(path string) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.hits[path]
}
