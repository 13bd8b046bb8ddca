package testsupport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Credentials and scope served by FakeArchivesSpace.
const (
	FakeUsername      = "admin"
	FakePassword      = "secret"
	FakeRepositoryID  = "2"
	FakeResourceID    = "7"
	FakeResourceTitle = "Johnson Publishing Company AV Collection"
)

// RecordedRequest is one call observed by the fake server.
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

// FakeArchivesSpace is an in-memory stand-in for the ArchivesSpace backend
// API covering login, search, archival objects, top containers, and
// enumerations.
type FakeArchivesSpace struct {
	Server *httptest.Server

	mu              sync.Mutex
	session         string
	logins          int
	logouts         int
	nextID          int
	objects         map[string]map[string]any
	containers      []string
	enumerations    map[string][]string
	enumerationsErr bool
	expireNext      int
	failNext        map[string]int
	failStatus      int
	requests        []RecordedRequest
}

// NewFakeArchivesSpace starts a fake server and registers cleanup.
func NewFakeArchivesSpace(t testing.TB) *FakeArchivesSpace {
	t.Helper()
	fake := &FakeArchivesSpace{
		nextID:       100,
		objects:      map[string]map[string]any{},
		enumerations: map[string][]string{},
		failNext:     map[string]int{},
		failStatus:   http.StatusInternalServerError,
	}
	fake.Server = httptest.NewServer(http.HandlerFunc(fake.serve))
	t.Cleanup(fake.Server.Close)
	return fake
}

// URL returns the base URL of the fake server.
func (f *FakeArchivesSpace) URL() string {
	return f.Server.URL
}

// RepositoryURI returns the repository reference served by the fake.
func (f *FakeArchivesSpace) RepositoryURI() string {
	return "/repositories/" + FakeRepositoryID
}

// ResourceURI returns the resource reference served by the fake.
func (f *FakeArchivesSpace) ResourceURI() string {
	return f.RepositoryURI() + "/resources/" + FakeResourceID
}

// AddObject stores an archival object and returns its URI. Missing uri,
// ref_id, and resource fields are filled in.
func (f *FakeArchivesSpace) AddObject(obj map[string]any) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.storeNewLocked(obj)
}

// AddParent stores a series-level object with the given ref_id.
func (f *FakeArchivesSpace) AddParent(refID string) string {
	return f.AddObject(map[string]any{
		"title":  "Parent " + refID,
		"ref_id": refID,
		"level":  "series",
	})
}

// Object returns a copy of the stored record.
func (f *FakeArchivesSpace) Object(uri string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[uri]
	if !ok {
		return nil
	}
	return cloneMap(obj)
}

// SetEnumeration registers a controlled vocabulary.
func (f *FakeArchivesSpace) SetEnumeration(name string, values ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enumerations[name] = append([]string(nil), values...)
}

// FailEnumerations makes enumeration endpoints return 500.
func (f *FakeArchivesSpace) FailEnumerations() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enumerationsErr = true
}

// ExpireSession makes the next n authenticated requests answer 412.
func (f *FakeArchivesSpace) ExpireSession(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expireNext = n
}

// FailNext makes the next n requests whose path starts with prefix answer
// with status.
func (f *FakeArchivesSpace) FailNext(prefix string, n, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext[prefix] = n
	f.failStatus = status
}

// Logins returns how many successful logins were served.
func (f *FakeArchivesSpace) Logins() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins
}

// Logouts returns how many logouts were served.
func (f *FakeArchivesSpace) Logouts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logouts
}

// Containers returns the indicators of minted top containers.
func (f *FakeArchivesSpace) Containers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.containers...)
}

// Requests returns every recorded request.
func (f *FakeArchivesSpace) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedRequest(nil), f.requests...)
}

// Writes returns the POST requests made against archival objects and top
// containers.
func (f *FakeArchivesSpace) Writes() []RecordedRequest {
	var writes []RecordedRequest
	for _, req := range f.Requests() {
		if req.Method != http.MethodPost {
			continue
		}
		if strings.Contains(req.Path, "/archival_objects") || strings.Contains(req.Path, "/top_containers") {
			writes = append(writes, req)
		}
	}
	return writes
}

func (f *FakeArchivesSpace) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, RecordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: body})

	if strings.HasPrefix(r.URL.Path, "/users/") && strings.HasSuffix(r.URL.Path, "/login") {
		f.handleLogin(w, r, body)
		return
	}

	if f.session == "" || r.Header.Get("X-ArchivesSpace-Session") != f.session {
		writeJSON(w, http.StatusPreconditionFailed, map[string]any{"code": "SESSION_GONE", "error": "No session found"})
		return
	}
	if f.expireNext > 0 {
		f.expireNext--
		writeJSON(w, http.StatusPreconditionFailed, map[string]any{"code": "SESSION_EXPIRED", "error": "Session timed out"})
		return
	}
	for prefix, n := range f.failNext {
		if n > 0 && strings.HasPrefix(r.URL.Path, prefix) {
			f.failNext[prefix] = n - 1
			writeJSON(w, f.failStatus, map[string]any{"error": "injected failure"})
			return
		}
	}

	repo := f.RepositoryURI()
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/logout":
		f.logouts++
		f.session = ""
		writeJSON(w, http.StatusOK, map[string]any{"status": "session_logged_out"})
	case r.Method == http.MethodGet && r.URL.Path == repo+"/search":
		f.handleSearch(w, r)
	case r.Method == http.MethodPost && r.URL.Path == repo+"/archival_objects":
		f.handleCreate(w, body)
	case strings.HasPrefix(r.URL.Path, repo+"/archival_objects/"):
		f.handleObject(w, r, body)
	case r.Method == http.MethodPost && r.URL.Path == repo+"/top_containers":
		f.handleTopContainer(w, body)
	case r.Method == http.MethodGet && r.URL.Path == f.ResourceURI():
		writeJSON(w, http.StatusOK, map[string]any{"jsonmodel_type": "resource", "uri": f.ResourceURI(), "title": FakeResourceTitle})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/config/enumerations"):
		f.handleEnumerations(w, r)
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "no route " + r.Method + " " + r.URL.Path})
	}
}

func (f *FakeArchivesSpace) handleLogin(w http.ResponseWriter, r *http.Request, body []byte) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method"})
		return
	}
	user := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/users/"), "/login")
	form, err := parseForm(body)
	if err != nil || user != FakeUsername || form != FakePassword {
		writeJSON(w, http.StatusForbidden, map[string]any{"error": "Login failed"})
		return
	}
	f.logins++
	f.session = fmt.Sprintf("session-%d", f.logins)
	writeJSON(w, http.StatusOK, map[string]any{"session": f.session, "user": map[string]any{"username": user}})
}

func (f *FakeArchivesSpace) handleSearch(w http.ResponseWriter, r *http.Request) {
	var filter struct {
		Query struct {
			Subqueries []struct {
				Field   string `json:"field"`
				Value   string `json:"value"`
				Negated bool   `json:"negated"`
			} `json:"subqueries"`
		} `json:"query"`
	}
	if err := json.Unmarshal([]byte(r.URL.Query().Get("filter")), &filter); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad filter"})
		return
	}
	conditions := map[string]string{}
	for _, sq := range filter.Query.Subqueries {
		if sq.Negated {
			continue
		}
		conditions[sq.Field] = sq.Value
	}

	uris := make([]string, 0, len(f.objects))
	for uri := range f.objects {
		uris = append(uris, uri)
	}
	sort.Strings(uris)

	results := []map[string]any{}
	for _, uri := range uris {
		obj := f.objects[uri]
		if !matches(obj, conditions) {
			continue
		}
		results = append(results, map[string]any{
			"id":           uri,
			"uri":          uri,
			"ref_id":       obj["ref_id"],
			"title":        obj["title"],
			"level":        obj["level"],
			"component_id": obj["component_id"],
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"total_hits": len(results), "results": results})
}

func matches(obj map[string]any, conditions map[string]string) bool {
	for field, want := range conditions {
		switch field {
		case "primary_type":
			if want != "archival_object" {
				return false
			}
		case "resource":
			ref, _ := obj["resource"].(map[string]any)
			if ref == nil || ref["ref"] != want {
				return false
			}
		default:
			got, _ := obj[field].(string)
			if got != want {
				return false
			}
		}
	}
	return true
}

func (f *FakeArchivesSpace) handleCreate(w http.ResponseWriter, body []byte) {
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad json"})
		return
	}
	if title, _ := obj["title"].(string); strings.TrimSpace(title) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": map[string]any{"title": []string{"Property is required but was missing"}}})
		return
	}
	uri := f.storeNewLocked(obj)
	writeJSON(w, http.StatusOK, map[string]any{"status": "Created", "id": idOf(uri), "uri": uri, "lock_version": 0, "warnings": []string{}})
}

func (f *FakeArchivesSpace) handleObject(w http.ResponseWriter, r *http.Request, body []byte) {
	uri := r.URL.Path
	existing, ok := f.objects[uri]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Record not found"})
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, existing)
	case http.MethodPost:
		var obj map[string]any
		if err := json.Unmarshal(body, &obj); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad json"})
			return
		}
		lock, _ := existing["lock_version"].(float64)
		if sent, ok := obj["lock_version"].(float64); ok && sent != lock {
			writeJSON(w, http.StatusConflict, map[string]any{"error": "The record you tried to update has been modified since you fetched it."})
			return
		}
		obj["uri"] = uri
		obj["lock_version"] = lock + 1
		f.objects[uri] = obj
		writeJSON(w, http.StatusOK, map[string]any{"status": "Updated", "id": idOf(uri), "uri": uri, "lock_version": lock + 1, "warnings": []string{}})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method"})
	}
}

func (f *FakeArchivesSpace) handleTopContainer(w http.ResponseWriter, body []byte) {
	var payload struct {
		Indicator string `json:"indicator"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Indicator == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "indicator required"})
		return
	}
	f.containers = append(f.containers, payload.Indicator)
	uri := fmt.Sprintf("%s/top_containers/%d", f.RepositoryURI(), len(f.containers))
	writeJSON(w, http.StatusOK, map[string]any{"status": "Created", "id": len(f.containers), "uri": uri, "lock_version": 0})
}

func (f *FakeArchivesSpace) handleEnumerations(w http.ResponseWriter, r *http.Request) {
	if f.enumerationsErr {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "boom"})
		return
	}
	names := make([]string, 0, len(f.enumerations))
	for name := range f.enumerations {
		names = append(names, name)
	}
	sort.Strings(names)

	if r.URL.Path == "/config/enumerations" {
		list := make([]map[string]any, 0, len(names))
		for i, name := range names {
			list = append(list, map[string]any{"id": i + 1, "name": name, "values": f.enumerations[name]})
		}
		writeJSON(w, http.StatusOK, list)
		return
	}
	id, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/config/enumerations/"))
	if err != nil || id < 1 || id > len(names) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Record not found"})
		return
	}
	name := names[id-1]
	values := make([]map[string]any, 0, len(f.enumerations[name]))
	for i, v := range f.enumerations[name] {
		values = append(values, map[string]any{"value": v, "position": i, "suppressed": false})
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "name": name, "values": f.enumerations[name], "enumeration_values": values})
}

func (f *FakeArchivesSpace) storeNewLocked(obj map[string]any) string {
	obj = cloneMap(obj)
	uri, _ := obj["uri"].(string)
	if uri == "" {
		f.nextID++
		uri = fmt.Sprintf("%s/archival_objects/%d", f.RepositoryURI(), f.nextID)
	}
	obj["uri"] = uri
	if _, ok := obj["ref_id"]; !ok {
		obj["ref_id"] = fmt.Sprintf("ref%d", idOf(uri))
	}
	if _, ok := obj["resource"]; !ok {
		obj["resource"] = map[string]any{"ref": f.ResourceURI()}
	}
	if _, ok := obj["lock_version"]; !ok {
		obj["lock_version"] = float64(0)
	}
	obj["jsonmodel_type"] = "archival_object"
	f.objects[uri] = obj
	return uri
}

func parseForm(body []byte) (string, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return "", err
	}
	return values.Get("password"), nil
}

func idOf(uri string) int {
	idx := strings.LastIndex(uri, "/")
	id, _ := strconv.Atoi(uri[idx+1:])
	return id
}

func cloneMap(in map[string]any) map[string]any {
	encoded, _ := json.Marshal(in)
	var out map[string]any
	_ = json.Unmarshal(encoded, &out)
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
