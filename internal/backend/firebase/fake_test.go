package firebase

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	firestore "google.golang.org/api/firestore/v1"
)

const (
	testProject  = "demo"
	testDatabase = "test"
	testAPIKey   = "key-123"
)

// testIDToken returns a JWT for uid whose exp claim is exp. jti keeps
// tokens issued within the same second distinct.
func testIDToken(t *testing.T, uid string, exp time.Time, jti string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": uid,
		"exp": exp.Unix(),
		"jti": jti,
	}).SignedString([]byte("test"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

type fakeAccount struct {
	uid      string
	password string
}

// fakeBackend serves the Identity Toolkit, secure-token and Firestore
// endpoints the client uses.
type fakeBackend struct {
	t   *testing.T
	srv *httptest.Server

	mu           sync.Mutex
	accounts     map[string]fakeAccount // email -> account
	tokens       map[string]string      // ID token -> uid
	refresh      map[string]string      // refresh token -> uid
	docs         map[string]*firestore.Document
	nextUser     int
	nextDoc      int
	nextToken    int
	abortCommits int
	delay        time.Duration // before every request
	tokenDelay   time.Duration // before token refreshes
	requests     map[string]int
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	f := &fakeBackend{
		t:        t,
		accounts: make(map[string]fakeAccount),
		tokens:   make(map[string]string),
		refresh:  make(map[string]string),
		docs:     make(map[string]*firestore.Document),
		requests: make(map[string]int),
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeBackend) options(sessionPath string) Options {
	return Options{
		APIKey:            testAPIKey,
		ProjectID:         testProject,
		DatabaseID:        testDatabase,
		SessionPath:       sessionPath,
		Timeout:           2 * time.Second,
		AuthEndpoint:      f.srv.URL + "/relyingparty/",
		FirestoreEndpoint: f.srv.URL + "/",
		TokenURL:          f.srv.URL + "/token",
		HTTPClient:        f.srv.Client(),
	}
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[name]
}

// issue creates a token pair for uid. Must be called with mu held.
func (f *fakeBackend) issue(uid string) (idToken, refreshToken string) {
	f.nextToken++
	idToken = testIDToken(f.t, uid, time.Now().Add(time.Hour), fmt.Sprint(f.nextToken))
	refreshToken = fmt.Sprintf("refresh-%d", f.nextToken)
	f.tokens[idToken] = uid
	f.refresh[refreshToken] = uid
	return idToken, refreshToken
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"code": status, "message": message},
	})
}

func (f *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	delay := f.delay
	if r.URL.Path == "/token" {
		delay += f.tokenDelay
	}
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	switch {
	case strings.HasSuffix(r.URL.Path, "/signupNewUser"):
		f.signUp(w, r)
	case strings.HasSuffix(r.URL.Path, "/verifyPassword"):
		f.verifyPassword(w, r)
	case r.URL.Path == "/token":
		f.token(w, r)
	case strings.HasPrefix(r.URL.Path, "/v1/"):
		f.firestore(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeBackend) signUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests["signUp"]++
	if _, ok := f.accounts[req.Email]; ok {
		writeAPIError(w, http.StatusBadRequest, "EMAIL_EXISTS")
		return
	}
	if len(req.Password) < 6 {
		writeAPIError(w, http.StatusBadRequest, "WEAK_PASSWORD : Password should be at least 6 characters")
		return
	}
	f.nextUser++
	uid := fmt.Sprintf("u%d", f.nextUser)
	f.accounts[req.Email] = fakeAccount{uid: uid, password: req.Password}
	idToken, refreshToken := f.issue(uid)
	writeJSON(w, http.StatusOK, map[string]any{
		"localId":      uid,
		"email":        req.Email,
		"idToken":      idToken,
		"refreshToken": refreshToken,
		"expiresIn":    "3600",
	})
}

func (f *fakeBackend) verifyPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email             string `json:"email"`
		Password          string `json:"password"`
		ReturnSecureToken bool   `json:"returnSecureToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests["verifyPassword"]++
	acct, ok := f.accounts[req.Email]
	if !ok {
		writeAPIError(w, http.StatusBadRequest, "EMAIL_NOT_FOUND")
		return
	}
	if acct.password != req.Password {
		writeAPIError(w, http.StatusBadRequest, "INVALID_PASSWORD")
		return
	}
	if !req.ReturnSecureToken {
		f.t.Errorf("verifyPassword without returnSecureToken")
	}
	idToken, refreshToken := f.issue(acct.uid)
	writeJSON(w, http.StatusOK, map[string]any{
		"localId":      acct.uid,
		"email":        req.Email,
		"idToken":      idToken,
		"refreshToken": refreshToken,
		"registered":   true,
	})
}

func (f *fakeBackend) token(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests["token"]++

	if r.URL.Query().Get("key") != testAPIKey {
		writeAPIError(w, http.StatusBadRequest, "API key not valid")
		return
	}
	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "refresh_token" {
		writeAPIError(w, http.StatusBadRequest, "INVALID_GRANT_TYPE")
		return
	}
	uid, ok := f.refresh[r.PostForm.Get("refresh_token")]
	if !ok {
		writeAPIError(w, http.StatusBadRequest, "INVALID_REFRESH_TOKEN")
		return
	}
	idToken, refreshToken := f.issue(uid)
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  idToken,
		"id_token":      idToken,
		"refresh_token": refreshToken,
		"expires_in":    "3600",
		"token_type":    "Bearer",
		"user_id":       uid,
	})
}

func (f *fakeBackend) firestore(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	uid, ok := f.tokens[strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")]
	if !ok {
		writeAPIError(w, http.StatusUnauthorized, "Request had invalid authentication credentials.")
		return
	}

	database := "/v1/projects/" + testProject + "/databases/" + testDatabase
	userTasks := database + "/documents/users/" + uid + "/tasks"
	path := r.URL.Path

	switch {
	case path == database+"/documents:beginTransaction" && r.Method == http.MethodPost:
		f.requests["beginTransaction"]++
		writeJSON(w, http.StatusOK, map[string]any{"transaction": "dHgx"})

	case path == database+"/documents:rollback" && r.Method == http.MethodPost:
		f.requests["rollback"]++
		writeJSON(w, http.StatusOK, map[string]any{})

	case path == database+"/documents:commit" && r.Method == http.MethodPost:
		f.requests["commit"]++
		if f.abortCommits > 0 {
			f.abortCommits--
			writeAPIError(w, http.StatusConflict, "Transaction lock timeout.")
			return
		}
		var req firestore.CommitRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		for _, wr := range req.Writes {
			doc, ok := f.docs[wr.Update.Name]
			if !ok {
				writeAPIError(w, http.StatusNotFound, "No document to update")
				return
			}
			for _, field := range wr.UpdateMask.FieldPaths {
				doc.Fields[field] = wr.Update.Fields[field]
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"commitTime": time.Now().UTC().Format(time.RFC3339Nano)})

	case path == userTasks && r.Method == http.MethodGet:
		f.requests["list"]++
		if got := r.URL.Query().Get("orderBy"); got != "date desc" {
			f.t.Errorf("orderBy = %q, want %q", got, "date desc")
		}
		var docs []*firestore.Document
		for name, doc := range f.docs {
			if strings.HasPrefix(name, userTasks[len("/v1/"):]+"/") {
				docs = append(docs, doc)
			}
		}
		sort.Slice(docs, func(i, j int) bool {
			di, dj := docs[i].Fields["date"].StringValue, docs[j].Fields["date"].StringValue
			if di != dj {
				return di > dj
			}
			return docs[i].Name < docs[j].Name
		})
		writeJSON(w, http.StatusOK, map[string]any{"documents": docs})

	case path == userTasks && r.Method == http.MethodPost:
		f.requests["create"]++
		var doc firestore.Document
		_ = json.NewDecoder(r.Body).Decode(&doc)
		f.nextDoc++
		doc.Name = fmt.Sprintf("%s/d%d", userTasks[len("/v1/"):], f.nextDoc)
		doc.CreateTime = time.Date(2025, 1, 1, 9, 0, f.nextDoc, 0, time.UTC).Format(time.RFC3339Nano)
		f.docs[doc.Name] = &doc
		writeJSON(w, http.StatusOK, &doc)

	case strings.HasPrefix(path, userTasks+"/"):
		name := path[len("/v1/"):]
		doc, ok := f.docs[name]
		switch r.Method {
		case http.MethodGet:
			f.requests["get"]++
			if !ok {
				writeAPIError(w, http.StatusNotFound, "Document not found")
				return
			}
			writeJSON(w, http.StatusOK, doc)
		case http.MethodDelete:
			f.requests["delete"]++
			if !ok {
				writeAPIError(w, http.StatusNotFound, "No document to update")
				return
			}
			delete(f.docs, name)
			writeJSON(w, http.StatusOK, map[string]any{})
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}

	default:
		// Another user's documents or an unknown route.
		writeAPIError(w, http.StatusForbidden, "Missing or insufficient permissions.")
	}
}
