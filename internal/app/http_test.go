package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"resumebuilder/api/internal/accounts"
	"resumebuilder/api/internal/ai"
	"resumebuilder/api/internal/portfolio"
	"resumebuilder/api/internal/store"
)

func newTestServer(t *testing.T, deps Deps) (*fixture, http.Handler) {
	t.Helper()
	f := newFixture(t, deps)
	return f, NewHTTPServer(f.svc, "*").Handler()
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return payload
}

func multipartImage(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestRegisterAndLogin(t *testing.T) {
	_, handler := newTestServer(t, Deps{})

	rec := doJSON(t, handler, http.MethodPost, "/users/register", "", map[string]string{
		"name":     "Carol",
		"email":    "carol@example.com",
		"password": "Secret12!",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d body=%s", rec.Code, rec.Body.String())
	}
	payload := decodeResponse(t, rec)
	if payload["token"] == "" || payload["resumes"] == nil {
		t.Fatalf("register payload = %v", payload)
	}

	rec = doJSON(t, handler, http.MethodPost, "/users/register", "", map[string]string{
		"name":     "Carol",
		"email":    "carol@example.com",
		"password": "Secret12!",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate register status = %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/users/login", "", map[string]string{
		"email":    "carol@example.com",
		"password": "Secret12!",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d body=%s", rec.Code, rec.Body.String())
	}
	token, _ := decodeResponse(t, rec)["token"].(string)

	rec = doJSON(t, handler, http.MethodGet, "/users/profile", token, nil)
	if rec.Code != http.StatusOK || decodeResponse(t, rec)["email"] != "carol@example.com" {
		t.Fatalf("profile = %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/users/login", "", map[string]string{
		"email":    "carol@example.com",
		"password": "wrong-pass1!",
	})
	if rec.Code != http.StatusUnauthorized || decodeResponse(t, rec)["code"] != "INVALID_CREDENTIALS" {
		t.Fatalf("bad login = %d %s", rec.Code, rec.Body.String())
	}
}

func TestGoogleLogin(t *testing.T) {
	google := &fakeGoogle{verifyFn: func(_ context.Context, credential string) (accounts.GoogleProfile, error) {
		if credential != "good-credential" {
			return accounts.GoogleProfile{}, fmt.Errorf("%w: token expired", accounts.ErrGoogleCredential)
		}
		return accounts.GoogleProfile{Subject: "g-bob", Email: "bob@example.com", Name: "Bob", Picture: "https://lh3.example/bob.png"}, nil
	}}
	f, handler := newTestServer(t, Deps{Google: google})
	resume := f.seedResume(t)

	rec := doJSON(t, handler, http.MethodPost, "/users/google-login", "", map[string]string{"credential": "good-credential"})
	if rec.Code != http.StatusOK {
		t.Fatalf("google login status = %d body=%s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Message string      `json:"message"`
		Token   string      `json:"token"`
		Resumes ResumeLists `json:"resumes"`
		User    struct {
			Email          string `json:"email"`
			ProfilePicture string `json:"profilePicture"`
			AuthProvider   string `json:"authProvider"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Message != "User logged in successfully" || payload.Token == "" {
		t.Fatalf("payload = %+v", payload)
	}
	if payload.User.Email != "bob@example.com" || payload.User.AuthProvider != "google" || payload.User.ProfilePicture != "https://lh3.example/bob.png" {
		t.Fatalf("user = %+v", payload.User)
	}
	if len(payload.Resumes.Shared) != 1 || payload.Resumes.Shared[0].ID != resume.ID {
		t.Fatalf("resumes = %+v", payload.Resumes)
	}
	if f.store.users["bob@example.com"].GoogleID != "g-bob" {
		t.Fatalf("bob was not linked: %+v", f.store.users["bob@example.com"])
	}

	rec = doJSON(t, handler, http.MethodGet, "/users/profile", payload.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile with google token = %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/users/google-login", "", map[string]string{"credential": "forged"})
	if rec.Code != http.StatusUnauthorized || decodeResponse(t, rec)["code"] != "GOOGLE_AUTH_FAILED" {
		t.Fatalf("forged credential = %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/users/google-login", "", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing credential = %d %s", rec.Code, rec.Body.String())
	}
}

func TestGoogleLoginUnavailableWithoutClientID(t *testing.T) {
	_, handler := newTestServer(t, Deps{})

	rec := doJSON(t, handler, http.MethodPost, "/users/google-login", "", map[string]string{"credential": "anything"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	_, handler := newTestServer(t, Deps{})
	rec := doJSON(t, handler, http.MethodPost, "/users/register", "", map[string]string{
		"name":     "Dan",
		"email":    "dan@example.com",
		"password": "short",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestProfileUpdateAndPasswordChange(t *testing.T) {
	f, handler := newTestServer(t, Deps{})
	token := tokenFor(t, "alice@example.com")

	rec := doJSON(t, handler, http.MethodPut, "/users/profile", token, map[string]string{"name": "Alice B", "profilePic": "https://img/a.png"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update profile status = %d body=%s", rec.Code, rec.Body.String())
	}
	if user := f.store.users["alice@example.com"]; user.Name != "Alice B" {
		t.Fatalf("stored user = %+v", user)
	}

	rec = doJSON(t, handler, http.MethodPut, "/users/profile/password", token, map[string]string{"oldPassword": "nope", "newPassword": "Another1!"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong old password status = %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPut, "/users/profile/password", token, map[string]string{"oldPassword": "Passw0rd!", "newPassword": "Another1!"})
	if rec.Code != http.StatusOK {
		t.Fatalf("change password status = %d body=%s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, handler, http.MethodPost, "/users/login", "", map[string]string{"email": "alice@example.com", "password": "Another1!"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login with new password status = %d", rec.Code)
	}
}

func TestRenewToken(t *testing.T) {
	_, handler := newTestServer(t, Deps{})

	rec := doJSON(t, handler, http.MethodPost, "/users/renew-token", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPost, "/users/renew-token", tokenFor(t, "alice@example.com"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("renew status = %d body=%s", rec.Code, rec.Body.String())
	}
	if token, _ := decodeResponse(t, rec)["token"].(string); token == "" {
		t.Fatal("renew returned no token")
	}
}

func TestResumeRoutesRequireToken(t *testing.T) {
	_, handler := newTestServer(t, Deps{})

	rec := doJSON(t, handler, http.MethodGet, "/resumes/list", "", nil)
	if rec.Code != http.StatusUnauthorized || decodeResponse(t, rec)["error"] != "Access Denied" {
		t.Fatalf("no token = %d %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, handler, http.MethodGet, "/resumes/list", "garbage", nil)
	if rec.Code != http.StatusUnauthorized || decodeResponse(t, rec)["error"] != "Invalid Token" {
		t.Fatalf("bad token = %d %s", rec.Code, rec.Body.String())
	}
}

func TestResumeLifecycle(t *testing.T) {
	f, handler := newTestServer(t, Deps{})
	alice := tokenFor(t, "alice@example.com")
	bob := tokenFor(t, "bob@example.com")
	eve := tokenFor(t, "eve@example.com")

	rec := doJSON(t, handler, http.MethodPost, "/resumes/create", alice, map[string]any{
		"title":      "Backend",
		"resumeData": map[string]any{"skills": []string{"go"}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", rec.Code, rec.Body.String())
	}
	resume := decodeResponse(t, rec)["resume"].(map[string]any)
	id := resume["id"].(string)

	rec = doJSON(t, handler, http.MethodPut, "/resumes/share/"+id, alice, map[string]string{"sharedemail": "bob@example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("share status = %d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/resumes/load/"+id, bob, nil)
	if rec.Code != http.StatusOK || decodeResponse(t, rec)["socketEnabled"] != true {
		t.Fatalf("load as collaborator = %d %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, handler, http.MethodGet, "/resumes/load/"+id, eve, nil)
	if rec.Code != http.StatusForbidden || decodeResponse(t, rec)["error"] != "Access denied" {
		t.Fatalf("load as stranger = %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPut, "/resumes/update/"+id, bob, map[string]any{"title": "Platform"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d body=%s", rec.Code, rec.Body.String())
	}
	if got := decodeResponse(t, rec)["message"]; got != "Resume updated and broadcasted" {
		t.Fatalf("update message = %v", got)
	}
	if len(f.rooms.messages[id]) != 1 {
		t.Fatalf("room broadcasts = %+v", f.rooms.messages)
	}

	rec = doJSON(t, handler, http.MethodGet, "/users/getResumeList", bob, nil)
	var lists ResumeLists
	if err := json.Unmarshal(rec.Body.Bytes(), &lists); err != nil {
		t.Fatalf("decode lists: %v", err)
	}
	if len(lists.Owned) != 0 || len(lists.Shared) != 1 || lists.Shared[0].Title != "Platform" {
		t.Fatalf("bob lists = %+v", lists)
	}

	rec = doJSON(t, handler, http.MethodGet, "/resumes/share/"+id+"/sharelist", bob, nil)
	payload := decodeResponse(t, rec)
	if rec.Code != http.StatusOK || payload["message"] == nil || len(payload["sharedUsers"].([]any)) != 0 {
		t.Fatalf("sharelist as collaborator = %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodDelete, "/resumes/delete/"+id, bob, nil)
	if rec.Code != http.StatusForbidden || decodeResponse(t, rec)["error"] != "Unauthorized: Not the owner" {
		t.Fatalf("delete as collaborator = %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPut, "/resumes/unshare/"+id, alice, map[string]string{"email": "bob@example.com"})
	if rec.Code != http.StatusOK {
		t.Fatalf("unshare status = %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPut, "/resumes/update/"+id, bob, map[string]any{"title": "Again"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("update after unshare = %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodDelete, "/resumes/delete/"+id, alice, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d body=%s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, handler, http.MethodGet, "/resumes/load/"+id, alice, nil)
	if rec.Code != http.StatusNotFound || decodeResponse(t, rec)["error"] != "Resume not found" {
		t.Fatalf("load deleted = %d %s", rec.Code, rec.Body.String())
	}
}

func TestShareUnregisteredUser(t *testing.T) {
	f, handler := newTestServer(t, Deps{})
	resume := f.seedResume(t)

	rec := doJSON(t, handler, http.MethodPut, "/resumes/share/"+resume.ID, tokenFor(t, "alice@example.com"), map[string]string{"sharedemail": "ghost@example.com"})
	if rec.Code != http.StatusNotFound || decodeResponse(t, rec)["code"] != "USER_NOT_FOUND" {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestSearchRoute(t *testing.T) {
	f, handler := newTestServer(t, Deps{})

	rec := doJSON(t, handler, http.MethodGet, "/resumes/search?q=backend&limit=5&offset=10", tokenFor(t, "bob@example.com"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if payload := decodeResponse(t, rec); payload["total"] != float64(1) || payload["query"] != "backend" {
		t.Fatalf("payload = %v", payload)
	}
	q := f.search.queries[0]
	if q.Identity != "bob@example.com" || q.Limit != 5 || q.Offset != 10 {
		t.Fatalf("query = %+v", q)
	}
}

func TestResumeImageUpload(t *testing.T) {
	var gotName string
	var gotBody []byte
	images := &fakeImages{uploadFn: func(_ context.Context, filename string, r io.Reader, size int64) (string, error) {
		gotName = filename
		gotBody, _ = io.ReadAll(r)
		return "http://minio/bucket/resume_profile_pictures/x.png", nil
	}}
	f, handler := newTestServer(t, Deps{Images: images})
	resume := f.seedResume(t)

	body, contentType := multipartImage(t, "photo.png", []byte("png-bytes"))
	req := httptest.NewRequest(http.MethodPut, "/resumes/update/"+resume.ID+"/upload", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "bob@example.com"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if payload := decodeResponse(t, rec); payload["success"] != true || !strings.HasSuffix(payload["url"].(string), "x.png") {
		t.Fatalf("payload = %v", payload)
	}
	if gotName != "photo.png" || string(gotBody) != "png-bytes" {
		t.Fatalf("uploaded %q %q", gotName, gotBody)
	}

	req = httptest.NewRequest(http.MethodPut, "/resumes/update/"+resume.ID+"/upload", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "bob@example.com"))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing file status = %d", rec.Code)
	}
}

func TestProfilePictureUploadUpdatesUser(t *testing.T) {
	images := &fakeImages{uploadFn: func(context.Context, string, io.Reader, int64) (string, error) {
		return "http://minio/bucket/p.jpg", nil
	}}
	f, handler := newTestServer(t, Deps{Images: images})

	body, contentType := multipartImage(t, "me.jpg", []byte("jpg"))
	req := httptest.NewRequest(http.MethodPost, "/users/profile/picture", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "alice@example.com"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if user := f.store.users["alice@example.com"]; user.ProfilePicture != "http://minio/bucket/p.jpg" || user.Name != "Alice" {
		t.Fatalf("user = %+v", user)
	}
}

func TestAIRoutes(t *testing.T) {
	advisor := &fakeAdvisor{
		scoreFn: func(context.Context, json.RawMessage) (ai.ATSScore, error) {
			return ai.ATSScore{Score: 82, Strengths: []string{"clear"}, AreasToImprove: []string{}, AISuggestions: []string{}}, nil
		},
		suggestFn: func(_ context.Context, section string, data json.RawMessage, instruction string) (json.RawMessage, error) {
			if section == "unknown" {
				return nil, ai.ErrUnknownSection
			}
			if section == "broken" {
				return nil, ai.ErrInvalidOutput
			}
			return json.RawMessage(`{"skills":["go","sql"]}`), nil
		},
	}
	f, handler := newTestServer(t, Deps{AI: advisor})
	resume := f.seedResume(t)
	token := tokenFor(t, "bob@example.com")

	rec := doJSON(t, handler, http.MethodPost, "/ai/atsScore", token, map[string]string{"id": resume.ID})
	if rec.Code != http.StatusOK || decodeResponse(t, rec)["score"] != float64(82) {
		t.Fatalf("atsScore = %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/ai/skills", token, map[string]any{"id": resume.ID, "sectionData": map[string]any{}, "prompt": "tighten"})
	payload := decodeResponse(t, rec)
	if rec.Code != http.StatusOK || payload["success"] != true {
		t.Fatalf("skills = %d %s", rec.Code, rec.Body.String())
	}
	if data := payload["data"].(map[string]any); len(data["skills"].([]any)) != 2 {
		t.Fatalf("data = %v", data)
	}

	tests := []struct {
		path   string
		id     string
		status int
	}{
		{path: "/ai/unknown", id: resume.ID, status: http.StatusNotFound},
		{path: "/ai/broken", id: resume.ID, status: http.StatusBadGateway},
		{path: "/ai/skills", id: "", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := doJSON(t, handler, http.MethodPost, tt.path, token, map[string]string{"id": tt.id})
		if rec.Code != tt.status {
			t.Fatalf("%s id=%q status = %d, want %d", tt.path, tt.id, rec.Code, tt.status)
		}
	}

	rec = doJSON(t, handler, http.MethodPost, "/ai/atsScore", tokenFor(t, "eve@example.com"), map[string]string{"id": resume.ID})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("stranger atsScore = %d", rec.Code)
	}
}

func TestAIRoutesUnavailableWithoutModel(t *testing.T) {
	f, handler := newTestServer(t, Deps{})
	resume := f.seedResume(t)

	rec := doJSON(t, handler, http.MethodPost, "/ai/atsScore", tokenFor(t, "alice@example.com"), map[string]string{"id": resume.ID})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestDeployRoute(t *testing.T) {
	var gotData json.RawMessage
	deployer := &fakeDeployer{deployFn: func(_ context.Context, resume store.Resume, owner store.User, data json.RawMessage) (portfolio.Result, error) {
		if len(data) == 0 || string(data) == "null" {
			return portfolio.Result{}, portfolio.ErrMissingData
		}
		gotData = data
		return portfolio.Result{Message: "New portfolio created and deployed successfully!", URL: "https://p.vercel.app", Created: true}, nil
	}}
	f, handler := newTestServer(t, Deps{Portfolio: deployer})
	resume := f.seedResume(t)
	alice := tokenFor(t, "alice@example.com")

	rec := doJSON(t, handler, http.MethodPost, "/deploy/"+resume.ID, alice, map[string]any{"resumeData": map[string]any{"name": "Alice"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("deploy status = %d body=%s", rec.Code, rec.Body.String())
	}
	if string(gotData) != `{"name":"Alice"}` {
		t.Fatalf("data = %s", gotData)
	}

	rec = doJSON(t, handler, http.MethodPost, "/deploy/"+resume.ID, alice, map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing data status = %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPost, "/deploy/"+resume.ID, tokenFor(t, "bob@example.com"), map[string]any{"resumeData": map[string]any{}})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("collaborator deploy status = %d", rec.Code)
	}
}

func TestDeployHostingFailureIsServerError(t *testing.T) {
	deployer := &fakeDeployer{deployFn: func(context.Context, store.Resume, store.User, json.RawMessage) (portfolio.Result, error) {
		return portfolio.Result{}, errors.New("github: 500")
	}}
	f, handler := newTestServer(t, Deps{Portfolio: deployer})
	resume := f.seedResume(t)

	rec := doJSON(t, handler, http.MethodPost, "/deploy/"+resume.ID, tokenFor(t, "alice@example.com"), map[string]any{"resumeData": map[string]any{}})
	if rec.Code != http.StatusInternalServerError || decodeResponse(t, rec)["error"] != "Server error" {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestSocketMountBypassesMiddleware(t *testing.T) {
	f := newFixture(t, Deps{})
	server := NewHTTPServer(f.svc, "*")
	var hits int
	server.MountSocket(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusTeapot)
	}))
	handler := server.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/socket", nil))
	if rec.Code != http.StatusTeapot || hits != 1 {
		t.Fatalf("socket status = %d hits = %d", rec.Code, hits)
	}
	if rec.Header().Get("X-Request-ID") != "" {
		t.Fatal("socket requests should not pass through the JSON middleware")
	}

	rec = doJSON(t, handler, http.MethodGet, "/socket/other", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("other path status = %d", rec.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	_, handler := newTestServer(t, Deps{})
	rec := doJSON(t, handler, http.MethodGet, "/nope", "", nil)
	if rec.Code != http.StatusNotFound || decodeResponse(t, rec)["code"] != "NOT_FOUND" {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
}
