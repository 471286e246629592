package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lovemap/internal/db"
	"gorm.io/gorm/logger"
)

const testBaseURL = "http://example.test"

type localClient struct {
	handler http.Handler
	jar     http.CookieJar
}

func newLocalClient(t *testing.T, handler http.Handler) *localClient {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("failed to create cookie jar: %v", err)
	}
	return &localClient{handler: handler, jar: jar}
}

func (c *localClient) Do(req *http.Request) *http.Response {
	for _, cookie := range c.jar.Cookies(req.URL) {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	resp := w.Result()
	c.jar.SetCookies(req.URL, resp.Cookies())
	return resp
}

func (c *localClient) doJSON(t *testing.T, method, path string, body interface{}, out interface{}) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, testBaseURL+path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return decode(t, c.Do(req), out)
}

func (c *localClient) doMultipart(t *testing.T, path string, fields map[string]string, file *testFile, out interface{}) int {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	if file != nil {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, file.name))
		header.Set("Content-Type", file.contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("failed to create file part: %v", err)
		}
		if _, err := part.Write(file.data); err != nil {
			t.Fatalf("failed to write file part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, testBaseURL+path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return decode(t, c.Do(req), out)
}

func decode(t *testing.T, resp *http.Response, out interface{}) int {
	t.Helper()
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode response (status %d): %v", resp.StatusCode, err)
		}
	}
	return resp.StatusCode
}

type testFile struct {
	name        string
	contentType string
	data        []byte
}

type milestoneJSON struct {
	ID         uint       `json:"id"`
	DayNumber  int        `json:"day_number"`
	Title      string     `json:"title"`
	IsUnlocked bool       `json:"is_unlocked"`
	UnlockDate *time.Time `json:"unlock_date"`
}

type itemJSON struct {
	ID          uint    `json:"id"`
	MilestoneID uint    `json:"milestone_id"`
	Type        string  `json:"type"`
	FilePath    *string `json:"file_path"`
	TextContent *string `json:"text_content"`
}

type detailJSON struct {
	Milestone milestoneJSON `json:"milestone"`
	Content   []itemJSON    `json:"content"`
	Replies   []itemJSON    `json:"replies"`
}

type itemResultJSON struct {
	ContentType string  `json:"contentType"`
	FilePath    *string `json:"filePath"`
	Error       string  `json:"error"`
}

type errorJSON struct {
	Error string `json:"error"`
}

type testServer struct {
	engine    *gin.Engine
	uploadDir string
	publicDir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:router-%d?mode=memory&cache=shared&_foreign_keys=on", time.Now().UnixNano())
	gdb, err := db.Open(dsn, logger.Default.LogMode(logger.Silent))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if err := db.Seed(gdb, db.SeedOptions{
		AdminUsername: "admin",
		AdminPassword: "admin123",
		UserUsername:  "user",
		UserPassword:  "user123",
	}); err != nil {
		t.Fatalf("failed to seed: %v", err)
	}

	uploadDir := t.TempDir()
	publicDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(publicDir, "index.html"), []byte("<h1>love map</h1>"), 0o644); err != nil {
		t.Fatalf("failed to write index: %v", err)
	}

	return &testServer{
		engine: SetupRouter(gdb, Options{
			SessionSecret: "test-session-secret",
			UploadDir:     uploadDir,
			UploadURLPath: "/uploads",
			PublicDir:     publicDir,
		}),
		uploadDir: uploadDir,
		publicDir: publicDir,
	}
}

func (s *testServer) login(t *testing.T, username, password string) *localClient {
	t.Helper()

	client := newLocalClient(t, s.engine)
	status := client.doJSON(t, http.MethodPost, "/api/auth/login", map[string]string{"username": username, "password": password}, nil)
	if status != http.StatusOK {
		t.Fatalf("login as %s failed with status %d", username, status)
	}
	return client
}

func findDay(t *testing.T, client *localClient, day int) milestoneJSON {
	t.Helper()

	var list struct {
		Milestones []milestoneJSON `json:"milestones"`
	}
	if status := client.doJSON(t, http.MethodGet, "/api/milestones", nil, &list); status != http.StatusOK {
		t.Fatalf("list milestones failed with status %d", status)
	}
	for _, m := range list.Milestones {
		if m.DayNumber == day {
			return m
		}
	}
	t.Fatalf("day %d not found", day)
	return milestoneJSON{}
}

func encodePNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 3, 3))
	img.Set(1, 1, color.RGBA{B: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return buf.Bytes()
}

func TestUnlockReplyScenario(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.login(t, "admin", "admin123")
	user := srv.login(t, "user", "user123")

	day1 := findDay(t, admin, 1)
	if day1.IsUnlocked {
		t.Fatal("expected day 1 to start locked")
	}

	var unlockResp struct {
		Message string `json:"message"`
	}
	path := fmt.Sprintf("/api/milestones/%d/unlock", day1.ID)
	if status := admin.doJSON(t, http.MethodPost, path, nil, &unlockResp); status != http.StatusOK {
		t.Fatalf("unlock failed with status %d", status)
	}
	if unlockResp.Message == "" {
		t.Fatal("expected unlock message")
	}

	var again errorJSON
	if status := admin.doJSON(t, http.MethodPost, path, nil, &again); status != http.StatusBadRequest {
		t.Fatalf("expected 400 on second unlock, got %d", status)
	}
	if again.Error != "Milestone already unlocked" {
		t.Fatalf("unexpected error %q", again.Error)
	}

	var list struct {
		Milestones []milestoneJSON `json:"milestones"`
	}
	if status := user.doJSON(t, http.MethodGet, "/api/milestones", nil, &list); status != http.StatusOK {
		t.Fatalf("user list failed with status %d", status)
	}
	if len(list.Milestones) != 1 || list.Milestones[0].Title != "Rose Day" || list.Milestones[0].UnlockDate == nil {
		t.Fatalf("expected only day 1 visible, got %+v", list.Milestones)
	}

	var reply itemResultJSON
	replyPath := fmt.Sprintf("/api/milestones/%d/reply", day1.ID)
	if status := user.doMultipart(t, replyPath, map[string]string{"type": "text", "text": "Happy Rose Day!"}, nil, &reply); status != http.StatusOK {
		t.Fatalf("reply failed with status %d: %s", status, reply.Error)
	}
	if reply.ContentType != "text" || reply.FilePath != nil {
		t.Fatalf("unexpected reply result %+v", reply)
	}

	var detail detailJSON
	if status := admin.doJSON(t, http.MethodGet, fmt.Sprintf("/api/milestones/%d", day1.ID), nil, &detail); status != http.StatusOK {
		t.Fatalf("admin get failed with status %d", status)
	}
	if len(detail.Replies) != 1 || detail.Replies[0].TextContent == nil || *detail.Replies[0].TextContent != "Happy Rose Day!" {
		t.Fatalf("expected the user's reply, got %+v", detail.Replies)
	}
	if detail.Replies[0].MilestoneID != day1.ID {
		t.Fatalf("reply attached to wrong milestone: %+v", detail.Replies[0])
	}
}

func TestUploadRoundTripAndRestart(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.login(t, "admin", "admin123")
	user := srv.login(t, "user", "user123")
	day2 := findDay(t, admin, 2)
	data := encodePNG(t)

	var result itemResultJSON
	contentPath := fmt.Sprintf("/api/milestones/%d/content", day2.ID)
	status := admin.doMultipart(t, contentPath, map[string]string{"type": "video"}, &testFile{name: "ring.png", contentType: "image/png", data: data}, &result)
	if status != http.StatusOK {
		t.Fatalf("upload failed with status %d: %s", status, result.Error)
	}
	if result.ContentType != "image" || result.FilePath == nil || !strings.HasPrefix(*result.FilePath, "/uploads/") {
		t.Fatalf("unexpected upload result %+v", result)
	}

	resp := admin.Do(httptest.NewRequest(http.MethodGet, testBaseURL+*result.FilePath, nil))
	served, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("failed to read served file: %v", err)
	}
	if resp.StatusCode != http.StatusOK || !bytes.Equal(served, data) {
		t.Fatalf("served file differs (status %d)", resp.StatusCode)
	}

	// Locked milestones stay hidden from the user and refuse replies.
	var forbidden errorJSON
	if status := user.doJSON(t, http.MethodGet, fmt.Sprintf("/api/milestones/%d", day2.ID), nil, &forbidden); status != http.StatusForbidden {
		t.Fatalf("expected 403 for locked milestone, got %d", status)
	}
	if status := user.doMultipart(t, fmt.Sprintf("/api/milestones/%d/reply", day2.ID), map[string]string{"type": "text", "text": "hi"}, nil, &forbidden); status != http.StatusForbidden {
		t.Fatalf("expected 403 reply on locked milestone, got %d", status)
	}

	if status := admin.doJSON(t, http.MethodPost, fmt.Sprintf("/api/milestones/%d/unlock", day2.ID), nil, nil); status != http.StatusOK {
		t.Fatalf("unlock failed with status %d", status)
	}
	if status := user.doMultipart(t, fmt.Sprintf("/api/milestones/%d/reply", day2.ID), map[string]string{"type": "text", "text": "yes!"}, nil, nil); status != http.StatusOK {
		t.Fatalf("reply failed with status %d", status)
	}

	req := httptest.NewRequest(http.MethodDelete, testBaseURL+contentPath, nil)
	var unconfirmed errorJSON
	if status := decode(t, admin.Do(req), &unconfirmed); status != http.StatusBadRequest {
		t.Fatalf("expected unconfirmed restart to be rejected, got %d", status)
	}

	req = httptest.NewRequest(http.MethodDelete, testBaseURL+contentPath, nil)
	req.Header.Set("X-Confirm-Restart", "true")
	var restart struct {
		DeletedContent int `json:"deletedContent"`
		DeletedReplies int `json:"deletedReplies"`
	}
	if status := decode(t, admin.Do(req), &restart); status != http.StatusOK {
		t.Fatalf("restart failed with status %d", status)
	}
	if restart.DeletedContent != 1 || restart.DeletedReplies != 1 {
		t.Fatalf("unexpected restart counts %+v", restart)
	}

	entries, err := os.ReadDir(srv.uploadDir)
	if err != nil {
		t.Fatalf("failed to read upload dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected upload dir to be empty after restart, found %d files", len(entries))
	}

	var detail detailJSON
	if status := admin.doJSON(t, http.MethodGet, fmt.Sprintf("/api/milestones/%d", day2.ID), nil, &detail); status != http.StatusOK {
		t.Fatalf("get failed with status %d", status)
	}
	if detail.Milestone.IsUnlocked || len(detail.Content) != 0 || len(detail.Replies) != 0 {
		t.Fatalf("expected reset milestone, got %+v", detail)
	}
}

func TestAccessControl(t *testing.T) {
	srv := newTestServer(t)
	anonymous := newLocalClient(t, srv.engine)
	user := srv.login(t, "user", "user123")

	var body errorJSON
	if status := anonymous.doJSON(t, http.MethodGet, "/api/milestones", nil, &body); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", status)
	}
	if status := anonymous.doJSON(t, http.MethodPost, "/api/milestones/1/unlock", nil, &body); status != http.StatusForbidden {
		t.Fatalf("expected 403 unlock without session, got %d", status)
	}
	if status := user.doJSON(t, http.MethodPost, "/api/milestones/1/unlock", nil, &body); status != http.StatusForbidden {
		t.Fatalf("expected 403 unlock as user, got %d", status)
	}
	if body.Error != "Admin access required" {
		t.Fatalf("unexpected error message %q", body.Error)
	}
	if status := user.doMultipart(t, "/api/milestones/1/content", map[string]string{"type": "text", "text": "x"}, nil, &body); status != http.StatusForbidden {
		t.Fatalf("expected 403 content upload as user, got %d", status)
	}

	admin := srv.login(t, "admin", "admin123")
	if status := admin.doJSON(t, http.MethodPost, "/api/milestones/999/unlock", nil, &body); status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown milestone, got %d", status)
	}
	if status := admin.doJSON(t, http.MethodGet, "/api/milestones/abc", nil, &body); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", status)
	}
}

func TestAuthEndpoints(t *testing.T) {
	srv := newTestServer(t)
	client := newLocalClient(t, srv.engine)

	var status struct {
		Authenticated bool `json:"authenticated"`
		User          *struct {
			ID       uint   `json:"id"`
			Username string `json:"username"`
			Role     string `json:"role"`
		} `json:"user"`
	}
	if code := client.doJSON(t, http.MethodGet, "/api/auth/status", nil, &status); code != http.StatusOK || status.Authenticated {
		t.Fatalf("expected anonymous status, got %d %+v", code, status)
	}

	var missing, wrongPassword, unknownUser errorJSON
	if code := client.doJSON(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "admin"}, &missing); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing password, got %d", code)
	}
	codeWrong := client.doJSON(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "admin", "password": "wrong"}, &wrongPassword)
	codeUnknown := client.doJSON(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "nouser", "password": "x"}, &unknownUser)
	if codeWrong != http.StatusUnauthorized || codeUnknown != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad credentials, got %d and %d", codeWrong, codeUnknown)
	}
	if wrongPassword.Error != unknownUser.Error {
		t.Fatalf("bad credential messages differ: %q vs %q", wrongPassword.Error, unknownUser.Error)
	}

	form := url.Values{"username": {"admin"}, "password": {"admin123"}}
	req := httptest.NewRequest(http.MethodPost, testBaseURL+"/api/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if code := decode(t, client.Do(req), nil); code != http.StatusOK {
		t.Fatalf("form login failed with status %d", code)
	}

	if code := client.doJSON(t, http.MethodGet, "/api/auth/status", nil, &status); code != http.StatusOK || !status.Authenticated {
		t.Fatalf("expected authenticated status, got %d %+v", code, status)
	}
	if status.User == nil || status.User.Role != "admin" || status.User.Username != "admin" {
		t.Fatalf("unexpected status user %+v", status.User)
	}

	if code := client.doJSON(t, http.MethodPost, "/api/auth/logout", nil, nil); code != http.StatusOK {
		t.Fatalf("logout failed with status %d", code)
	}
	var body errorJSON
	if code := client.doJSON(t, http.MethodGet, "/api/milestones", nil, &body); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", code)
	}
}

func TestRejectsInvalidUpload(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.login(t, "admin", "admin123")
	day3 := findDay(t, admin, 3)

	uploads := []struct {
		itemType string
		file     *testFile
	}{
		{itemType: "image", file: &testFile{name: "run.sh", contentType: "text/x-shellscript", data: []byte("#!/bin/sh")}},
		{itemType: "video", file: &testFile{name: "evil.html", contentType: "video/mp4", data: []byte("<html><script>alert(1)</script></html>")}},
	}
	for _, upload := range uploads {
		var body itemResultJSON
		status := admin.doMultipart(t, fmt.Sprintf("/api/milestones/%d/content", day3.ID), map[string]string{"type": upload.itemType}, upload.file, &body)
		if status != http.StatusBadRequest || body.Error != "Invalid file type" {
			t.Fatalf("expected file type error for %s, got %d %q", upload.file.name, status, body.Error)
		}
	}

	entries, err := os.ReadDir(srv.uploadDir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatalf("failed to read upload dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no uploaded files, found %d", len(entries))
	}
}

func TestServesPublicFilesAndPing(t *testing.T) {
	srv := newTestServer(t)
	client := newLocalClient(t, srv.engine)

	resp := client.Do(httptest.NewRequest(http.MethodGet, testBaseURL+"/", nil))
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "love map") {
		t.Fatalf("expected public index, got %d %q", resp.StatusCode, body)
	}

	var missing errorJSON
	if status := client.doJSON(t, http.MethodGet, "/api/nothing", nil, &missing); status != http.StatusNotFound {
		t.Fatalf("expected JSON 404 for unknown api route, got %d", status)
	}

	var pong struct {
		Message string `json:"message"`
	}
	if status := client.doJSON(t, http.MethodGet, "/ping", nil, &pong); status != http.StatusOK || pong.Message != "pong" {
		t.Fatalf("unexpected ping response %d %+v", status, pong)
	}
}
