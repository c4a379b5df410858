package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"resumebuilder/api/internal/accounts"
	"resumebuilder/api/internal/ai"
	"resumebuilder/api/internal/auth"
	"resumebuilder/api/internal/portfolio"
	"resumebuilder/api/internal/store"
	"resumebuilder/api/internal/upload"
)

const socketPath = "/socket"

type HTTPServer struct {
	service    *Service
	corsOrigin string
	socket     http.Handler
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

// MountSocket serves the realtime endpoint at /socket. The websocket
// handshake bypasses the JSON middleware since it needs the raw connection.
func (s *HTTPServer) MountSocket(handler http.Handler) {
	s.socket = handler
}

func (s *HTTPServer) Handler() http.Handler {
	api := s.withMiddleware(http.HandlerFunc(s.handle))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.socket != nil && r.URL.Path == socketPath {
			s.socket.ServeHTTP(w, r)
			return
		}
		api.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) == 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
		return
	}

	switch parts[0] {
	case "users":
		s.handleUsers(w, r, parts[1:])
	case "resumes":
		s.handleResumes(w, r, parts[1:])
	case "ai":
		s.handleAI(w, r, parts[1:])
	case "deploy":
		s.handleDeploy(w, r, parts[1:])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	}
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{}
	deps := []struct {
		name string
		ping func(context.Context) error
	}{
		{name: "database", ping: s.service.Ping},
		{name: "redis", ping: s.service.PingRedis},
	}
	for _, dep := range deps {
		if err := dep.ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks[dep.name] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
			continue
		}
		checks[dep.name] = map[string]any{"status": "ok"}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleUsers(w http.ResponseWriter, r *http.Request, parts []string) {
	route := strings.Join(parts, "/")

	switch {
	case r.Method == http.MethodPost && route == "register":
		var body struct {
			Name     string `json:"name"`
			Email    string `json:"email"`
			Password string `json:"password"`
			Role     string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, lists, err := s.service.Register(r.Context(), accounts.RegisterRequest{
			Name:     body.Name,
			Email:    body.Email,
			Password: body.Password,
			Role:     body.Role,
		})
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"message": "User registered successfully",
			"token":   session.Token,
			"resumes": lists,
		})
		return

	case r.Method == http.MethodPost && route == "login":
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, lists, err := s.service.Login(r.Context(), body.Email, body.Password)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "User logged in successfully",
			"token":   session.Token,
			"resumes": lists,
		})
		return

	case r.Method == http.MethodPost && route == "google-login":
		var body struct {
			Credential string `json:"credential"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		session, lists, err := s.service.GoogleLogin(r.Context(), body.Credential)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "User logged in successfully",
			"token":   session.Token,
			"resumes": lists,
			"user": map[string]any{
				"name":           session.User.Name,
				"email":          session.User.Email,
				"profilePicture": session.User.ProfilePicture,
				"authProvider":   session.User.AuthProvider,
			},
		})
		return

	case r.Method == http.MethodPost && route == "renew-token":
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "No token provided", nil)
			return
		}
		renewed, err := s.service.RenewToken(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token expired, please log in again", nil)
				return
			}
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Token renewed successfully",
			"token":   renewed,
		})
		return
	}

	email, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}

	switch {
	case r.Method == http.MethodGet && route == "getResumeList":
		lists, err := s.service.ListResumes(r.Context(), email)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, lists)

	case r.Method == http.MethodGet && route == "profile":
		user, err := s.service.Profile(r.Context(), email)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"name":       user.Name,
			"email":      user.Email,
			"profilePic": user.ProfilePicture,
		})

	case r.Method == http.MethodPut && route == "profile":
		var body struct {
			Name       string `json:"name"`
			ProfilePic string `json:"profilePic"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		user, err := s.service.UpdateProfile(r.Context(), email, body.Name, body.ProfilePic)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Profile updated successfully",
			"user": map[string]any{
				"name":       user.Name,
				"profilePic": user.ProfilePicture,
			},
		})

	case r.Method == http.MethodPut && route == "profile/password":
		var body struct {
			OldPassword string `json:"oldPassword"`
			NewPassword string `json:"newPassword"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.ChangePassword(r.Context(), email, body.OldPassword, body.NewPassword); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "Password updated successfully"})

	case r.Method == http.MethodPost && route == "profile/picture":
		s.handleImageUpload(w, r, func(filename string, file io.Reader, size int64) (string, error) {
			return s.service.UploadProfilePicture(r.Context(), email, filename, file, size)
		})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	}
}

func (s *HTTPServer) handleResumes(w http.ResponseWriter, r *http.Request, parts []string) {
	email, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}
	if len(parts) == 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
		return
	}

	switch {
	case r.Method == http.MethodPost && len(parts) == 1 && parts[0] == "create":
		var body CreateResumeInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		created, lists, err := s.service.CreateResume(r.Context(), email, body)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"message":  "Resume created successfully",
			"resume":   created,
			"userData": lists,
		})

	case r.Method == http.MethodGet && len(parts) == 1 && parts[0] == "list":
		lists, err := s.service.ListResumes(r.Context(), email)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, lists)

	case r.Method == http.MethodGet && len(parts) == 1 && parts[0] == "search":
		query := r.URL.Query()
		limit, _ := strconv.Atoi(query.Get("limit"))
		offset, _ := strconv.Atoi(query.Get("offset"))
		writeJSON(w, http.StatusOK, s.service.SearchResumes(email, query.Get("q"), limit, offset))

	case r.Method == http.MethodGet && len(parts) == 2 && parts[0] == "load":
		resume, err := s.service.LoadResume(r.Context(), email, parts[1])
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"resume":        resume,
			"socketEnabled": true,
			"message":       "Resume loaded. Connect to socket for real-time collaboration.",
		})

	case r.Method == http.MethodPut && len(parts) == 2 && parts[0] == "update":
		var updates json.RawMessage
		if err := decodeBody(r, &updates); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		resume, err := s.service.UpdateResume(r.Context(), email, parts[1], updates)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message":       "Resume updated and broadcasted",
			"resume":        resume,
			"socketEnabled": true,
		})

	case r.Method == http.MethodPut && len(parts) == 3 && parts[0] == "update" && parts[2] == "upload":
		resumeID := parts[1]
		s.handleImageUpload(w, r, func(filename string, file io.Reader, size int64) (string, error) {
			return s.service.UploadResumeImage(r.Context(), email, resumeID, filename, file, size)
		})

	case r.Method == http.MethodPut && len(parts) == 2 && parts[0] == "share":
		var body struct {
			SharedEmail string `json:"sharedemail"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		users, err := s.service.ShareResume(r.Context(), email, parts[1], body.SharedEmail)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message":     "Resume shared successfully",
			"sharedUsers": users,
		})

	case r.Method == http.MethodGet && len(parts) == 3 && parts[0] == "share" && parts[2] == "sharelist":
		users, message, err := s.service.ShareList(r.Context(), email, parts[1])
		if err != nil {
			s.fail(w, err)
			return
		}
		payload := map[string]any{"sharedUsers": users}
		if message != "" {
			payload["message"] = message
		}
		writeJSON(w, http.StatusOK, payload)

	case r.Method == http.MethodPut && len(parts) == 2 && parts[0] == "unshare":
		var body struct {
			Email string `json:"email"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		users, err := s.service.UnshareResume(r.Context(), email, parts[1], body.Email)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message":     "Resume unshared successfully",
			"sharedUsers": users,
		})

	case r.Method == http.MethodDelete && len(parts) == 2 && parts[0] == "delete":
		lists, err := s.service.DeleteResume(r.Context(), email, parts[1])
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message":  "Resume deleted successfully",
			"userData": lists,
		})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	}
}

func (s *HTTPServer) handleAI(w http.ResponseWriter, r *http.Request, parts []string) {
	if r.Method != http.MethodPost || len(parts) != 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
		return
	}
	email, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}

	var body struct {
		ID          string          `json:"id"`
		SectionData json.RawMessage `json:"sectionData"`
		Prompt      string          `json:"prompt"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	if parts[0] == "atsScore" {
		score, err := s.service.ScoreATS(r.Context(), email, body.ID)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, score)
		return
	}

	data, err := s.service.SuggestSection(r.Context(), email, parts[0], body.ID, body.SectionData, body.Prompt)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
		"message": "AI suggestions generated successfully",
	})
}

func (s *HTTPServer) handleDeploy(w http.ResponseWriter, r *http.Request, parts []string) {
	if r.Method != http.MethodPost || len(parts) != 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
		return
	}
	email, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}
	var body struct {
		ResumeData json.RawMessage `json:"resumeData"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	result, err := s.service.DeployPortfolio(r.Context(), email, parts[0], body.ResumeData)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleImageUpload(w http.ResponseWriter, r *http.Request, save func(filename string, file io.Reader, size int64) (string, error)) {
	r.Body = http.MaxBytesReader(w, r.Body, upload.MaxImageBytes+(1<<20))
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "An image file is required", nil)
		return
	}
	defer file.Close()

	url, err := save(header.Filename, file, header.Size)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "url": url})
}

func (s *HTTPServer) requireIdentity(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Access Denied", nil)
		return "", false
	}
	email, err := s.service.Identity(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid Token", nil)
		return "", false
	}
	return email, true
}

func (s *HTTPServer) fail(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		log.Printf("app: %v", err)
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token", nil
	case errors.Is(err, accounts.ErrInvalidInput):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, accounts.ErrEmailTaken):
		return http.StatusConflict, "EMAIL_EXISTS", "User already exists with this email", nil
	case errors.Is(err, accounts.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password.", nil
	case errors.Is(err, accounts.ErrGoogleCredential):
		return http.StatusUnauthorized, "GOOGLE_AUTH_FAILED", "Google authentication failed", nil
	case errors.Is(err, accounts.ErrGoogleAccount):
		return http.StatusUnauthorized, "GOOGLE_ACCOUNT", "This account is linked with Google. Please use Google Sign-In.", nil
	case errors.Is(err, accounts.ErrWrongPassword):
		return http.StatusUnauthorized, "WRONG_PASSWORD", "Old password is incorrect", nil
	case errors.Is(err, accounts.ErrUserNotFound):
		return http.StatusNotFound, "USER_NOT_FOUND", "User not found", nil
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict, "CONFLICT", "Already exists", nil
	case errors.Is(err, upload.ErrUnsupportedImage):
		return http.StatusBadRequest, "UNSUPPORTED_IMAGE", "Only png, jpg, gif and webp images are accepted", nil
	case errors.Is(err, ai.ErrUnknownSection):
		return http.StatusNotFound, "NOT_FOUND", "Unknown resume section", nil
	case errors.Is(err, ai.ErrInvalidOutput):
		return http.StatusBadGateway, "AI_INVALID_OUTPUT", "AI returned invalid JSON", nil
	case errors.Is(err, portfolio.ErrMissingData):
		return http.StatusBadRequest, "VALIDATION_ERROR", "resumeData is required.", nil
	case errors.Is(err, portfolio.ErrNotConfigured):
		return http.StatusServiceUnavailable, "UNAVAILABLE", "Portfolio deployment is not configured", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
