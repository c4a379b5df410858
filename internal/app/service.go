package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"resumebuilder/api/internal/access"
	"resumebuilder/api/internal/accounts"
	"resumebuilder/api/internal/ai"
	"resumebuilder/api/internal/auth"
	"resumebuilder/api/internal/broadcast"
	"resumebuilder/api/internal/config"
	"resumebuilder/api/internal/portfolio"
	"resumebuilder/api/internal/realtime"
	"resumebuilder/api/internal/search"
	"resumebuilder/api/internal/store"
)

type dataStore interface {
	Ping(context.Context) error
	GetUserByEmail(context.Context, string) (store.User, error)
	CreateUser(context.Context, store.User) (store.User, error)
	UpdateUserProfile(context.Context, string, string, string) (store.User, error)
	UpdateUserPassword(context.Context, string, string) error
	GetUserByGoogleID(context.Context, string) (store.User, error)
	LinkGoogleAccount(context.Context, string, string, string) (store.User, error)
	CreateResume(context.Context, store.Resume) (store.Resume, error)
	GetResume(context.Context, string) (store.Resume, error)
	ListResumesForUser(context.Context, string) ([]store.ResumeSummary, []store.ResumeSummary, error)
	ApplyResumePatch(context.Context, string, store.Patch) (store.Resume, error)
	DeleteResume(context.Context, string) error
	AddCollaborator(context.Context, string, store.Collaborator) (bool, error)
	RemoveCollaborator(context.Context, string, string) error
	RefreshCollaborators(context.Context, string) ([]store.Collaborator, error)
}

type roomBroadcaster interface {
	ToRoom(ctx context.Context, room string, msg broadcast.Message) error
}

type resumeSearch interface {
	Search(q search.Query) search.Response
	IndexResume(rec search.ResumeRecord)
	DeleteResume(id string)
}

type mailer interface {
	IsConfigured() bool
	SendResumeSharedEmail(to, userName, ownerEmail, resumeTitle string) error
}

type imageUploader interface {
	UploadImage(ctx context.Context, filename string, r io.Reader, size int64) (string, error)
}

type advisor interface {
	ScoreATS(ctx context.Context, resume json.RawMessage) (ai.ATSScore, error)
	SuggestSection(ctx context.Context, section string, data json.RawMessage, instruction string) (json.RawMessage, error)
}

type deployer interface {
	Deploy(ctx context.Context, resume store.Resume, owner store.User, data json.RawMessage) (portfolio.Result, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type googleVerifier interface {
	Verify(ctx context.Context, credential string) (accounts.GoogleProfile, error)
}

// Deps are the collaborators of Service. Only Store is required; features
// whose dependency is nil answer 503.
type Deps struct {
	Store     dataStore
	Rooms     roomBroadcaster
	Search    resumeSearch
	Mailer    mailer
	Images    imageUploader
	AI        advisor
	Portfolio deployer
	Redis     pinger
	Google    googleVerifier
}

type Service struct {
	cfg       config.Config
	store     dataStore
	accounts  *accounts.Service
	rooms     roomBroadcaster
	search    resumeSearch
	mailer    mailer
	images    imageUploader
	ai        advisor
	portfolio deployer
	redis     pinger
	google    googleVerifier
	now       func() time.Time
}

func New(cfg config.Config, deps Deps) *Service {
	return &Service{
		cfg:       cfg,
		store:     deps.Store,
		accounts:  accounts.NewService(deps.Store, cfg.JWTSecret, cfg.AccessTTL),
		rooms:     deps.Rooms,
		search:    deps.Search,
		mailer:    deps.Mailer,
		images:    deps.Images,
		ai:        deps.AI,
		portfolio: deps.Portfolio,
		redis:     deps.Redis,
		google:    deps.Google,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) PingRedis(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Ping(ctx)
}

// Identity resolves a bearer token to the email it was issued for.
func (s *Service) Identity(token string) (string, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return "", err
	}
	return claims.Email, nil
}

// Accounts

type ResumeLists struct {
	Owned  []store.ResumeSummary `json:"owned"`
	Shared []store.ResumeSummary `json:"shared"`
}

func (s *Service) Register(ctx context.Context, req accounts.RegisterRequest) (*accounts.Session, ResumeLists, error) {
	session, err := s.accounts.Register(ctx, req)
	if err != nil {
		return nil, ResumeLists{}, err
	}
	lists, err := s.ListResumes(ctx, session.User.Email)
	return session, lists, err
}

func (s *Service) Login(ctx context.Context, email, password string) (*accounts.Session, ResumeLists, error) {
	session, err := s.accounts.Login(ctx, email, password)
	if err != nil {
		return nil, ResumeLists{}, err
	}
	lists, err := s.ListResumes(ctx, session.User.Email)
	return session, lists, err
}

// GoogleLogin verifies a Google ID token and signs in the account it names.
func (s *Service) GoogleLogin(ctx context.Context, credential string) (*accounts.Session, ResumeLists, error) {
	if s.google == nil {
		return nil, ResumeLists{}, unavailable("Google sign-in")
	}
	if strings.TrimSpace(credential) == "" {
		return nil, ResumeLists{}, validationError("Google credential is required")
	}
	profile, err := s.google.Verify(ctx, credential)
	if err != nil {
		return nil, ResumeLists{}, err
	}
	session, err := s.accounts.GoogleLogin(ctx, profile)
	if err != nil {
		return nil, ResumeLists{}, err
	}
	lists, err := s.ListResumes(ctx, session.User.Email)
	return session, lists, err
}

func (s *Service) RenewToken(ctx context.Context, token string) (string, error) {
	return s.accounts.RenewToken(ctx, token)
}

func (s *Service) Profile(ctx context.Context, email string) (store.User, error) {
	return s.accounts.Profile(ctx, email)
}

func (s *Service) UpdateProfile(ctx context.Context, email, name, profilePicture string) (store.User, error) {
	return s.accounts.UpdateProfile(ctx, email, name, profilePicture)
}

func (s *Service) ChangePassword(ctx context.Context, email, oldPassword, newPassword string) error {
	return s.accounts.ChangePassword(ctx, email, oldPassword, newPassword)
}

// UploadProfilePicture stores an image and makes it the caller's profile
// picture.
func (s *Service) UploadProfilePicture(ctx context.Context, email, filename string, r io.Reader, size int64) (string, error) {
	if s.images == nil {
		return "", unavailable("Image upload")
	}
	user, err := s.accounts.Profile(ctx, email)
	if err != nil {
		return "", err
	}
	url, err := s.images.UploadImage(ctx, filename, r, size)
	if err != nil {
		return "", err
	}
	if _, err := s.store.UpdateUserProfile(ctx, email, user.Name, url); err != nil {
		return "", fmt.Errorf("save profile picture: %w", err)
	}
	return url, nil
}

// Resumes

type CreateResumeInput struct {
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	SelectedTemplate string          `json:"selectedTemplate"`
	GlobalStyles     json.RawMessage `json:"globalStyles"`
	ResumeData       json.RawMessage `json:"resumeData"`
}

func (s *Service) ListResumes(ctx context.Context, email string) (ResumeLists, error) {
	owned, shared, err := s.store.ListResumesForUser(ctx, email)
	if err != nil {
		return ResumeLists{}, err
	}
	if owned == nil {
		owned = []store.ResumeSummary{}
	}
	if shared == nil {
		shared = []store.ResumeSummary{}
	}
	return ResumeLists{Owned: owned, Shared: shared}, nil
}

func (s *Service) CreateResume(ctx context.Context, email string, input CreateResumeInput) (store.Resume, ResumeLists, error) {
	if strings.TrimSpace(input.Title) == "" {
		return store.Resume{}, ResumeLists{}, validationError("Title is required")
	}
	if !isJSONObjectOrEmpty(input.GlobalStyles) || !isJSONObjectOrEmpty(input.ResumeData) {
		return store.Resume{}, ResumeLists{}, validationError("globalStyles and resumeData must be objects")
	}
	created, err := s.store.CreateResume(ctx, store.Resume{
		Title:            strings.TrimSpace(input.Title),
		Description:      input.Description,
		Owner:            email,
		SelectedTemplate: input.SelectedTemplate,
		GlobalStyles:     input.GlobalStyles,
		ResumeData:       input.ResumeData,
	})
	if err != nil {
		return store.Resume{}, ResumeLists{}, err
	}
	s.indexResume(created)
	lists, err := s.ListResumes(ctx, email)
	return created, lists, err
}

func (s *Service) LoadResume(ctx context.Context, email, id string) (store.Resume, error) {
	return s.authorizedResume(ctx, email, id, access.ActionView)
}

// UpdateResume applies a partial update and tells every editor in the
// resume's room about it.
func (s *Service) UpdateResume(ctx context.Context, email, id string, updates json.RawMessage) (store.Resume, error) {
	patch, err := store.ParsePatch(updates)
	if err != nil {
		return store.Resume{}, validationError("Updates must be a JSON object")
	}
	if _, err := s.authorizedResume(ctx, email, id, access.ActionEdit); err != nil {
		return store.Resume{}, err
	}
	updated, err := s.store.ApplyResumePatch(ctx, id, patch)
	if err != nil {
		if errors.Is(err, store.ErrInvalidPatch) {
			return store.Resume{}, validationError(err.Error())
		}
		return store.Resume{}, err
	}
	s.indexResume(updated)

	if s.rooms != nil {
		msg, err := broadcast.NewMessage(realtime.EventResumeUpdated, realtime.ResumeUpdatedPayload{
			Updates:   patch.Applied(),
			UpdatedBy: email,
			Timestamp: s.now(),
		})
		if err == nil {
			err = s.rooms.ToRoom(ctx, id, msg)
		}
		if err != nil {
			log.Printf("app: broadcast update of %s: %v", id, err)
		}
	}
	return updated, nil
}

func (s *Service) ShareResume(ctx context.Context, email, id, target string) ([]store.Collaborator, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, validationError("sharedemail is required")
	}
	user, err := s.store.GetUserByEmail(ctx, target)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domainError(http.StatusNotFound, "USER_NOT_FOUND", "User not found. Cannot share resume with unregistered user.", nil)
		}
		return nil, err
	}
	resume, err := s.authorizedResume(ctx, email, id, access.ActionShare)
	if err != nil {
		return nil, err
	}
	if target == resume.Owner {
		return nil, validationError("Cannot share a resume with its owner")
	}

	var picture *string
	if user.ProfilePicture != "" {
		picture = &user.ProfilePicture
	}
	if _, err := s.store.AddCollaborator(ctx, id, store.Collaborator{
		Email:          user.Email,
		Name:           user.Name,
		ProfilePicture: picture,
	}); err != nil {
		return nil, err
	}

	if s.mailer != nil && s.mailer.IsConfigured() {
		if err := s.mailer.SendResumeSharedEmail(user.Email, user.Name, email, resume.Title); err != nil {
			log.Printf("app: share notification to %s: %v", user.Email, err)
		}
	}

	updated, err := s.store.GetResume(ctx, id)
	if err != nil {
		return nil, err
	}
	s.indexResume(updated)
	return nonNilCollaborators(updated.Shared), nil
}

func (s *Service) UnshareResume(ctx context.Context, email, id, target string) ([]store.Collaborator, error) {
	if strings.TrimSpace(target) == "" {
		return nil, validationError("email is required")
	}
	if _, err := s.authorizedResume(ctx, email, id, access.ActionShare); err != nil {
		return nil, err
	}
	if err := s.store.RemoveCollaborator(ctx, id, strings.TrimSpace(target)); err != nil {
		return nil, err
	}
	updated, err := s.store.GetResume(ctx, id)
	if err != nil {
		return nil, err
	}
	s.indexResume(updated)
	return nonNilCollaborators(updated.Shared), nil
}

// ShareList returns the collaborators of a resume, refreshed from the user
// records. Callers other than the owner get an empty list and a message.
func (s *Service) ShareList(ctx context.Context, email, id string) ([]store.Collaborator, string, error) {
	resume, err := s.store.GetResume(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, "", resumeNotFound()
		}
		return nil, "", err
	}
	if !access.IsOwner(resume.Grant(), email) {
		return []store.Collaborator{}, "You are not the owner, so the share list is hidden.", nil
	}
	collaborators, err := s.store.RefreshCollaborators(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return nonNilCollaborators(collaborators), "", nil
}

func (s *Service) DeleteResume(ctx context.Context, email, id string) (ResumeLists, error) {
	if _, err := s.authorizedResume(ctx, email, id, access.ActionDelete); err != nil {
		return ResumeLists{}, err
	}
	if err := s.store.DeleteResume(ctx, id); err != nil {
		return ResumeLists{}, err
	}
	if s.search != nil {
		s.search.DeleteResume(id)
	}
	return s.ListResumes(ctx, email)
}

func (s *Service) SearchResumes(email, text string, limit, offset int) search.Response {
	text = strings.TrimSpace(text)
	if s.search == nil || text == "" {
		return search.Response{Results: []search.Result{}, Query: text}
	}
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.search.Search(search.Query{Text: text, Identity: email, Limit: limit, Offset: offset})
}

// UploadResumeImage stores an image used inside a resume the caller can
// edit.
func (s *Service) UploadResumeImage(ctx context.Context, email, id, filename string, r io.Reader, size int64) (string, error) {
	if s.images == nil {
		return "", unavailable("Image upload")
	}
	if _, err := s.authorizedResume(ctx, email, id, access.ActionEdit); err != nil {
		return "", err
	}
	return s.images.UploadImage(ctx, filename, r, size)
}

// AI

func (s *Service) ScoreATS(ctx context.Context, email, id string) (ai.ATSScore, error) {
	if s.ai == nil {
		return ai.ATSScore{}, unavailable("AI suggestions")
	}
	if strings.TrimSpace(id) == "" {
		return ai.ATSScore{}, validationError("No id provided for ATS scorer data")
	}
	resume, err := s.authorizedResume(ctx, email, id, access.ActionView)
	if err != nil {
		return ai.ATSScore{}, err
	}
	document, err := json.Marshal(resume)
	if err != nil {
		return ai.ATSScore{}, fmt.Errorf("encode resume: %w", err)
	}
	return s.ai.ScoreATS(ctx, document)
}

func (s *Service) SuggestSection(ctx context.Context, email, section, id string, data json.RawMessage, instruction string) (json.RawMessage, error) {
	if s.ai == nil {
		return nil, unavailable("AI suggestions")
	}
	if strings.TrimSpace(id) == "" {
		return nil, validationError("No id provided")
	}
	if _, err := s.authorizedResume(ctx, email, id, access.ActionView); err != nil {
		return nil, err
	}
	return s.ai.SuggestSection(ctx, section, data, instruction)
}

// Portfolio

func (s *Service) DeployPortfolio(ctx context.Context, email, id string, data json.RawMessage) (portfolio.Result, error) {
	if s.portfolio == nil {
		return portfolio.Result{}, unavailable("Portfolio deployment")
	}
	owner, err := s.accounts.Profile(ctx, email)
	if err != nil {
		return portfolio.Result{}, err
	}
	resume, err := s.authorizedResume(ctx, email, id, access.ActionDeploy)
	if err != nil {
		return portfolio.Result{}, err
	}
	return s.portfolio.Deploy(ctx, resume, owner, data)
}

func (s *Service) authorizedResume(ctx context.Context, email, id string, action access.Action) (store.Resume, error) {
	if strings.TrimSpace(id) == "" {
		return store.Resume{}, validationError("Resume id is required")
	}
	resume, err := s.store.GetResume(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Resume{}, resumeNotFound()
		}
		return store.Resume{}, err
	}
	if !access.Can(resume.Grant(), email, action) {
		switch action {
		case access.ActionView, access.ActionEdit:
			return store.Resume{}, forbidden("Access denied")
		default:
			return store.Resume{}, forbidden("Unauthorized: Not the owner")
		}
	}
	return resume, nil
}

func (s *Service) indexResume(resume store.Resume) {
	if s.search != nil {
		s.search.IndexResume(search.RecordFromResume(resume))
	}
}

func isJSONObjectOrEmpty(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return true
	}
	var object map[string]json.RawMessage
	return json.Unmarshal(raw, &object) == nil && object != nil
}

func nonNilCollaborators(items []store.Collaborator) []store.Collaborator {
	if items == nil {
		return []store.Collaborator{}
	}
	return items
}
