package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"civic-board/internal/engine/actors"
	"civic-board/internal/middleware"
	"civic-board/internal/models"
	"civic-board/internal/utils"
	ws "civic-board/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const actorTimeout = 5 * time.Second

// Request structs for JSON handling
type CreateProjectRequest struct {
	Title           string                 `json:"title"`
	Description     string                 `json:"description"`
	Category        models.ProjectCategory `json:"category"`
	Tags            []string               `json:"tags"`
	Status          models.ProjectStatus   `json:"status"`
	AuthorName      string                 `json:"authorName"`
	ExperienceLevel string                 `json:"experienceLevel"`
	TimeCommitment  string                 `json:"timeCommitment"`
	Duration        string                 `json:"duration"`
	ContactMethod   string                 `json:"contactMethod"`
	ContactInfo     string                 `json:"contactInfo"`
	GithubURL       *string                `json:"githubUrl"`
	ImageURL        *string                `json:"imageUrl"`
}

type VoteRequest struct {
	ProjectID string `json:"projectId"`
	Direction string `json:"direction"`
}

type AddCommentRequest struct {
	ProjectID string  `json:"projectId"`
	Text      string  `json:"text"`
	ReplyTo   *string `json:"replyTo,omitempty"`
}

type EditCommentRequest struct {
	CommentID string `json:"commentId"`
	Text      string `json:"text"`
}

type PinCommentRequest struct {
	CommentID string `json:"commentId"`
	Pinned    bool   `json:"pinned"`
}

type ResolveCommentRequest struct {
	CommentID string `json:"commentId"`
	Status    string `json:"status"`
}

type MarkReadRequest struct {
	NotificationID string `json:"notificationId"`
}

type SaveProfileRequest struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl"`
	Bio       string `json:"bio"`
}

// ask sends a message to an actor and waits for its reply.
func (s *Server) ask(pid *actor.PID, msg interface{}) (interface{}, error) {
	future := s.context.RequestFuture(pid, msg, actorTimeout)
	return future.Result()
}

// respond writes the actor's reply as JSON. AppError replies become the
// matching HTTP status; anything else is a 200 with the payload.
func (s *Server) respond(w http.ResponseWriter, result interface{}, err error) {
	s.metrics.IncrementRequests()

	if err != nil {
		s.metrics.IncrementErrors()
		s.logger.Error("actor request failed", "err", err)
		http.Error(w, "Request timed out", http.StatusGatewayTimeout)
		return
	}

	if appErr, ok := result.(*utils.AppError); ok {
		s.metrics.IncrementErrors()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(utils.AppErrorToHTTPStatus(appErr.Code))
		json.NewEncoder(w).Encode(map[string]string{
			"error": appErr.Message,
			"code":  appErr.Code,
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func badRequest(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
		"code":  utils.ErrInvalidInput,
	})
}

func parseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	value := r.URL.Query().Get(name)
	if value == "" {
		return uuid.Nil, fmt.Errorf("missing %s parameter", name)
	}
	return uuid.Parse(value)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	future := s.context.RequestFuture(s.engine.GetBoardActor(), &actors.GetCountsMsg{}, actorTimeout)
	result, err := future.Result()
	if err != nil {
		http.Error(w, "Failed to get project count", http.StatusInternalServerError)
		return
	}
	projectCount := result.(int)

	requests, errors := s.metrics.Counts()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "ok",
		"projects":    projectCount,
		"requests":    requests,
		"errors":      errors,
		"uptime":      s.metrics.Uptime().String(),
		"voteLatency": s.metrics.AverageLatency("vote_project").String(),
	})
}

// handleReady blocks until the catalog's initial snapshot has loaded, so
// load balancers only route traffic once listings are servable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	future := s.context.RequestFuture(s.engine.GetBoardActor(), &actors.WaitCatalogReadyMsg{}, 30*time.Second)
	result, err := future.Result()
	s.respond(w, result, err)
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		result, err := s.ask(s.engine.GetBoardActor(), &actors.GetCatalogMsg{})
		s.respond(w, result, err)

	case http.MethodPost:
		var req CreateProjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "Invalid request format")
			return
		}
		if req.Title == "" || req.Description == "" {
			badRequest(w, "Title and description are required")
			return
		}

		msg := &actors.CreateProjectMsg{
			UserID: middleware.CurrentUserID(r.Context()),
			Project: &models.Project{
				Title:           req.Title,
				Description:     req.Description,
				Category:        req.Category,
				Tags:            req.Tags,
				Status:          req.Status,
				AuthorName:      req.AuthorName,
				ExperienceLevel: req.ExperienceLevel,
				TimeCommitment:  req.TimeCommitment,
				Duration:        req.Duration,
				ContactMethod:   req.ContactMethod,
				ContactInfo:     req.ContactInfo,
				GithubURL:       req.GithubURL,
				ImageURL:        req.ImageURL,
			},
		}
		result, err := s.ask(s.engine.GetBoardActor(), msg)
		s.respond(w, result, err)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseUUIDParam(r, "id")
	if err != nil {
		badRequest(w, "Invalid project id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		result, askErr := s.ask(s.engine.GetBoardActor(), &actors.GetProjectMsg{ProjectID: projectID})
		s.respond(w, result, askErr)

	case http.MethodPut:
		var update models.ProjectUpdate
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			badRequest(w, "Invalid request format")
			return
		}
		msg := &actors.UpdateProjectMsg{
			UserID:    middleware.CurrentUserID(r.Context()),
			ProjectID: projectID,
			Update:    &update,
		}
		result, askErr := s.ask(s.engine.GetBoardActor(), msg)
		s.respond(w, result, askErr)

	case http.MethodDelete:
		msg := &actors.DeleteProjectMsg{
			UserID:    middleware.CurrentUserID(r.Context()),
			ProjectID: projectID,
		}
		result, askErr := s.ask(s.engine.GetBoardActor(), msg)
		s.respond(w, result, askErr)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleVote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request format")
		return
	}

	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		badRequest(w, "Invalid projectId format")
		return
	}

	direction := models.VoteDirection(req.Direction)
	if direction != models.VoteUp && direction != models.VoteDown {
		badRequest(w, "Direction must be up or down")
		return
	}

	msg := &actors.VoteMsg{
		UserID:    middleware.CurrentUserID(r.Context()),
		ProjectID: projectID,
		Direction: direction,
	}
	result, askErr := s.ask(s.engine.GetBoardActor(), msg)
	s.respond(w, result, askErr)
}

func (s *Server) handleVoteStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	projectID, err := parseUUIDParam(r, "projectId")
	if err != nil {
		badRequest(w, "Invalid projectId")
		return
	}

	msg := &actors.GetVoteMsg{
		UserID:    middleware.CurrentUserID(r.Context()),
		ProjectID: projectID,
	}
	result, askErr := s.ask(s.engine.GetBoardActor(), msg)
	if askErr == nil {
		if direction, ok := result.(models.VoteDirection); ok {
			s.respond(w, map[string]string{"direction": string(direction)}, nil)
			return
		}
	}
	s.respond(w, result, askErr)
}

func (s *Server) handleComments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		projectID, err := parseUUIDParam(r, "projectId")
		if err != nil {
			badRequest(w, "Invalid projectId")
			return
		}

		// With a parentId this lists one thread's replies, oldest first.
		// Without, the project's top-level comments, newest first.
		if parentParam := r.URL.Query().Get("parentId"); parentParam != "" {
			parentID, err := uuid.Parse(parentParam)
			if err != nil {
				badRequest(w, "Invalid parentId format")
				return
			}
			result, askErr := s.ask(s.engine.GetCommentActor(), &actors.ListRepliesMsg{ProjectID: projectID, ParentID: parentID})
			s.respond(w, result, askErr)
			return
		}

		result, askErr := s.ask(s.engine.GetCommentActor(), &actors.ListTopLevelMsg{ProjectID: projectID})
		s.respond(w, result, askErr)

	case http.MethodPost:
		var req AddCommentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "Invalid request format")
			return
		}

		projectID, err := uuid.Parse(req.ProjectID)
		if err != nil {
			badRequest(w, "Invalid projectId format")
			return
		}

		var replyTo *uuid.UUID
		if req.ReplyTo != nil {
			parentID, err := uuid.Parse(*req.ReplyTo)
			if err != nil {
				badRequest(w, "Invalid replyTo format")
				return
			}
			replyTo = &parentID
		}

		msg := &actors.AddCommentMsg{
			UserID:    middleware.CurrentUserID(r.Context()),
			ProjectID: projectID,
			Text:      req.Text,
			ReplyTo:   replyTo,
		}
		result, askErr := s.ask(s.engine.GetCommentActor(), msg)
		s.respond(w, result, askErr)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleComment(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		commentID, err := parseUUIDParam(r, "id")
		if err != nil {
			badRequest(w, "Invalid comment id")
			return
		}
		result, askErr := s.ask(s.engine.GetCommentActor(), &actors.GetCommentMsg{CommentID: commentID})
		s.respond(w, result, askErr)

	case http.MethodPut:
		var req EditCommentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "Invalid request format")
			return
		}
		commentID, err := uuid.Parse(req.CommentID)
		if err != nil {
			badRequest(w, "Invalid commentId format")
			return
		}
		msg := &actors.EditCommentMsg{
			UserID:    middleware.CurrentUserID(r.Context()),
			CommentID: commentID,
			Text:      req.Text,
		}
		result, askErr := s.ask(s.engine.GetCommentActor(), msg)
		s.respond(w, result, askErr)

	case http.MethodDelete:
		commentID, err := parseUUIDParam(r, "id")
		if err != nil {
			badRequest(w, "Invalid comment id")
			return
		}
		msg := &actors.DeleteCommentMsg{
			UserID:    middleware.CurrentUserID(r.Context()),
			CommentID: commentID,
		}
		result, askErr := s.ask(s.engine.GetCommentActor(), msg)
		s.respond(w, result, askErr)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handlePinComment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req PinCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request format")
		return
	}
	commentID, err := uuid.Parse(req.CommentID)
	if err != nil {
		badRequest(w, "Invalid commentId format")
		return
	}

	msg := &actors.PinCommentMsg{
		UserID:    middleware.CurrentUserID(r.Context()),
		CommentID: commentID,
		Pinned:    req.Pinned,
	}
	result, askErr := s.ask(s.engine.GetCommentActor(), msg)
	s.respond(w, result, askErr)
}

func (s *Server) handleResolveComment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ResolveCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request format")
		return
	}
	commentID, err := uuid.Parse(req.CommentID)
	if err != nil {
		badRequest(w, "Invalid commentId format")
		return
	}

	msg := &actors.ResolveCommentMsg{
		UserID:    middleware.CurrentUserID(r.Context()),
		CommentID: commentID,
		Status:    models.CommentStatus(req.Status),
	}
	result, askErr := s.ask(s.engine.GetCommentActor(), msg)
	s.respond(w, result, askErr)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	msg := &actors.ListNotificationsMsg{
		UserID: middleware.CurrentUserID(r.Context()),
	}
	result, askErr := s.ask(s.engine.GetNotificationActor(), msg)
	s.respond(w, result, askErr)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "Invalid request format")
		return
	}
	notificationID, err := uuid.Parse(req.NotificationID)
	if err != nil {
		badRequest(w, "Invalid notificationId format")
		return
	}

	msg := &actors.MarkReadMsg{
		UserID:         middleware.CurrentUserID(r.Context()),
		NotificationID: notificationID,
	}
	result, askErr := s.ask(s.engine.GetNotificationActor(), msg)
	s.respond(w, result, askErr)
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	msg := &actors.MarkAllReadMsg{
		UserID: middleware.CurrentUserID(r.Context()),
	}
	result, askErr := s.ask(s.engine.GetNotificationActor(), msg)
	s.respond(w, result, askErr)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		userID, err := parseUUIDParam(r, "id")
		if err != nil {
			badRequest(w, "Invalid user id")
			return
		}
		profile, err := s.store.GetUserProfile(r.Context(), userID)
		if err != nil {
			if appErr, ok := err.(*utils.AppError); ok {
				s.respond(w, appErr, nil)
				return
			}
			s.respond(w, utils.NewRemoteError("failed to load profile", err), nil)
			return
		}
		s.respond(w, profile, nil)

	case http.MethodPut:
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			s.respond(w, utils.NewUnauthenticatedError(), nil)
			return
		}

		var req SaveProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "Invalid request format")
			return
		}
		if req.Username == "" {
			badRequest(w, "Username is required")
			return
		}

		profile := &models.UserProfile{
			ID:        userID,
			Username:  req.Username,
			AvatarURL: req.AvatarURL,
			Bio:       req.Bio,
			JoinedAt:  time.Now(),
		}
		if err := s.store.SaveUserProfile(r.Context(), profile); err != nil {
			if appErr, ok := err.(*utils.AppError); ok {
				s.respond(w, appErr, nil)
				return
			}
			s.respond(w, utils.NewRemoteError("failed to save profile", err), nil)
			return
		}
		s.respond(w, profile, nil)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by the CORS layer; the upgrade accepts any.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades the connection and starts streaming the
// user's notification feed. Browsers cannot set an Authorization header
// on the upgrade request, so the token also rides a query parameter.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		if token := r.URL.Query().Get("token"); token != "" {
			if claims, err := s.verifier.ValidateToken(token); err == nil {
				userID, ok = claims.UserID, claims.UserID != uuid.Nil
			}
		}
	}
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	client := &ws.Client{
		Hub:    s.hub,
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		Logger: s.logger,
	}
	s.hub.Register <- client

	go client.WritePump()
	go client.ReadPump()

	// Open (or replace) the live feed for this user; the first snapshot
	// arrives over the socket once the listener is ready.
	s.context.Send(s.engine.GetNotificationActor(), &actors.ListenNotificationsMsg{UserID: userID})
}
