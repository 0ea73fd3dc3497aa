// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package chat

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/foundersbase/internal/platform/middleware"
	requestutil "github.com/taibuivan/foundersbase/internal/platform/request"
	"github.com/taibuivan/foundersbase/internal/platform/respond"
	"github.com/taibuivan/foundersbase/internal/platform/validate"
	"github.com/taibuivan/foundersbase/pkg/pagination"
)

// # Definitions & Constructors

// Handler implements the REST side of direct messaging.
type Handler struct {
	chatService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{chatService: service}
}

// Routes returns a [chi.Router] with chat routes. Every route requires authentication.
//
// # Endpoints
//   - GET  /conversations                       : Inbox, most recent first.
//   - GET  /messages/{username}                 : History with a user (?before=&limit=).
//   - POST /send                                : Send a message.
//   - POST /conversations/{username}/ensure     : Open a conversation without sending.
//   - POST /conversations/{username}/mark-read  : Mark everything from a user as read.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth)

	router.Get("/conversations", handler.listConversations)
	router.Get("/messages/{username}", handler.listMessages)
	router.Post("/send", handler.send)
	router.Post("/conversations/{username}/ensure", handler.ensure)
	router.Post("/conversations/{username}/mark-read", handler.markRead)

	return router
}

// # Request Payloads

type sendRequest struct {
	To      string `json:"to"`
	Content string `json:"content"`
}

// # Handlers

func (handler *Handler) listConversations(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	conversations, err := handler.chatService.ListConversations(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, conversations)
}

/*
GET /api/v1/chat/messages/{username}

Response:
  - 200: []MessageView oldest first, with a next_cursor when the page is full
  - 404: NOT_FOUND: Unknown user
*/
func (handler *Handler) listMessages(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	cursor := pagination.FromRequest(request)

	messages, err := handler.chatService.ListMessagesWith(request.Context(), userID, requestutil.Param(request, "username"), cursor)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	meta := pagination.Meta{Limit: cursor.Limit}
	if len(messages) > 0 {
		meta = pagination.NewMeta(cursor.Limit, len(messages), messages[0].CreatedAt)
	}

	respond.Paginated(writer, messages, meta)
}

/*
POST /api/v1/chat/send

Request:
  - Body: sendRequest (To, Content)

Response:
  - 201: MessageView
  - 400: VALIDATION_ERROR
  - 404: NOT_FOUND: Unknown recipient
*/
func (handler *Handler) send(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input sendRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := (&validate.Validator{}).Required(FieldTo, input.To).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	message, err := handler.chatService.SendTo(request.Context(), userID, input.To, input.Content)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, message)
}

func (handler *Handler) ensure(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	summary, err := handler.chatService.Ensure(request.Context(), userID, requestutil.Param(request, "username"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, summary)
}

func (handler *Handler) markRead(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.chatService.MarkReadWith(request.Context(), userID, requestutil.Param(request, "username")); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}
