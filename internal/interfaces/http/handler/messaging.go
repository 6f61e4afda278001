package handler

import (
	messagingapp "github.com/cryptonexus/backend/internal/application/messaging"
	"github.com/gin-gonic/gin"
)

// MessagingHandler handles conversation and message endpoints
type MessagingHandler struct {
	BaseHandler
	conversationService *messagingapp.ConversationService
}

// NewMessagingHandler creates a new MessagingHandler
func NewMessagingHandler(conversationService *messagingapp.ConversationService) *MessagingHandler {
	return &MessagingHandler{
		conversationService: conversationService,
	}
}

// ListConversations godoc
// @ID           listConversations
// @Summary      List own conversations
// @Description  Most recent activity first
// @Tags         messaging
// @Produce      json
// @Success      200 {object} APIResponse[[]messagingapp.ConversationResponse]
// @Security     BearerAuth
// @Router       /messaging/conversations [get]
func (h *MessagingHandler) ListConversations(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	convs, err := h.conversationService.List(c.Request.Context(), actor)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, convs)
}

// CreateConversation godoc
// @ID           createConversation
// @Summary      Start a conversation
// @Tags         messaging
// @Accept       json
// @Produce      json
// @Param        request body messagingapp.CreateConversationRequest true "Conversation"
// @Success      201 {object} APIResponse[messagingapp.ConversationResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /messaging/conversations [post]
func (h *MessagingHandler) CreateConversation(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req messagingapp.CreateConversationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	conv, err := h.conversationService.Create(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, conv)
}

// GetConversation godoc
// @ID           getConversation
// @Summary      Get a conversation
// @Tags         messaging
// @Produce      json
// @Param        id path string true "Conversation ID"
// @Success      200 {object} APIResponse[messagingapp.ConversationResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /messaging/conversations/{id} [get]
func (h *MessagingHandler) GetConversation(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	conv, err := h.conversationService.Get(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, conv)
}

// CreateForProduct godoc
// @ID           createProductConversation
// @Summary      Contact the vendor of a listing
// @Description  Reuses the existing conversation about the listing when there is one
// @Tags         messaging
// @Accept       json
// @Produce      json
// @Param        request body messagingapp.ProductConversationRequest true "Listing"
// @Success      200 {object} APIResponse[messagingapp.ConversationResponse] "Existing"
// @Success      201 {object} APIResponse[messagingapp.ConversationResponse] "Created"
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /messaging/conversations/create-product [post]
func (h *MessagingHandler) CreateForProduct(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req messagingapp.ProductConversationRequest
	if !h.bindJSON(c, &req) {
		return
	}

	conv, created, err := h.conversationService.CreateForProduct(c.Request.Context(), actor, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if created {
		h.Created(c, conv)
		return
	}
	h.Success(c, conv)
}

// GetForProduct godoc
// @ID           getProductConversation
// @Summary      Get the conversation about a listing
// @Tags         messaging
// @Produce      json
// @Param        product_id path string true "Product ID"
// @Success      200 {object} APIResponse[messagingapp.ConversationResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /messaging/conversations/product/{product_id} [get]
func (h *MessagingHandler) GetForProduct(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	productID, ok := h.parseUUIDParam(c, "product_id")
	if !ok {
		return
	}

	conv, err := h.conversationService.GetForProduct(c.Request.Context(), actor, productID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, conv)
}

// ListMessages godoc
// @ID           listMessages
// @Summary      List messages of a conversation
// @Tags         messaging
// @Produce      json
// @Param        id path string true "Conversation ID"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Items per page" default(50) maximum(100)
// @Success      200 {object} APIResponse[[]messagingapp.MessageResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /messaging/conversations/{id}/messages [get]
func (h *MessagingHandler) ListMessages(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var q messagingapp.MessageListQuery
	if !h.bindQuery(c, &q) {
		return
	}

	page, err := h.conversationService.ListMessages(c.Request.Context(), actor, id, q)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	paginated(&h.BaseHandler, c, page)
}

// SendMessage godoc
// @ID           sendMessage
// @Summary      Send a message
// @Tags         messaging
// @Accept       json
// @Produce      json
// @Param        id path string true "Conversation ID"
// @Param        request body messagingapp.SendMessageRequest true "Message"
// @Success      201 {object} APIResponse[messagingapp.MessageResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /messaging/conversations/{id}/messages [post]
func (h *MessagingHandler) SendMessage(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req messagingapp.SendMessageRequest
	if !h.bindJSON(c, &req) {
		return
	}

	msg, err := h.conversationService.Send(c.Request.Context(), actor, id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, msg)
}

// MarkRead godoc
// @ID           markConversationRead
// @Summary      Mark a conversation read
// @Description  Marks every message addressed to the caller as read
// @Tags         messaging
// @Produce      json
// @Param        id path string true "Conversation ID"
// @Success      200 {object} APIResponse[messagingapp.MarkReadResponse]
// @Failure      404 {object} ErrorResponse
// @Security     BearerAuth
// @Router       /messaging/conversations/{id}/mark-read [post]
func (h *MessagingHandler) MarkRead(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.parseUUIDParam(c, "id")
	if !ok {
		return
	}

	marked, err := h.conversationService.MarkRead(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, marked)
}
