package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"coreon/internal/coordinator"
	"coreon/internal/storage"
)

type chatResponse struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

type messageResponse struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chat_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	ModelName *string   `json:"model_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type createChatRequest struct {
	Title string `json:"title"`
}

type renameChatRequest struct {
	Title string `json:"title" binding:"required"`
}

type respondRequest struct {
	Content string `json:"content" binding:"required"`
	Role    string `json:"role"`
}

func toChatResponse(c storage.Chat) chatResponse {
	return chatResponse{ID: c.ID, Title: c.Title, CreatedAt: c.CreatedAt, LastActiveAt: c.LastActiveAt}
}

func toMessageResponse(m storage.Message) messageResponse {
	return messageResponse{ID: m.ID, ChatID: m.ChatID, Role: m.Role, Content: m.Content, ModelName: m.ModelName, CreatedAt: m.CreatedAt}
}

func errJSON(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func chatIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		errJSON(c, http.StatusBadRequest, "invalid chat id")
		return 0, false
	}
	return id, true
}

func (s *Server) createChat(c *gin.Context) {
	var req createChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	chat, err := s.store.CreateChat(c.Request.Context(), req.Title)
	if err != nil {
		s.logger.Error().Err(err).Msg("create chat failed")
		errJSON(c, http.StatusInternalServerError, "failed to create chat")
		return
	}
	c.JSON(http.StatusCreated, toChatResponse(chat))
}

func (s *Server) listChats(c *gin.Context) {
	chats, err := s.store.ListChats(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("list chats failed")
		errJSON(c, http.StatusInternalServerError, "failed to list chats")
		return
	}

	out := make([]chatResponse, 0, len(chats))
	for _, chat := range chats {
		out = append(out, toChatResponse(chat))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) renameChat(c *gin.Context) {
	id, ok := chatIDParam(c)
	if !ok {
		return
	}
	var req renameChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errJSON(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.RenameChat(c.Request.Context(), id, req.Title); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			errJSON(c, http.StatusNotFound, "chat not found")
			return
		}
		s.logger.Error().Err(err).Int64("chat_id", id).Msg("rename chat failed")
		errJSON(c, http.StatusInternalServerError, "failed to rename chat")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteChat(c *gin.Context) {
	id, ok := chatIDParam(c)
	if !ok {
		return
	}

	if err := s.store.DeleteChat(c.Request.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			errJSON(c, http.StatusNotFound, "chat not found")
			return
		}
		s.logger.Error().Err(err).Int64("chat_id", id).Msg("delete chat failed")
		errJSON(c, http.StatusInternalServerError, "failed to delete chat")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listMessages(c *gin.Context) {
	id, ok := chatIDParam(c)
	if !ok {
		return
	}

	if _, err := s.store.GetChat(c.Request.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			errJSON(c, http.StatusNotFound, "chat not found")
			return
		}
		s.logger.Error().Err(err).Int64("chat_id", id).Msg("get chat failed")
		errJSON(c, http.StatusInternalServerError, "failed to load chat")
		return
	}

	msgs, err := s.store.ListMessages(c.Request.Context(), id)
	if err != nil {
		s.logger.Error().Err(err).Int64("chat_id", id).Msg("list messages failed")
		errJSON(c, http.StatusInternalServerError, "failed to list messages")
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) respondPersistent(c *gin.Context) {
	id, ok := chatIDParam(c)
	if !ok {
		return
	}
	s.respond(c, coordinator.Persistent(id))
}

func (s *Server) respondVolatile(c *gin.Context) {
	s.respond(c, coordinator.Volatile())
}
