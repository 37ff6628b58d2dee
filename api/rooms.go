package api

import (
	"net/http"

	"github.com/Domenick1991/staybooking/internal/domain"
	"github.com/gin-gonic/gin"
)

// RoomTypeHandler serves the options of the booking form's room select.
type RoomTypeHandler struct{}

func NewRoomTypeHandler() *RoomTypeHandler {
	return &RoomTypeHandler{}
}

func (h *RoomTypeHandler) Register(router *gin.RouterGroup) {
	router.GET("", h.list)
}

func (h *RoomTypeHandler) list(c *gin.Context) {
	types := domain.RoomTypes()
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	c.JSON(http.StatusOK, gin.H{"room_types": out})
}
