package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/pipeline_backend/models"
)

type AuthHandler struct {
	credentials *models.Credentials
}

func (h *AuthHandler) Register(c *gin.Context) {
	var input models.NewUser
	if !bindJSON(c, &input, false) {
		return
	}
	result, err := h.credentials.Register(c.Request.Context(), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var input models.LoginInput
	if !bindJSON(c, &input, false) {
		return
	}
	result, err := h.credentials.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *AuthHandler) Me(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, principal)
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return
	}
	var input models.ChangePasswordInput
	if !bindJSON(c, &input, false) {
		return
	}
	if err := h.credentials.ChangePassword(c.Request.Context(), principal, input); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}
