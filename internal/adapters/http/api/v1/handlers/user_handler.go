package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/lifeleveling/lifeleveling/internal/domain"
	"github.com/lifeleveling/lifeleveling/internal/usecase"
	res "github.com/lifeleveling/lifeleveling/pkg/http"
)

type UserHandler struct {
	users usecase.UserService
}

func NewUserHandler(users usecase.UserService) *UserHandler { return &UserHandler{users: users} }

func (h *UserHandler) Create(c echo.Context) error {
	fields := domain.UserFields{}
	if err := c.Bind(&fields); err != nil {
		return badRequest(c)
	}
	user, err := h.users.Create(c.Request().Context(), fields)
	if err != nil {
		return userError(c, "create_failed", err)
	}
	return res.JSON(c, http.StatusCreated, user)
}

func (h *UserHandler) EditMe(c echo.Context) error {
	fields := domain.UserFields{}
	if err := c.Bind(&fields); err != nil {
		return badRequest(c)
	}
	if err := h.users.Edit(c.Request().Context(), fields); err != nil {
		return userError(c, "edit_failed", err)
	}
	return res.JSON(c, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *UserHandler) Fetch(c echo.Context) error {
	user, err := h.users.Fetch(c.Request().Context(), c.Param("id"))
	if err != nil {
		return userError(c, "fetch_failed", err)
	}
	return res.JSON(c, http.StatusOK, user)
}

func userError(c echo.Context, code string, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotAuthenticated):
		return res.ErrorJSON(c, http.StatusUnauthorized, "unauthorized", err.Error(), nil)
	case errors.Is(err, domain.ErrNotFound):
		return res.ErrorJSON(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, usecase.ErrNothingToUpdate):
		return res.ErrorJSON(c, http.StatusBadRequest, code, err.Error(), nil)
	default:
		return res.ErrorJSON(c, http.StatusBadGateway, code, err.Error(), nil)
	}
}
