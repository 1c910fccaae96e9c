package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// success writes the success envelope, merging extra fields beside the
// message key.
func success(c echo.Context, extra map[string]interface{}) error {
	body := map[string]interface{}{"message": "success"}
	for k, v := range extra {
		body[k] = v
	}
	return c.JSON(http.StatusOK, body)
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]interface{}{"message": message})
}

func serverError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{"message": message})
}
