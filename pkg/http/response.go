package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// JSONResponse writes data as-is with the given status.
func JSONResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, data)
}

// SuccessResponse writes a 200 response.
func SuccessResponse(c echo.Context, data interface{}) error {
	return JSONResponse(c, http.StatusOK, data)
}

// CreatedResponse writes a 201 response.
func CreatedResponse(c echo.Context, data interface{}) error {
	return JSONResponse(c, http.StatusCreated, data)
}

// ErrorMessageResponse writes {"error": message}.
func ErrorMessageResponse(c echo.Context, statusCode int, message string) error {
	return c.JSON(statusCode, ErrorBody{Error: message})
}

// ErrorResponse maps err onto the error body. Non-AppErrors become a generic 500.
func ErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return ErrorMessageResponse(c, appErr.Status, appErr.Message)
	}
	return ErrorMessageResponse(c, http.StatusInternalServerError, "An unexpected error occurred: "+err.Error())
}

// HTTPErrorHandler renders echo's own errors (404 routes, 405, bind errors) in the error body shape.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok {
			msg = http.StatusText(he.Code)
		}
		_ = ErrorMessageResponse(c, he.Code, msg)
		return
	}
	_ = ErrorResponse(c, err)
}
