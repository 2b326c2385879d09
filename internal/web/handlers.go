package web

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"infrascan/internal/demo"
	"infrascan/internal/models"
	"infrascan/internal/preview"
)

// Form error codes carried in the redirect after a rejected upload
const (
	errCodeSlot     = "slot"
	errCodeMissing  = "missing"
	errCodeTooLarge = "too_large"
	errCodeNotImage = "not_image"
	errCodeEmpty    = "empty"
	errCodeDims     = "dimensions"
	errCodeUpload   = "upload"
)

var formErrors = map[string]string{
	errCodeSlot:     "Unknown image slot.",
	errCodeMissing:  "Choose an image to upload.",
	errCodeTooLarge: "That file is too large.",
	errCodeNotImage: "That file is not an image.",
	errCodeEmpty:    "That file is empty.",
	errCodeDims:     "That image's dimensions are too large.",
	errCodeUpload:   "The upload could not be processed. Please try again.",
}

// uploadError is an intake rejection with its form code and API status
type uploadError struct {
	code   string
	status int
	err    error
}

func (e *uploadError) Error() string {
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *uploadError) Unwrap() error {
	return e.err
}

func (a *App) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"sessions": a.sessions.Len(),
		"previews": a.previews.Len(),
	})
}

func (a *App) pageData(c echo.Context) pageData {
	return pageData{
		Snapshot: workspace(c).Snapshot(),
		Error:    formErrors[c.QueryParam("error")],
		Year:     a.now().Year(),
	}
}

func (a *App) handleHome(c echo.Context) error {
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.Render(http.StatusOK, "page", a.pageData(c))
}

func (a *App) handlePanel(c echo.Context) error {
	c.Response().Header().Set("Cache-Control", "no-store")
	return c.Render(http.StatusOK, "panel", a.pageData(c))
}

// readUpload reads the "image" part of the slot form and stores it in the
// workspace
func (a *App) readUpload(c echo.Context) *uploadError {
	slot, ok := models.ParseSlot(c.Param("slot"))
	if !ok {
		return &uploadError{errCodeSlot, http.StatusNotFound, demo.ErrUnknownSlot}
	}

	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, a.cfg.MaxUploadBytes)

	fh, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return &uploadError{errCodeTooLarge, http.StatusRequestEntityTooLarge, err}
		case errors.Is(err, http.ErrMissingFile):
			return &uploadError{errCodeMissing, http.StatusBadRequest, err}
		default:
			return &uploadError{errCodeUpload, http.StatusBadRequest, err}
		}
	}
	if fh.Size > a.cfg.MaxUploadBytes {
		return &uploadError{errCodeTooLarge, http.StatusRequestEntityTooLarge, fmt.Errorf("file is %d bytes", fh.Size)}
	}

	f, err := fh.Open()
	if err != nil {
		return &uploadError{errCodeUpload, http.StatusBadRequest, err}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return &uploadError{errCodeUpload, http.StatusBadRequest, err}
	}

	file := models.ImageFile{Name: fh.Filename, Data: data}
	if err := workspace(c).SelectImage(req.Context(), slot, file); err != nil {
		switch {
		case errors.Is(err, demo.ErrNotAnImage):
			return &uploadError{errCodeNotImage, http.StatusUnsupportedMediaType, err}
		case errors.Is(err, demo.ErrImageTooLarge), errors.Is(err, preview.ErrTooManyPixels):
			return &uploadError{errCodeDims, http.StatusRequestEntityTooLarge, err}
		case errors.Is(err, demo.ErrEmptyFile):
			return &uploadError{errCodeEmpty, http.StatusBadRequest, err}
		case errors.Is(err, demo.ErrUnknownSlot):
			return &uploadError{errCodeSlot, http.StatusNotFound, err}
		default:
			return &uploadError{errCodeUpload, http.StatusInternalServerError, err}
		}
	}
	return nil
}

func (a *App) handleSelectSlot(c echo.Context) error {
	if uerr := a.readUpload(c); uerr != nil {
		log.Ctx(c.Request().Context()).Warn().Err(uerr).Msg("upload rejected")
		return c.Redirect(http.StatusSeeOther, "/?error="+url.QueryEscape(uerr.code)+"#demo")
	}
	return c.Redirect(http.StatusSeeOther, "/#demo")
}

func (a *App) handleAPISelectSlot(c echo.Context) error {
	if uerr := a.readUpload(c); uerr != nil {
		log.Ctx(c.Request().Context()).Warn().Err(uerr).Msg("upload rejected")
		return c.JSON(uerr.status, map[string]string{
			"error":   uerr.code,
			"message": formErrors[uerr.code],
		})
	}
	return c.JSON(http.StatusOK, workspace(c).Snapshot())
}

func (a *App) handleAnalyze(c echo.Context) error {
	if _, ok := workspace(c).Start(c.Request().Context()); !ok {
		log.Ctx(c.Request().Context()).Debug().Msg("analyze ignored")
	}
	return c.Redirect(http.StatusSeeOther, "/#demo")
}

func (a *App) handleAPIAnalyze(c echo.Context) error {
	w := workspace(c)
	if _, ok := w.Start(c.Request().Context()); !ok {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":    "analysis not permitted",
			"snapshot": w.Snapshot(),
		})
	}
	return c.JSON(http.StatusAccepted, w.Snapshot())
}

func (a *App) handleAPIState(c echo.Context) error {
	return c.JSON(http.StatusOK, workspace(c).Snapshot())
}

func (a *App) handlePreview(c echo.Context) error {
	p, ok := a.previews.Get(c.Param("id"))
	if !ok || p.Owner != sessionID(c) {
		return echo.NewHTTPError(http.StatusNotFound, "preview not found")
	}
	c.Response().Header().Set("Cache-Control", "private, max-age=3600")
	return c.Blob(http.StatusOK, p.ContentType, p.Data)
}

func (a *App) handleWebSocket(c echo.Context) error {
	if err := a.hub.Serve(c.Response(), c.Request(), sessionID(c)); err != nil {
		// the upgrader has already written the error response
		log.Ctx(c.Request().Context()).Debug().Err(err).Msg("websocket upgrade failed")
	}
	return nil
}
