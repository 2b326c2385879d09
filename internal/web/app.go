// Package web serves the InfraScan site: the landing page, the demo panel
// and its form and JSON endpoints, previews, live updates and metrics.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"infrascan/internal/config"
	"infrascan/internal/demo"
	"infrascan/internal/metrics"
	"infrascan/internal/middleware"
	"infrascan/internal/preview"
	"infrascan/internal/session"
	ws "infrascan/internal/websocket"
)

// SessionCookie names the cookie carrying the visitor's session ID
const SessionCookie = "infrascan_session"

const (
	ctxSessionID = "session_id"
	ctxWorkspace = "workspace"
)

// Deps are the collaborators the web front needs
type Deps struct {
	Config   config.Config
	Sessions *session.Manager
	Previews *preview.Registry
	Hub      *ws.Hub
	Metrics  *metrics.Registry
}

// App is the HTTP front
type App struct {
	cfg      config.Config
	sessions *session.Manager
	previews *preview.Registry
	hub      *ws.Hub
	metrics  *metrics.Registry
	now      func() time.Time

	echo *echo.Echo
}

// New builds the echo server and its routes
func New(d Deps) (*App, error) {
	if d.Sessions == nil || d.Previews == nil || d.Hub == nil {
		return nil, errors.New("web: sessions, previews and hub are required")
	}
	tmpl, err := NewTemplates()
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:      d.Config,
		sessions: d.Sessions,
		previews: d.Previews,
		hub:      d.Hub,
		metrics:  d.Metrics,
		now:      time.Now,
		echo:     echo.New(),
	}
	a.echo.HideBanner = true
	a.echo.HidePort = true
	a.echo.Renderer = tmpl
	a.routes()
	return a, nil
}

func (a *App) routes() {
	e := a.echo
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(a.metrics))

	e.GET("/healthz", a.handleHealth)
	e.GET("/metrics", a.metrics.TextHandler)
	e.GET("/metrics.json", a.metrics.JSONHandler)

	g := e.Group("", a.sessionMiddleware)
	g.GET("/", a.handleHome)
	g.GET("/demo/panel", a.handlePanel)
	g.POST("/demo/slots/:slot", a.handleSelectSlot)
	g.POST("/demo/analyze", a.handleAnalyze)
	g.GET("/api/demo/state", a.handleAPIState)
	g.POST("/api/demo/slots/:slot", a.handleAPISelectSlot)
	g.POST("/api/demo/analyze", a.handleAPIAnalyze)
	g.GET("/previews/:id", a.handlePreview)
	g.GET("/ws", a.handleWebSocket)
}

// Handler exposes the router, mainly for tests
func (a *App) Handler() http.Handler {
	return a.echo
}

// Start serves HTTP on the configured address until Shutdown
func (a *App) Start() error {
	err := a.echo.Start(a.cfg.Address)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for active requests
func (a *App) Shutdown(ctx context.Context) error {
	return a.echo.Shutdown(ctx)
}

// sessionMiddleware resolves the session cookie to a workspace, issuing a
// fresh session when the cookie is missing or no longer known.
func (a *App) sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		var cookieID string
		if ck, err := c.Cookie(SessionCookie); err == nil {
			cookieID = ck.Value
		}

		id, workspace, err := a.sessions.Acquire(req.Context(), cookieID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError).SetInternal(err)
		}
		if id != cookieID {
			c.SetCookie(&http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		logger := zerolog.Ctx(req.Context()).With().Str("session", id).Logger()
		c.SetRequest(req.WithContext(logger.WithContext(req.Context())))
		c.Set(ctxSessionID, id)
		c.Set(ctxWorkspace, workspace)
		return next(c)
	}
}

func sessionID(c echo.Context) string {
	id, _ := c.Get(ctxSessionID).(string)
	return id
}

func workspace(c echo.Context) *demo.Workspace {
	w, _ := c.Get(ctxWorkspace).(*demo.Workspace)
	return w
}

// NewWorkspaceFactory builds workspaces whose changes are pushed to the
// session's open pages through hub. opts are applied to every workspace.
func NewWorkspaceFactory(analyzer demo.Analyzer, previews demo.PreviewStore, hub *ws.Hub, opts ...demo.Option) session.Factory {
	return func(id string) *demo.Workspace {
		hook := demo.WithChangeHook(func(s demo.Snapshot) {
			hub.Publish(&ws.Message{
				Type:       ws.MsgStateChange,
				SessionID:  id,
				State:      s.State.String(),
				Generation: s.Generation,
			})
		})
		return demo.NewWorkspace(id, analyzer, previews, append([]demo.Option{hook}, opts...)...)
	}
}
