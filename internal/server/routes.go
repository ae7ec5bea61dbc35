package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes() {
	// --- ActivityPub ---
	s.echo.GET("/users/:identifier", s.handleActor)
	s.echo.GET("/users/:identifier/outbox", s.handleOutbox)
	s.echo.GET("/users/:identifier/followers", s.handleFollowers)
	s.echo.POST("/users/:identifier/inbox", s.handleInbox)
	s.echo.POST("/inbox", s.handleInbox)

	// --- Discovery ---
	s.echo.GET("/.well-known/webfinger", s.handleWebfinger)
	s.echo.GET("/.well-known/nodeinfo", s.handleNodeInfoLinks)
	s.echo.GET("/nodeinfo/2.0", s.handleNodeInfo)

	// --- Operations ---
	s.echo.GET("/heartbeat", s.handleHeartbeat)
	if s.deps.Metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.deps.Metrics.Handler()))
	}
}

// handleHeartbeat reports liveness and process uptime in seconds.
func (s *Server) handleHeartbeat(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Seconds(),
	})
}

const nodeInfoSchema = "http://nodeinfo.diaspora.software/ns/schema/2.0"

func (s *Server) handleNodeInfoLinks(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"links": []map[string]string{{
			"rel":  nodeInfoSchema,
			"href": s.deps.URLs.Origin() + "/nodeinfo/2.0",
		}},
	})
}

type nodeInfo struct {
	Version           string           `json:"version"`
	Software          nodeInfoSoftware `json:"software"`
	Protocols         []string         `json:"protocols"`
	Services          nodeInfoServices `json:"services"`
	OpenRegistrations bool             `json:"openRegistrations"`
	Usage             nodeInfoUsage    `json:"usage"`
	Metadata          map[string]any   `json:"metadata"`
}

type nodeInfoSoftware struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type nodeInfoServices struct {
	Inbound  []string `json:"inbound"`
	Outbound []string `json:"outbound"`
}

type nodeInfoUsage struct {
	Users struct {
		Total int `json:"total"`
	} `json:"users"`
}

// handleNodeInfo serves the nodeinfo 2.0 document with the live count of
// bridged users.
func (s *Server) handleNodeInfo(c echo.Context) error {
	total, err := s.deps.Users.Count(c.Request().Context())
	if err != nil {
		s.log.Error("count users", "error", err)
		return apiError(c, http.StatusInternalServerError, "InternalError", "Failed to count users")
	}

	doc := nodeInfo{
		Version:   "2.0",
		Software:  nodeInfoSoftware{Name: "primal-bridge", Version: Version},
		Protocols: []string{"activitypub"},
		Services:  nodeInfoServices{Inbound: []string{}, Outbound: []string{}},
		Metadata:  map[string]any{},
	}
	doc.Usage.Users.Total = total
	return jsonAs(c, http.StatusOK, "application/json; profile=\""+nodeInfoSchema+"#\"", doc)
}
