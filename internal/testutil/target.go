package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

// Target is an in-process fake of an RFP-style HTTP API used as the system
// under test in engine and CLI tests.
//
// Routes:
//
//	GET  /api/health         {"status":"ok"}
//	GET  /api/portals        list of portals
//	GET  /api/rfps?limit=N   list of RFPs, newest last, at most N (default 20)
//	POST /api/rfps           create; 400 without a title
//	GET  /api/rfps/:id       one RFP or 404
//	POST /api/session        log in as {"user": ...}; sets a session cookie
//	GET  /api/session        current user from the cookie or 401
//	GET  /api/flaky          503 while flaky failures remain, then 200
//	GET  /api/slow           responds after SlowDelay or when the client gives up
type Target struct {
	Echo   *echo.Echo
	Server *httptest.Server

	// SlowDelay is how long /api/slow takes to answer.
	SlowDelay time.Duration

	mu    sync.Mutex
	rfps  map[string]map[string]any
	order []string
	seq   int
	flaky int

	requests atomic.Int64
}

// NewTarget starts a fake target. It is shut down when the test ends.
func NewTarget(t testing.TB) *Target {
	t.Helper()

	tg := &Target{
		rfps:      make(map[string]map[string]any),
		SlowDelay: 5 * time.Second,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tg.requests.Add(1)
			return next(c)
		}
	})

	e.GET("/api/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/api/portals", tg.listPortals)
	e.GET("/api/rfps", tg.listRFPs)
	e.POST("/api/rfps", tg.createRFP)
	e.GET("/api/rfps/:id", tg.getRFP)
	e.POST("/api/session", tg.login)
	e.GET("/api/session", tg.whoami)
	e.GET("/api/flaky", tg.flakyHandler)
	e.GET("/api/slow", tg.slow)

	tg.Echo = e
	tg.Server = httptest.NewServer(e)
	t.Cleanup(tg.Server.Close)
	return tg
}

// URL returns the base URL of the target.
func (tg *Target) URL() string {
	return tg.Server.URL
}

// SetFlaky makes the next n requests to /api/flaky answer 503.
func (tg *Target) SetFlaky(n int) {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	tg.flaky = n
}

// RFPCount returns how many RFPs have been created.
func (tg *Target) RFPCount() int {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	return len(tg.order)
}

// Requests returns how many requests the target has served.
func (tg *Target) Requests() int64 {
	return tg.requests.Load()
}

func (tg *Target) listPortals(c echo.Context) error {
	return c.JSON(http.StatusOK, []map[string]any{
		{"id": "portal-12345", "name": "City Procurement", "active": true},
		{"id": "portal-67890", "name": "County Bids", "active": false},
	})
}

func (tg *Target) listRFPs(c echo.Context) error {
	limit := 20
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		}
		limit = n
	}

	tg.mu.Lock()
	defer tg.mu.Unlock()
	out := make([]map[string]any, 0, limit)
	for _, id := range tg.order {
		if len(out) == limit {
			break
		}
		out = append(out, tg.rfps[id])
	}
	return c.JSON(http.StatusOK, out)
}

type createRFPRequest struct {
	Title    string `json:"title"`
	PortalID string `json:"portalId"`
	Status   string `json:"status"`
}

func (tg *Target) createRFP(c echo.Context) error {
	var req createRFPRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "title is required"})
	}
	if req.Status == "" {
		req.Status = "open"
	}

	tg.mu.Lock()
	defer tg.mu.Unlock()
	tg.seq++
	id := fmt.Sprintf("rfp-%d", tg.seq)
	rfp := map[string]any{
		"id":       id,
		"title":    req.Title,
		"portalId": req.PortalID,
		"status":   req.Status,
	}
	tg.rfps[id] = rfp
	tg.order = append(tg.order, id)
	return c.JSON(http.StatusCreated, rfp)
}

func (tg *Target) getRFP(c echo.Context) error {
	tg.mu.Lock()
	defer tg.mu.Unlock()
	rfp, ok := tg.rfps[c.Param("id")]
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "rfp not found"})
	}
	return c.JSON(http.StatusOK, rfp)
}

func (tg *Target) login(c echo.Context) error {
	var req struct {
		User string `json:"user"`
	}
	if err := c.Bind(&req); err != nil || req.User == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user is required"})
	}
	c.SetCookie(&http.Cookie{Name: "sid", Value: req.User, Path: "/"})
	return c.JSON(http.StatusOK, map[string]string{"user": req.User})
}

func (tg *Target) whoami(c echo.Context) error {
	cookie, err := c.Cookie("sid")
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "not logged in"})
	}
	return c.JSON(http.StatusOK, map[string]string{"user": cookie.Value})
}

func (tg *Target) flakyHandler(c echo.Context) error {
	tg.mu.Lock()
	fail := tg.flaky > 0
	if fail {
		tg.flaky--
	}
	tg.mu.Unlock()

	if fail {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "try again"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (tg *Target) slow(c echo.Context) error {
	select {
	case <-time.After(tg.SlowDelay):
		return c.JSON(http.StatusOK, map[string]string{"status": "late"})
	case <-c.Request().Context().Done():
		return nil
	}
}
