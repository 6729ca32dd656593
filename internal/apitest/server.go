// Package apitest provides an in-process fake of the backend log and
// license API for tests.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tinytelemetry/logdesk/internal/logparse"
	"github.com/tinytelemetry/logdesk/internal/model"
)

// timestampLayout matches the backend's log timestamps.
const timestampLayout = "2006-01-02T15:04:05.000"

// Server is a fake backend. Its handlers mirror the real service closely
// enough for client and controller tests, including the 400-with-body
// replies of the license endpoints and the history replay on stream connect.
type Server struct {
	mu       sync.Mutex
	logs     []model.LogEntry
	license  *model.LicenseInfo
	requests map[string]int
	failures map[string]int // path -> status code for the next request
	streams  map[chan model.LogEntry]chan struct{}

	streamDisabled bool

	engine *gin.Engine
	server *httptest.Server
}

func init() {
	gin.SetMode(gin.TestMode)
}

// New starts a fake backend on a loopback port.
func New() *Server {
	s := &Server{
		requests: make(map[string]int),
		failures: make(map[string]int),
		streams:  make(map[chan model.LogEntry]chan struct{}),
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.track)

	r.GET("/api/logs", s.handleLogs)
	r.POST("/api/logs/clear", s.handleClearLogs)
	r.GET("/api/logs/stream", s.handleStream)
	r.GET("/api/license/status", s.handleLicenseStatus)
	r.POST("/api/license/setup", s.handleLicenseSetup)
	r.POST("/api/license/verify", s.handleLicenseVerify)
	r.POST("/api/license/clear", s.handleLicenseClear)

	s.engine = r
	s.server = httptest.NewServer(r)
	return s
}

// URL returns the base URL of the fake backend.
func (s *Server) URL() string { return s.server.URL }

// Close drops open streams and stops the server.
func (s *Server) Close() {
	s.DropStreams()
	s.server.Close()
}

// AddLog appends a log line the way the backend does and pushes it to
// every connected stream.
func (s *Server) AddLog(content string) model.LogEntry {
	entry := model.LogEntry{
		Timestamp: time.Now().Format(timestampLayout),
		Content:   content,
		Type:      logparse.Classify(content),
	}

	s.mu.Lock()
	s.logs = append(s.logs, entry)
	for ch := range s.streams {
		select {
		case ch <- entry:
		default:
		}
	}
	s.mu.Unlock()
	return entry
}

// SetLogs replaces the log history without notifying streams.
func (s *Server) SetLogs(entries []model.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append([]model.LogEntry(nil), entries...)
}

// SetLicense installs license info. Nil removes the license.
func (s *Server) SetLicense(info *model.LicenseInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.license = info
}

// FailNext makes the next request to path answer with code and a
// non-JSON body.
func (s *Server) FailNext(path string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = code
}

// SetStreamEnabled toggles the push stream endpoint. Disabled streams
// answer 404.
func (s *Server) SetStreamEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamDisabled = !enabled
}

// DropStreams ends every open stream response.
func (s *Server) DropStreams() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch, drop := range s.streams {
		close(drop)
		delete(s.streams, ch)
	}
}

// StreamCount returns the number of connected stream subscribers.
func (s *Server) StreamCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

// Requests returns how many requests reached path.
func (s *Server) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

func (s *Server) track(c *gin.Context) {
	path := c.Request.URL.Path

	s.mu.Lock()
	s.requests[path]++
	code, fail := s.failures[path]
	if fail {
		delete(s.failures, path)
	}
	s.mu.Unlock()

	if fail {
		c.String(code, "injected failure")
		c.Abort()
		return
	}
	c.Next()
}

func (s *Server) handleLogs(c *gin.Context) {
	s.mu.Lock()
	logs := append([]model.LogEntry{}, s.logs...)
	s.mu.Unlock()

	c.JSON(http.StatusOK, model.LogsResponse{Logs: logs})
}

func (s *Server) handleClearLogs(c *gin.Context) {
	s.mu.Lock()
	s.logs = nil
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"mensagem": "logs cleared"})
}

func (s *Server) handleStream(c *gin.Context) {
	s.mu.Lock()
	if s.streamDisabled {
		s.mu.Unlock()
		c.Status(http.StatusNotFound)
		return
	}
	ch := make(chan model.LogEntry, 100)
	drop := make(chan struct{})
	s.streams[ch] = drop
	history := append([]model.LogEntry{}, s.logs...)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.streams, ch)
		s.mu.Unlock()
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	// The backend replays its whole history to every new subscriber.
	for _, entry := range history {
		writeEvent(c, entry)
	}
	c.Writer.Flush()

	for {
		select {
		case entry := <-ch:
			writeEvent(c, entry)
			c.Writer.Flush()
		case <-drop:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

func writeEvent(c *gin.Context, entry model.LogEntry) {
	data, _ := json.Marshal(entry)
	c.SSEvent("message", string(data))
}

func (s *Server) handleLicenseStatus(c *gin.Context) {
	s.mu.Lock()
	info := s.license
	s.mu.Unlock()

	resp := model.LicenseStatus{Message: "license not configured"}
	if info != nil {
		copied := *info
		resp.HasLicense = true
		resp.Info = &copied
		resp.IsValid = copied.IsActive
		if copied.IsActive {
			resp.Message = "license active"
		} else {
			resp.Message = "license inactive"
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleLicenseSetup(c *gin.Context) {
	var req model.SetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ActionResponse{Message: "invalid JSON"})
		return
	}
	if req.Token == "" {
		c.JSON(http.StatusBadRequest, model.ActionResponse{Message: "token is required"})
		return
	}
	if strings.HasPrefix(req.Token, "invalid") {
		c.JSON(http.StatusBadRequest, model.ActionResponse{Message: "invalid token"})
		return
	}

	now := time.Now().UTC().Format(time.RFC3339)
	s.SetLicense(&model.LicenseInfo{
		DeviceUUID: "7f3c2a10-0000-4000-8000-000000000001",
		IsActive:   true,
		CreatedAt:  now,
		LastCheck:  now,
	})
	c.JSON(http.StatusOK, model.ActionResponse{Success: true, Message: "license configured"})
}

func (s *Server) handleLicenseVerify(c *gin.Context) {
	s.mu.Lock()
	info := s.license
	s.mu.Unlock()

	if info == nil {
		c.JSON(http.StatusBadRequest, model.VerifyResponse{Message: "license not configured"})
		return
	}
	if !info.IsActive {
		c.JSON(http.StatusOK, model.VerifyResponse{Message: "license expired"})
		return
	}
	c.JSON(http.StatusOK, model.VerifyResponse{Valid: true, Message: "license verified"})
}

func (s *Server) handleLicenseClear(c *gin.Context) {
	s.SetLicense(nil)
	c.JSON(http.StatusOK, model.ActionResponse{Success: true, Message: "license removed"})
}
