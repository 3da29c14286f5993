package api

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"

	"github.com/codeready-toolchain/streamweaver/pkg/event"
	"github.com/codeready-toolchain/streamweaver/pkg/filter"
)

// streamHandler serves GET /stream/:sessionId as Server-Sent Events.
// Last-Event-ID is read from the header first (a reconnecting EventSource
// sets it automatically), falling back to the ?lastEventId query parameter
// for clients that can't set headers (e.g. an initial deep link).
func (s *Server) streamHandler(c *gin.Context) {
	sessionID := c.Param("sessionId")

	if err := s.svc.CheckSessionExists(c.Request.Context(), sessionID); err != nil {
		respondServiceError(c, err)
		return
	}

	lastEventID := c.GetHeader("Last-Event-ID")
	if lastEventID == "" {
		lastEventID = c.Query("lastEventId")
	}

	f := filterFromQuery(c)

	useGzip := s.cfg.Compression.Enabled && strings.Contains(c.GetHeader("Accept-Encoding"), "gzip")

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Content-Type", "text/event-stream")
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Headers", "Cache-Control, Last-Event-ID")
	c.Header("X-Accel-Buffering", "no")
	if useGzip {
		c.Header("Content-Encoding", "gzip")
		c.Header("Access-Control-Expose-Headers", "Content-Encoding")
	}

	flusher, canFlush := c.Writer.(http.Flusher)

	emit := func(frame string) error {
		if useGzip && len(frame) >= s.cfg.Compression.Threshold {
			var buf bytes.Buffer
			gw := gzip.NewWriter(&buf)
			if _, err := gw.Write([]byte(frame)); err != nil {
				return err
			}
			if err := gw.Close(); err != nil {
				return err
			}
			if _, err := c.Writer.Write(buf.Bytes()); err != nil {
				return err
			}
		} else if _, err := c.Writer.Write([]byte(frame)); err != nil {
			return err
		}
		if canFlush {
			flusher.Flush()
		}
		return nil
	}

	if err := s.svc.Stream(c.Request.Context(), sessionID, lastEventID, f, emit); err != nil {
		// The client disconnected or the stream was superseded — both are
		// ordinary ends of an SSE connection's life, not request failures.
		return
	}
}

// filterFromQuery builds a visibility filter from a repeated ?visibility=
// query parameter, defaulting to the user-facing + live-UI audience when
// none is given — the same default the engine's synthesized connect event
// assumes.
func filterFromQuery(c *gin.Context) filter.Filter {
	values := c.QueryArray("visibility")
	if len(values) == 0 {
		return filter.LiveUI
	}
	vis := make([]event.Visibility, 0, len(values))
	for _, v := range values {
		vis = append(vis, event.Visibility(v))
	}
	return filter.Visibility(vis...)
}

// statusHandler serves GET /stream/:sessionId/status.
func (s *Server) statusHandler(c *gin.Context) {
	sessionID := c.Param("sessionId")

	data, err := s.svc.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	snap := data.Snapshot()
	queueStats := s.svc.QueueStats(sessionID)

	c.JSON(http.StatusOK, gin.H{
		"sessionId":    snap.ID,
		"status":       snap.Status,
		"progress":     progressString(snap.CompletedSteps, snap.TotalSteps),
		"currentStep":  snap.CurrentStep,
		"createdAt":    snap.CreatedAt,
		"lastActivity": snap.LastActivity,
		"queue": gin.H{
			"exists":  queueStats.Exists,
			"size":    queueStats.Size,
			"maxSize": queueStats.MaxSize,
			"dropped": queueStats.Dropped,
			"full":    queueStats.Full,
		},
	})
}

func progressString(completed, total int) string {
	return strconv.Itoa(completed) + "/" + strconv.Itoa(total)
}

// closeStreamRequest is the optional JSON body for POST .../close.
type closeStreamRequest struct {
	Reason string `json:"reason"`
}

// closeHandler serves POST /stream/:sessionId/close.
func (s *Server) closeHandler(c *gin.Context) {
	sessionID := c.Param("sessionId")

	if err := s.svc.CheckSessionExists(c.Request.Context(), sessionID); err != nil {
		respondServiceError(c, err)
		return
	}

	var req closeStreamRequest
	_ = c.ShouldBindJSON(&req)
	reason := req.Reason
	if reason == "" {
		reason = "Client requested closure"
	}

	ok, err := s.svc.CloseStream(c.Request.Context(), sessionID, reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   ok,
		"message":   "stream closed for session " + sessionID,
		"sessionId": sessionID,
		"reason":    reason,
	})
}

// replayHandler serves GET /stream/:sessionId/replay?after=<eventId>.
func (s *Server) replayHandler(c *gin.Context) {
	sessionID := c.Param("sessionId")

	if err := s.svc.CheckSessionExists(c.Request.Context(), sessionID); err != nil {
		respondServiceError(c, err)
		return
	}

	after := c.Query("after")
	if after == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required query parameter: after"})
		return
	}

	events := s.svc.ReplayEvents(sessionID, after)
	c.JSON(http.StatusOK, gin.H{
		"sessionId":  sessionID,
		"eventCount": len(events),
		"events":     events,
	})
}
