package server

import (
	"net/http"

	"github.com/beamlab/erdsim/internal/shared/id"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// StreamRun upgrades the connection and forwards the run's progress
// records as JSON until the stream terminates or the client goes away.
func (s *Server) StreamRun(c *gin.Context) {
	runID := id.RunID(c.Param("id"))
	records, cancel, err := s.manager.Subscribe(runID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	defer cancel()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// Reader goroutine: surfaces client disconnects while we write.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case rec, ok := <-records:
			if !ok {
				// Stream terminated; tell the client before closing.
				_ = conn.WriteJSON(gin.H{"type": "complete"})
				return
			}
			if err := conn.WriteJSON(rec); err != nil {
				return
			}
		case <-clientGone:
			return
		}
	}
}
