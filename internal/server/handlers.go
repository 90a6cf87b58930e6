package server

import (
	"errors"
	"net/http"

	"github.com/beamlab/erdsim/internal/mcerd"
	"github.com/beamlab/erdsim/internal/runner"
	"github.com/beamlab/erdsim/internal/shared/id"
	"github.com/beamlab/erdsim/internal/sim"
	"github.com/gin-gonic/gin"
)

// launchRequest is the body of POST /runs.
type launchRequest struct {
	// Base names the shared target/detector/foils/presimulation files.
	Base     string       `json:"base" binding:"required"`
	Settings sim.Settings `json:"settings" binding:"required"`
}

// collectRequest is the body of POST /runs/:id/collect.
type collectRequest struct {
	Destination string `json:"destination" binding:"required"`
	// RecoilOnly skips the main result file.
	RecoilOnly bool `json:"recoil_only"`
}

// Root returns service identification.
func (s *Server) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "erdsim",
		"status":  "running",
	})
}

// Health returns service health.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// ListRuns returns snapshots of all known runs.
func (s *Server) ListRuns(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"runs": s.manager.List()})
}

// LaunchRun stages and launches one simulation process.
func (s *Server) LaunchRun(c *gin.Context) {
	var req launchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	info, err := s.manager.Launch(c.Request.Context(), &req.Settings, req.Base)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, runner.ErrTooManyRuns) {
			status = http.StatusTooManyRequests
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, info)
}

// GetRun returns one run snapshot.
func (s *Server) GetRun(c *gin.Context) {
	info, err := s.manager.Get(id.RunID(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}

// StopRun terminates a run's process. Stopping a finished run succeeds.
func (s *Server) StopRun(c *gin.Context) {
	runID := id.RunID(c.Param("id"))
	if err := s.manager.Stop(runID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, runner.ErrRunNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": string(runID)})
}

// CollectRun copies result artifacts to the requested destination. A
// missing source file is reported distinctly so the caller can check the
// run state to tell "not yet" from "never produced".
func (s *Server) CollectRun(c *gin.Context) {
	runID := id.RunID(c.Param("id"))
	var req collectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var err error
	if req.RecoilOnly {
		err = s.manager.CollectRecoil(runID, req.Destination)
	} else {
		err = s.manager.Collect(runID, req.Destination)
	}
	if err != nil {
		switch {
		case errors.Is(err, runner.ErrRunNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, mcerd.ErrMissingSource):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "missing_source": true})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"collected": string(runID), "destination": req.Destination})
}

// DeleteRun stops a run, removes its staged and intermediate files and
// forgets it.
func (s *Server) DeleteRun(c *gin.Context) {
	runID := id.RunID(c.Param("id"))
	if err := s.manager.Remove(runID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, runner.ErrRunNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": string(runID)})
}
