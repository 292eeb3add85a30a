// Package control exposes the running sweep over HTTP so an operator can
// inspect the position and request or withdraw a stop at the next segment
// boundary.
package control

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ohleck/gr-analyzer/sweep"
)

const (
	statusEndpoint = "/analyzer/v1/status"
	exitEndpoint   = "/analyzer/v1/exit"
)

type statusResponse struct {
	StepIndex int64   `json:"stepIndex"`
	Segment   int64   `json:"segment"`
	FreqHz    float64 `json:"freqHz"`
	Done      bool    `json:"done"`
	Exit      bool    `json:"exitAfterComplete"`
}

type exitResponse struct {
	Exit bool `json:"exitAfterComplete"`
}

// NewRouter builds the control API for one controller. The exit flag
// operations are idempotent, so repeated requests are harmless.
func NewRouter(ctrl *sweep.Controller) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET(statusEndpoint, func(c *gin.Context) {
		st := ctrl.Status()
		c.JSON(http.StatusOK, statusResponse{
			StepIndex: st.StepIndex,
			Segment:   st.Segment,
			FreqHz:    st.FreqHz,
			Done:      st.Done,
			Exit:      ctrl.ExitAfterComplete(),
		})
	})
	r.GET(exitEndpoint, func(c *gin.Context) {
		c.JSON(http.StatusOK, exitResponse{Exit: ctrl.ExitAfterComplete()})
	})
	r.POST(exitEndpoint, func(c *gin.Context) {
		ctrl.SetExitAfterComplete()
		c.JSON(http.StatusOK, exitResponse{Exit: true})
	})
	r.DELETE(exitEndpoint, func(c *gin.Context) {
		ctrl.ClearExitAfterComplete()
		c.JSON(http.StatusOK, exitResponse{Exit: false})
	})

	return r
}
