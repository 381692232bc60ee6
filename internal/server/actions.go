package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/swfcatalog/pkg/log"
)

const actionsPath = "/v2/actions"

func (s *Server) listActions(c *gin.Context) {
	status, body, err := s.fetch(
		c.Request.Context(), s.scaffolderURL+actionsPath,
	)
	if err != nil {
		s.logger.Error("Failed to list scaffolder actions", log.Error(err))
		upstreamError(c, err)
		return
	}
	c.Data(status, "application/json", body)
}

func (s *Server) executeAction(c *gin.Context) {
	s.logger.Debug("Scaffolder action requested",
		log.ActionID(c.Param("actionId")))
	c.Status(http.StatusOK)
}
