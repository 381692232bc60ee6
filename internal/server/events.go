package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/swfcatalog/pkg/api"
	"github.com/kode4food/swfcatalog/pkg/log"
)

// publishableTopics lists the topics external callers may raise. Catalog
// snapshot events only come from the provider's own sinks
var publishableTopics = map[string]bool{
	api.WorkflowTopic: true,
}

func (s *Server) publishEvent(c *gin.Context) {
	topic := c.Param("topic")
	if !publishableTopics[topic] {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %s", ErrUnsupportedTopic, topic),
			Status: http.StatusBadRequest,
		})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  err.Error(),
			Status: http.StatusBadRequest,
		})
		return
	}
	if len(body) > 0 && !json.Valid(body) {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{
			Error:  ErrInvalidEventBody.Error(),
			Status: http.StatusBadRequest,
		})
		return
	}

	ev := &api.EventParams{Topic: topic}
	if len(body) > 0 {
		ev.Payload = body
	}
	if err := s.broker.Publish(c.Request.Context(), ev); err != nil {
		s.logger.Error("Failed to publish event",
			log.Topic(topic), log.Error(err))
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{
			Error:  fmt.Sprintf("%s: %v", ErrPublishEvent, err),
			Status: http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusAccepted, api.EventPublishedResponse{Topic: topic})
}
