package server

import (
	"errors"
	"net/http"

	"cleanproof/backend/model"
	"cleanproof/backend/server/api"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

var statusByKind = map[model.ErrorKind]int{
	model.KindDuplicateEvidence:       http.StatusConflict,
	model.KindAlreadyReportedToday:    http.StatusConflict,
	model.KindNotFound:                http.StatusNotFound,
	model.KindGeoMismatch:             http.StatusUnprocessableEntity,
	model.KindTimeWindowExceeded:      http.StatusUnprocessableEntity,
	model.KindInvalidArgument:         http.StatusBadRequest,
	model.KindCollaboratorUnavailable: http.StatusServiceUnavailable,
}

func statusFor(err error) int {
	if code, ok := statusByKind[model.KindOf(err)]; ok {
		return code
	}
	return http.StatusInternalServerError
}

// respondError writes domain errors with their kind and measurements and
// hides everything else behind a 500.
func respondError(c *gin.Context, endpoint string, err error) {
	var de *model.Error
	if !errors.As(err, &de) {
		log.Errorf("%s failed: %v", endpoint, err)
		c.JSON(http.StatusInternalServerError, api.ErrorResp{
			Error:   "internal",
			Message: "internal server error",
		})
		return
	}

	log.Infof("%s rejected: %v", endpoint, err)
	c.JSON(statusFor(err), api.ErrorResp{
		Error:   string(de.Kind),
		Message: de.Message,
		Details: de.Details,
	})
}

func badRequest(c *gin.Context, endpoint string, err error) {
	log.Warnf("Failed to get the argument in %s call: %v", endpoint, err)
	c.JSON(http.StatusBadRequest, api.ErrorResp{
		Error:   string(model.KindInvalidArgument),
		Message: err.Error(),
	})
}
