package handlers

import (
	"errors"
	"net/http"

	"taskboard-backend/pkg/database"
	"taskboard-backend/pkg/gateway"
	"taskboard-backend/pkg/utils"
)

// writeGatewayError maps gateway and store errors onto the response envelope.
// Authorization denials for unknown projects surface as 404, matching what
// the oracle reports for non-participants.
func writeGatewayError(w http.ResponseWriter, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		utils.WriteNotFoundResponse(w, notFoundMsg)
	case errors.Is(err, gateway.ErrForbidden):
		utils.WriteForbiddenResponse(w, "You do not have access to this project")
	case errors.Is(err, gateway.ErrInvalidOperation):
		utils.WriteInvalidOperationResponse(w, err.Error())
	case errors.Is(err, database.ErrConflict):
		utils.WriteConflictResponse(w, err.Error())
	case errors.Is(err, database.ErrUnavailable):
		utils.WriteBadGatewayResponse(w, "Storage backend unavailable")
	default:
		utils.WriteInternalServerErrorResponse(w, err.Error())
	}
}
