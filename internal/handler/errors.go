package handler

import (
	"log"
	"net/http"

	"github.com/finchbank/ledger-service/internal/ledger"
	"github.com/finchbank/ledger-service/internal/middleware"
	"github.com/gin-gonic/gin"
)

// respondLedgerError maps stable ledger error kinds to transport codes.
// Internal failures are logged and masked behind a generic message.
func respondLedgerError(c *gin.Context, err error, fallback string) {
	switch ledger.KindOf(err) {
	case ledger.KindValidation:
		middleware.RespondWithError(c, http.StatusBadRequest, err.Error())
	case ledger.KindNotFound:
		middleware.RespondWithError(c, http.StatusNotFound, err.Error())
	case ledger.KindForbidden:
		middleware.RespondWithError(c, http.StatusForbidden, err.Error())
	case ledger.KindInvalidState, ledger.KindConflict:
		middleware.RespondWithError(c, http.StatusConflict, err.Error())
	case ledger.KindInsufficientBalance:
		middleware.RespondWithError(c, http.StatusUnprocessableEntity, err.Error())
	case ledger.KindAllocationExhausted:
		middleware.RespondWithError(c, http.StatusServiceUnavailable, err.Error())
	default:
		log.Printf("%s: %v", fallback, err)
		middleware.RespondWithError(c, http.StatusInternalServerError, fallback)
	}
}
