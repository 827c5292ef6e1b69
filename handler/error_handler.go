package handler

import (
	"fmt"
	"go-websecurity-api/common"
	"net/http"
)

// ErrorHandlingMiddleware adapts an AppError-returning handler to
// http.HandlerFunc. Panics are reported as a generic 500.
func ErrorHandlingMiddleware(next func(http.ResponseWriter, *http.Request) *common.AppError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				common.InternalError(fmt.Errorf("panic: %v", rec)).Send(w)
			}
		}()
		if err := next(w, r); err != nil {
			err.Send(w)
		}
	}
}
