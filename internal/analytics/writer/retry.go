package writer

import (
	"errors"
	"net/http"
	"slices"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var retryableHTTP = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

var retryableGRPC = map[codes.Code]bool{
	codes.Aborted:           true,
	codes.DeadlineExceeded:  true,
	codes.Internal:          true,
	codes.ResourceExhausted: true,
	codes.Unavailable:       true,
}

// retryable reports whether every failure inside err is transient. A batch
// with a single bad row is not retried since the row would fail again.
func retryable(err error) bool {
	var (
		rowErrs cbigquery.PutMultiError
		multi   cbigquery.MultiError
		apiErr  *googleapi.Error
		grpcErr interface{ GRPCStatus() *status.Status }
	)
	switch {
	case err == nil:
		return false
	case errors.As(err, &rowErrs):
		return len(rowErrs) > 0 && !slices.ContainsFunc(rowErrs, func(r cbigquery.RowInsertionError) bool {
			return !retryable(r.Errors)
		})
	case errors.As(err, &multi):
		return len(multi) > 0 && !slices.ContainsFunc(multi, func(e error) bool { return !retryable(e) })
	case errors.As(err, &apiErr):
		return retryableHTTP[apiErr.Code]
	case errors.As(err, &grpcErr):
		st := grpcErr.GRPCStatus()
		return st != nil && retryableGRPC[st.Code()]
	}
	return false
}
