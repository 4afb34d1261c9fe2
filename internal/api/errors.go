package api

import (
	"strconv"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/MS-092/DS-RM-FP/internal/utils"
)

// ErrorDomain tags the error details this service attaches to statuses.
const ErrorDomain = "ftcontroller.v1"

const retryableKey = "retryable"

// StatusWithKind returns a status error that carries the controller error kind
// and whether the caller may retry. An empty kind yields a plain status.
func StatusWithKind(code codes.Code, msg string, kind utils.ErrorKind, retryable bool) error {
	st := status.New(code, msg)
	if kind == "" {
		return st.Err()
	}
	detailed, err := st.WithDetails(&errdetails.ErrorInfo{
		Reason:   string(kind),
		Domain:   ErrorDomain,
		Metadata: map[string]string{retryableKey: strconv.FormatBool(retryable)},
	})
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}

// ErrorKind reads the error kind and retryability from st. Statuses without
// details fall back to the kind implied by their code.
func ErrorKind(st *status.Status) (utils.ErrorKind, bool) {
	for _, detail := range st.Details() {
		info, ok := detail.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != ErrorDomain {
			continue
		}
		retryable, _ := strconv.ParseBool(info.GetMetadata()[retryableKey])
		return utils.ErrorKind(info.GetReason()), retryable
	}
	switch st.Code() {
	case codes.InvalidArgument:
		return utils.KindValidation, false
	case codes.Aborted:
		return utils.KindConflict, false
	case codes.Unavailable, codes.DeadlineExceeded:
		return utils.KindTransport, true
	case codes.FailedPrecondition:
		return utils.KindBackend, false
	}
	return "", false
}
