package s3

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/hupe1980/stash"
)

// Error codes that signal an existing object on a conditional write.
const (
	codePreconditionFailed         = "PreconditionFailed"
	codeConditionalRequestConflict = "ConditionalRequestConflict"
)

// isNotFound reports whether err means the key or bucket does not exist.
func isNotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return true
		}
	}
	return httpStatus(err) == http.StatusNotFound
}

// isConflict reports whether a conditional write failed because the object exists.
func isConflict(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == codePreconditionFailed || code == codeConditionalRequestConflict
	}
	status := httpStatus(err)
	return status == http.StatusPreconditionFailed || status == http.StatusConflict
}

func isBucketOwned(err error) bool {
	var owned *types.BucketAlreadyOwnedByYou
	if errors.As(err, &owned) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "BucketAlreadyOwnedByYou"
}

func httpStatus(err error) int {
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode()
	}
	return 0
}

// translateError maps SDK errors into *stash.Error.
func translateError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var se *stash.Error
	if errors.As(err, &se) {
		return err
	}
	return stash.NewError(Name, op, path, classify(err), err)
}

func classify(err error) stash.Kind {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return stash.KindTransient
	}
	if isNotFound(err) {
		return stash.KindNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch", "AllAccessDisabled":
			return stash.KindPermission
		case "SlowDown", "RequestTimeout", "InternalError", "ServiceUnavailable", "RequestTimeTooSkewed":
			return stash.KindTransient
		case "InvalidBucketName", "InvalidArgument", "KeyTooLongError", "InvalidObjectName":
			return stash.KindInvalidInput
		}
	}

	switch status := httpStatus(err); {
	case status == http.StatusForbidden || status == http.StatusUnauthorized:
		return stash.KindPermission
	case status == http.StatusTooManyRequests || status >= 500:
		return stash.KindTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return stash.KindTransient
	}
	return stash.KindBackend
}
