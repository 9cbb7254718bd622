package azure

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/hupe1980/stash"
)

func isNotFound(err error) bool {
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound, bloberror.ResourceNotFound) {
		return true
	}
	return statusCode(err) == http.StatusNotFound
}

// isConflict reports a failed If-None-Match upload.
func isConflict(err error) bool {
	if bloberror.HasCode(err, bloberror.BlobAlreadyExists, bloberror.ConditionNotMet) {
		return true
	}
	s := statusCode(err)
	return s == http.StatusConflict || s == http.StatusPreconditionFailed
}

func statusCode(err error) int {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return 0
}

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
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return stash.KindTransient
	case isNotFound(err):
		return stash.KindNotFound
	case bloberror.HasCode(err, bloberror.AuthenticationFailed, bloberror.AuthorizationFailure,
		bloberror.AuthorizationPermissionMismatch, bloberror.InsufficientAccountPermissions):
		return stash.KindPermission
	case bloberror.HasCode(err, bloberror.ServerBusy, bloberror.InternalError, bloberror.OperationTimedOut):
		return stash.KindTransient
	case bloberror.HasCode(err, bloberror.InvalidResourceName, bloberror.InvalidInput, bloberror.InvalidURI):
		return stash.KindInvalidInput
	}

	switch s := statusCode(err); {
	case s == http.StatusForbidden || s == http.StatusUnauthorized:
		return stash.KindPermission
	case s == http.StatusTooManyRequests || s >= 500:
		return stash.KindTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return stash.KindTransient
	}
	return stash.KindBackend
}

// responseError builds the error azblob returns for a failed request.
func responseError(code bloberror.Code, status int) error {
	req, _ := http.NewRequest(http.MethodGet, "https://blob.invalid/", nil)
	return &azcore.ResponseError{
		ErrorCode:  string(code),
		StatusCode: status,
		RawResponse: &http.Response{
			StatusCode: status,
			Status:     http.StatusText(status),
			Header:     http.Header{},
			Body:       http.NoBody,
			Request:    req,
		},
	}
}

func notFoundError() error {
	return responseError(bloberror.BlobNotFound, http.StatusNotFound)
}
