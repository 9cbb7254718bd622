package minio

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/minio/minio-go/v7"

	"github.com/hupe1980/stash"
)

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NotFound", "NoSuchBucket":
		return true
	}
	return resp.StatusCode == http.StatusNotFound
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
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return stash.KindTransient
	}
	if isNotFound(err) {
		return stash.KindNotFound
	}

	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return stash.KindPermission
	case "SlowDown", "RequestTimeout", "InternalError", "ServiceUnavailable", "XMinioServerNotInitialized":
		return stash.KindTransient
	case "InvalidBucketName", "InvalidArgument", "XMinioInvalidObjectName":
		return stash.KindInvalidInput
	}
	switch {
	case resp.StatusCode == http.StatusForbidden:
		return stash.KindPermission
	case resp.StatusCode >= 500:
		return stash.KindTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return stash.KindTransient
	}
	return stash.KindBackend
}
