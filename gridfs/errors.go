package gridfs

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/hupe1980/stash"
)

func isNotFound(err error) bool {
	return errors.Is(err, mongo.ErrFileNotFound) || errors.Is(err, mongo.ErrNoDocuments)
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
	case mongo.IsTimeout(err), mongo.IsNetworkError(err):
		return stash.KindTransient
	case errors.Is(err, mongo.ErrClientDisconnected):
		return stash.KindTransient
	case errors.Is(err, mongo.ErrNilDocument), errors.Is(err, mongo.ErrEmptySlice):
		return stash.KindInvalidInput
	}

	var se mongo.ServerError
	if errors.As(err, &se) {
		// Unauthorized and AuthenticationFailed.
		if se.HasErrorCode(13) || se.HasErrorCode(18) {
			return stash.KindPermission
		}
	}
	return stash.KindBackend
}
