package aws

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/ericfisherdev/cloudpanel/internal/domain/model"
)

var unauthorizedCodes = map[string]struct{}{
	"UnauthorizedOperation":       {},
	"AccessDenied":                {},
	"AccessDeniedException":       {},
	"AuthFailure":                 {},
	"InvalidClientTokenId":        {},
	"SignatureDoesNotMatch":       {},
	"UnrecognizedClientException": {},
	"ExpiredToken":                {},
	"ExpiredTokenException":       {},
	"InvalidAccessKeyId":          {},
	"OptInRequired":               {},
}

var notFoundCodes = map[string]struct{}{
	"NoSuchBucket":              {},
	"ResourceNotFoundException": {},
	"DBInstanceNotFound":        {},
	"DBInstanceNotFoundFault":   {},
	"NoSuchEntity":              {},
}

// Classify maps an SDK error onto the adapter error taxonomy. It returns nil
// for a nil error and passes existing adapter errors through.
func Classify(service model.ServiceKind, err error) error {
	if err == nil {
		return nil
	}

	var ae *model.AdapterError
	if errors.As(err, &ae) {
		return err
	}

	return model.NewAdapterError(service, classifyKind(err), err)
}

func classifyKind(err error) model.AdapterErrorKind {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if _, ok := retry.DefaultThrottleErrorCodes[code]; ok {
			return model.AdapterThrottled
		}
		if _, ok := unauthorizedCodes[code]; ok {
			return model.AdapterUnauthorized
		}
		if _, ok := notFoundCodes[code]; ok {
			return model.AdapterNotFound
		}
	}

	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusTooManyRequests:
			return model.AdapterThrottled
		case http.StatusUnauthorized, http.StatusForbidden:
			return model.AdapterUnauthorized
		case http.StatusNotFound:
			return model.AdapterNotFound
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return model.AdapterNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return model.AdapterNetwork
	}

	return model.AdapterUnknown
}
