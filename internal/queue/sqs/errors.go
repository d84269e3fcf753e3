package sqs

import (
	"context"
	"errors"
	"net"
	"net/http"

	queue "sqsbridge/internal/queue/iface"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
)

// errorCodes maps SQS and AWS common error codes to anomaly categories.
var errorCodes = map[string]queue.Category{
	"QueueDoesNotExist":                       queue.NotFound,
	"AWS.SimpleQueueService.NonExistentQueue": queue.NotFound,

	"AccessDenied":                queue.Forbidden,
	"AccessDeniedException":       queue.Forbidden,
	"InvalidClientTokenId":        queue.Forbidden,
	"InvalidSecurity":             queue.Forbidden,
	"SignatureDoesNotMatch":       queue.Forbidden,
	"UnrecognizedClientException": queue.Forbidden,
	"ExpiredToken":                queue.Forbidden,
	"KmsAccessDenied":             queue.Forbidden,

	"Throttling":          queue.Busy,
	"ThrottlingException": queue.Busy,
	"RequestThrottled":    queue.Busy,
	"OverLimit":           queue.Busy,
	"KmsThrottled":        queue.Busy,
	"ServiceUnavailable":  queue.Busy,

	"RequestTimeout": queue.Unavailable,

	"InvalidParameterValue":        queue.Incorrect,
	"MissingParameter":             queue.Incorrect,
	"InvalidAddress":               queue.Incorrect,
	"InvalidAttributeName":         queue.Incorrect,
	"InvalidAttributeValue":        queue.Incorrect,
	"InvalidBatchEntryId":          queue.Incorrect,
	"BatchEntryIdsNotDistinct":     queue.Incorrect,
	"EmptyBatchRequest":            queue.Incorrect,
	"TooManyEntriesInBatchRequest": queue.Incorrect,
	"ReceiptHandleIsInvalid":       queue.Incorrect,
	"ValidationError":              queue.Incorrect,

	"QueueDeletedRecently": queue.Conflict,

	"UnsupportedOperation":                        queue.Unsupported,
	"AWS.SimpleQueueService.UnsupportedOperation": queue.Unsupported,

	"InternalError":   queue.Fault,
	"InternalFailure": queue.Fault,
}

// classify wraps err in a *queue.Anomaly. Known error codes win over the
// HTTP status; transport errors without a response are unavailable.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	anomaly := &queue.Anomaly{Op: op, Category: queue.Fault, Err: err}

	if errors.Is(err, context.Canceled) {
		anomaly.Category = queue.Interrupted
		return anomaly
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		anomaly.Code = apiErr.ErrorCode()
		if c, ok := errorCodes[anomaly.Code]; ok {
			anomaly.Category = c
			return anomaly
		}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		anomaly.Category = categoryForStatus(respErr.HTTPStatusCode())
		return anomaly
	}

	if apiErr != nil {
		if apiErr.ErrorFault() == smithy.FaultClient {
			anomaly.Category = queue.Incorrect
		}
		return anomaly
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) {
		anomaly.Category = queue.Unavailable
	}

	return anomaly
}

func categoryForStatus(status int) queue.Category {
	switch {
	case status == http.StatusForbidden:
		return queue.Forbidden
	case status == http.StatusNotFound:
		return queue.NotFound
	case status == http.StatusConflict:
		return queue.Conflict
	case status == http.StatusTooManyRequests, status == http.StatusServiceUnavailable:
		return queue.Busy
	case status == http.StatusGatewayTimeout:
		return queue.Unavailable
	case status == http.StatusNotImplemented:
		return queue.Unsupported
	case status >= 400 && status < 500:
		return queue.Incorrect
	default:
		return queue.Fault
	}
}
