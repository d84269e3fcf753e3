package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"sqsbridge/commons/error_handler"
	"sqsbridge/commons/response"
	"sqsbridge/internal/logger"

	"github.com/gin-gonic/gin"
)

type ServiceFunc[InputDto any, OutputDto any] func(
	ctx context.Context,
	ioutil *RequestIo[InputDto],
) (OutputDto, *error_handler.ErrorCollection)

func HandleFunc[InputDto any, OutputDto any](
	deps HandlerDependencies,
	serviceFunc ServiceFunc[InputDto, OutputDto],
) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := deps.Logger.WithContext(ctx)

		ioutil := BuildRequestIo[InputDto](c)

		if hasBody(c.Request) {
			bodyBytes, err := io.ReadAll(c.Request.Body)
			if err != nil {
				log.Error("unable to read request body", logger.Error(err))
				SendErrorResponse(c, *new(OutputDto), error_handler.NewErrorCollection().
					AddError(error_handler.CodeInternalServerError, "Unable to read request body", nil))
				return
			}
			ioutil.RawBody = bodyBytes

			if len(bodyBytes) > 0 {
				// Restore the body for ShouldBindJSON to read
				c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

				if err := c.ShouldBindJSON(&ioutil.Body); err != nil {
					log.Warn("unable to bind request body", logger.Error(err))
					SendErrorResponse(c, *new(OutputDto), error_handler.NewErrorCollection().
						AddError(error_handler.CodeValidationError, err.Error(), nil))
					return
				}
			}
		}

		outputDto, errorCollection := serviceFunc(ctx, ioutil)

		if errorCollection != nil && errorCollection.HasErrors() {
			SendErrorResponse(c, outputDto, errorCollection)
		} else {
			SendSuccessResponse(c, outputDto)
		}
	}
}

func hasBody(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return r.Body != nil
	default:
		return false
	}
}

func SendSuccessResponse[T any](c *gin.Context, data T) {
	c.JSON(http.StatusOK, response.StandardResponse{
		Status:    response.StatusSuccess,
		Message:   "Success",
		RequestID: c.GetString(RequestIDKey),
		Data:      data,
		Errors:    []response.Errors{},
	})
}

func SendErrorResponse[T any](c *gin.Context, data T, errorCollection *error_handler.ErrorCollection) {
	errors := errorCollection.GetErrors()

	primaryErrorCode := error_handler.CodeInternalServerError
	primaryMessage := "Internal server error"
	if len(errors) > 0 {
		primaryErrorCode = errors[0].ErrorCode
		primaryMessage = errors[0].Message
	}

	c.JSON(errorCollection.GetHTTPStatus(), response.StandardResponse{
		Status:    response.StatusFailed,
		ErrorCode: primaryErrorCode,
		Message:   primaryMessage,
		RequestID: c.GetString(RequestIDKey),
		Data:      data,
		Errors:    errors,
	})
}
