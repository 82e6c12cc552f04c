package errx

import (
	"github.com/gofiber/fiber/v2"
)

// HTTPErrorResponse is the body written for every errx error at the HTTP boundary
type HTTPErrorResponse struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Type      string                 `json:"type"`
	Status    int                    `json:"status"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// ToHTTPResponse converts an Error to an HTTPErrorResponse.
// Details are only exposed for validation errors; auth failures stay terse.
func (e *Error) ToHTTPResponse() HTTPErrorResponse {
	resp := HTTPErrorResponse{
		Code:    e.Code,
		Message: e.Message,
		Type:    string(e.Type),
		Status:  e.HTTPStatus,
	}
	if e.Type == TypeValidation && len(e.Details) > 0 {
		resp.Details = e.Details
	}
	return resp
}

// IsCode reports whether err carries the given registered code
func IsCode(err error, code *ErrorCode) bool {
	var e *Error
	if !As(err, &e) {
		return false
	}
	return e.Code == code.Code
}

// HTTPStatus returns the status an error should be rendered with
func HTTPStatus(err error) int {
	var e *Error
	if As(err, &e) && e.HTTPStatus != 0 {
		return e.HTTPStatus
	}
	var fe *fiber.Error
	if As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}

// FiberErrorHandler renders errx errors as JSON. When debug is set the
// underlying cause is included for non-auth errors.
func FiberErrorHandler(debug bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		requestID := c.GetRespHeader(fiber.HeaderXRequestID)

		var fe *fiber.Error
		if As(err, &fe) {
			return c.Status(fe.Code).JSON(HTTPErrorResponse{
				Code:      "FIBER_ERROR",
				Message:   fe.Message,
				Type:      string(TypeValidation),
				Status:    fe.Code,
				RequestID: requestID,
			})
		}

		var e *Error
		if As(err, &e) {
			resp := e.ToHTTPResponse()
			resp.RequestID = requestID
			if debug && e.Err != nil && e.Type != TypeAuthorization && e.Type != TypeForbidden {
				if resp.Details == nil {
					resp.Details = map[string]interface{}{}
				}
				resp.Details["underlying_error"] = e.Err.Error()
			}
			return c.Status(e.HTTPStatus).JSON(resp)
		}

		return c.Status(fiber.StatusInternalServerError).JSON(HTTPErrorResponse{
			Code:      "INTERNAL_ERROR",
			Message:   "An unexpected error occurred",
			Type:      string(TypeInternal),
			Status:    fiber.StatusInternalServerError,
			RequestID: requestID,
		})
	}
}
