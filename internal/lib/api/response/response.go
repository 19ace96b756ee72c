package response

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

const (
	StatusSuccess = "Success"
	StatusPending = "Pending"
	StatusFailed  = "Failed"
)

func OK(msg string, data any) Response {
	return Response{
		Status:  StatusSuccess,
		Message: msg,
		Data:    data,
	}
}

func Pending(msg string, data any) Response {
	return Response{
		Status:  StatusPending,
		Message: msg,
		Data:    data,
	}
}

func Error(msg string) Response {
	return Response{
		Status:  StatusFailed,
		Message: msg,
	}
}

func ValidationError(errs validator.ValidationErrors) Response {
	var errMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "email":
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is not a valid email", err.Field()))
		default:
			errMsgs = append(errMsgs, fmt.Sprintf("field %s is not valid", err.Field()))
		}
	}

	return Response{
		Status:  StatusFailed,
		Message: strings.Join(errMsgs, ", "),
	}
}
