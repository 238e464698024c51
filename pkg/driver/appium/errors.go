package appium

import (
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/devicelab-dev/uiscope/pkg/core"
)

// W3C error codes the client treats specially.
const (
	codeNoSuchElement    = "no such element"
	codeStaleElement     = "stale element reference"
	codeInvalidSelector  = "invalid selector"
	codeInvalidSessionID = "invalid session id"
	codeUnknownError     = "unknown error"
)

// WebDriverError is an error response from the server.
type WebDriverError struct {
	Status     int
	Code       string
	Message    string
	Stacktrace string
}

func (e *WebDriverError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsNoSuchElement reports whether err is a W3C "no such element" response.
func IsNoSuchElement(err error) bool {
	var wd *WebDriverError
	return errors.As(err, &wd) && wd.Code == codeNoSuchElement
}

// classify maps server and transport failures onto the core taxonomy.
// Stale handles, missing elements and transport hiccups are retryable.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var wd *WebDriverError
	if errors.As(err, &wd) {
		switch wd.Code {
		case codeStaleElement, codeNoSuchElement:
			return core.Retryable(err)
		case codeInvalidSelector:
			return core.ErrInvalidLocator.WithMessage(wd.Message).WithCause(err)
		case codeInvalidSessionID:
			return core.ErrSessionNotConnected.WithMessage("session is gone").WithCause(err)
		case codeUnknownError:
			if wd.Status >= 500 && wd.Status != 501 {
				return core.Retryable(err)
			}
		}
		return err
	}

	var uerr *url.Error
	var nerr net.Error
	if errors.As(err, &uerr) || errors.As(err, &nerr) {
		return core.Retryable(core.ErrSessionNotConnected.WithMessage("appium server unreachable").WithCause(err))
	}
	return err
}
