package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/begi/core"
	"github.com/trezcool/begi/core/catalog"
	"github.com/trezcool/begi/core/checklist"
	"github.com/trezcool/begi/core/schedule"
)

var errHTTPNotFound = echo.NewHTTPError(http.StatusNotFound, "not found")

func isNotFound(err error) bool {
	switch errors.Cause(err) {
	case catalog.ErrChildNotFound,
		catalog.ErrSubjectNotFound,
		catalog.ErrMaterialNotFound,
		catalog.ErrRequirementNotFound,
		schedule.ErrTemplateNotFound,
		schedule.ErrVersionNotFound,
		schedule.ErrLinkNotFound,
		checklist.ErrInstanceNotFound,
		checklist.ErrItemNotFound:
		return true
	}
	return false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		if isNotFound(err) {
			err = errHTTPNotFound
		}
		if errors.Cause(err) == core.ErrConflict {
			err = echo.NewHTTPError(http.StatusConflict, errors.Cause(err).Error())
		}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Error()
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		case *core.PhaseLockedError:
			code = http.StatusForbidden
			message = origErr.Error()
		case *core.ConfigurationError:
			code = http.StatusInternalServerError
			message = http.StatusText(http.StatusInternalServerError)
			logger.Error(origErr.Error(), err)
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg
			logger.Error(msg, errors.Wrap(err, msg))

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		} else if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
