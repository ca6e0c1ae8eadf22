package conversation

import "github.com/pkg/errors"

var (
	ErrEmptyInput = errors.New("input is empty")
	// ErrNoMediaStore is returned by Attach when no media directory is configured.
	ErrNoMediaStore = errors.New("no media store configured")
)

// classifiedError keeps the original error in the chain and additionally
// matches kind with errors.Is.
type classifiedError struct {
	cause error
	kind  error
}

func (e *classifiedError) Error() string {
	return e.cause.Error() + ": " + e.kind.Error()
}

func (e *classifiedError) Is(target error) bool {
	return target == e.kind
}

func (e *classifiedError) Unwrap() error {
	return e.cause
}

func (e *classifiedError) Cause() error {
	return e.cause
}

// classify makes sure err matches sentinel with errors.Is.
func classify(err error, sentinel error) error {
	if err == nil || errors.Is(err, sentinel) {
		return err
	}
	return &classifiedError{cause: err, kind: sentinel}
}
