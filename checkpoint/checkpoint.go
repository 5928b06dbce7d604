// Package checkpoint provides a way to decorate errors by some additional caller information
// which results in something similar to a stacktrace.
// Each error added to a checkpoint can be checked by errors.Is and retrieved by errors.As.
package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
)

// From just wraps an error by a new checkpoint which adds some caller information to the error.
// It returns nil, if err == nil.
func From(err error) error {
	// io.EOF must be returned as io.EOF directly
	// https://github.com/golang/go/issues/39155
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return err
	}

	if err == nil {
		return nil
	}

	return newCheckpoint(err, nil)
}

// Wrap adds a checkpoint with some caller information from an error and accepts
// also another error which can further describe the checkpoint.
// Returns nil if prev == nil.
// If err is nil, it still creates a checkpoint.
// This allows for example to predefine some errors and use them later:
//
//	var(
//			ErrSomethingSpecialWentWrong = errors.New("a very bad error")
//	)
//	func someFunction() error {
//		err := somethingOtherThatThrowsErrors()
//		return checkpoint.Wrap(err, ErrSomethingSpecialWentWrong)
//	}
//
//	err := someFunction()
//
// If used that way, you can still check with errors.Is() for the ErrSomethingSpecialWentWrong
//
//	if errors.Is(err, ErrSomethingSpecialWentWrong) {
//		fmt.Println("The special error was thrown")
//	} else {
//		fmt.Println(err)
//	}
//
// but also for the error returned by somethingOtherThatThrowsErrors() (if you know what error it is).
// If the error in this example is nil, no checkpoint gets created.
func Wrap(prev, err error) error {
	// io.EOF must be returned as io.EOF directly
	// https://github.com/golang/go/issues/39155
	if prev == io.EOF {
		return io.EOF
	}

	if prev == nil {
		return nil
	}

	return newCheckpoint(err, prev)
}

// newCheckpoint must be called directly by From or Wrap, as it skips exactly these frames.
func newCheckpoint(err, prev error) *checkpoint {
	_, file, line, ok := runtime.Caller(2)

	return &checkpoint{
		err:  err,
		prev: prev,

		callerOk: ok,
		file:     filepath.Base(file),
		line:     line,
	}
}

type checkpoint struct {
	err  error
	prev error

	callerOk bool
	file     string
	line     int
}

// Error formats the checkpoint in one line, so it can be used for log messages:
//
//	err (file.go:12): prev
func (e *checkpoint) Error() string {
	location := "unknown"
	if e.callerOk {
		location = fmt.Sprintf("%s:%d", e.file, e.line)
	}

	switch {
	case e.err == nil:
		return fmt.Sprintf("(%s): %v", location, e.prev)
	case e.prev == nil:
		return fmt.Sprintf("%v (%s)", e.err, location)
	}
	return fmt.Sprintf("%v (%s): %v", e.err, location, e.prev)
}

func (e *checkpoint) Unwrap() error {
	if e.prev == nil {
		return e.err
	}
	return e.prev
}

func (e *checkpoint) Is(target error) bool {
	return e.err != nil && errors.Is(e.err, target)
}

func (e *checkpoint) As(target interface{}) bool {
	return e.err != nil && errors.As(e.err, target)
}
