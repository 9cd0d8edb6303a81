// Package errors provides examples of structured error handling in ctrflow.
package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/ctrflow/pkg/errors"
)

// Example demonstrates basic error creation and details.
func Example() {
	err := errors.New(errors.ErrorTypeData, "malformed record").
		WithDetail("path", "train.jsonl.gz").
		WithDetail("line", 42)

	fmt.Println(err.Error())
	fmt.Println(err.Details["line"])

	// Output:
	// data: malformed record
	// 42
}

// ExampleWrap shows how to wrap existing errors with context.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeData, "truncated stream")

	if errors.IsType(err, errors.ErrorTypeData) {
		fmt.Println("This is a data error")
	}

	if errors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("Original error was unexpected EOF")
	}

	fmt.Println(err)

	// Output:
	// This is a data error
	// Original error was unexpected EOF
	// data: truncated stream: unexpected EOF
}

// ExampleHasType shows how a type is found further down a chain.
func ExampleHasType() {
	inner := errors.New(errors.ErrorTypeCapability, "source cannot be restarted")
	outer := errors.Wrap(inner, errors.ErrorTypeConfig, "fold 2")

	fmt.Println(errors.IsType(outer, errors.ErrorTypeCapability))
	fmt.Println(errors.HasType(outer, errors.ErrorTypeCapability))
	fmt.Println(errors.GetType(outer))

	// Output:
	// false
	// true
	// config
}

// ExampleNewf demonstrates formatted messages.
func ExampleNewf() {
	err := errors.Newf(errors.ErrorTypeValidation, "folds must be at least 2, got %d", 1)
	fmt.Println(err)

	// Output:
	// validation: folds must be at least 2, got 1
}
