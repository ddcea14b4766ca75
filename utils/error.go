package utils

import "errors"

// ErrorRecordNotFound is what the tenant-scoped fetch helpers return when a
// row does not exist (or belongs to another organization).
var ErrorRecordNotFound = errors.New("record not found")

// ErrorPanic aborts on errors that leave nothing to recover to.
func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
