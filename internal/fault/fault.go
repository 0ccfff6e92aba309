// Package fault defines the error kinds shared by every layer of the bridge.
// All of them are fatal for the operation that produced them; the caller is
// expected to stop rather than retry.
package fault

import (
	"fmt"

	"github.com/brickingsoft/errors"
)

var (
	// ErrConfiguration covers duplicate registration, double initialization,
	// teardown misuse and shape/class mismatches.
	ErrConfiguration = errors.Define("configuration error")
	// ErrResource is returned when the native side hands back nothing.
	ErrResource = errors.Define("resource error")
	// ErrProtocol signals that engine and presentation disagree about an
	// object's class.
	ErrProtocol = errors.Define("protocol violation")
	// ErrInvalidAccess is returned for reads through an unbound handle or a
	// released generation.
	ErrInvalidAccess = errors.Define("invalid access")
)

const (
	metaPkgKey = "pkg"
	metaOpKey  = "op"
)

func IsConfiguration(err error) bool { return errors.Is(err, ErrConfiguration) }
func IsResource(err error) bool      { return errors.Is(err, ErrResource) }
func IsProtocol(err error) bool      { return errors.Is(err, ErrProtocol) }
func IsInvalidAccess(err error) bool { return errors.Is(err, ErrInvalidAccess) }

// Configuration builds a configuration error raised by op in pkg.
func Configuration(pkg, op, format string, args ...any) error {
	return build(ErrConfiguration, pkg, op, format, args...)
}

func Resource(pkg, op, format string, args ...any) error {
	return build(ErrResource, pkg, op, format, args...)
}

func Protocol(pkg, op, format string, args ...any) error {
	return build(ErrProtocol, pkg, op, format, args...)
}

func InvalidAccess(pkg, op, format string, args ...any) error {
	return build(ErrInvalidAccess, pkg, op, format, args...)
}

func build(kind error, pkg, op, format string, args ...any) error {
	return errors.From(
		kind,
		errors.WithMeta(metaPkgKey, pkg),
		errors.WithMeta(metaOpKey, op),
		errors.WithWrap(fmt.Errorf(format, args...)),
	)
}
