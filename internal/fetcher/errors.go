package fetcher

import (
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"syscall"

	"github.com/zx197009220/findApi/pkg/types"
)

// Classify maps a fetch error onto the categories reported in outcome events.
func Classify(err error) types.ErrorKind {
	if err == nil {
		return ""
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return types.ErrorConnection
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return types.ErrorConnection
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return types.ErrorConnection
	}

	if isTimeout(err) {
		return types.ErrorReadTimeout
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) || errors.Is(err, syscall.ECONNRESET) {
		return types.ErrorProtocol
	}
	if strings.Contains(err.Error(), "malformed HTTP") {
		return types.ErrorProtocol
	}
	return types.ErrorOther
}

// isTimeout reports whether any error in the chain is a timeout. errors.As
// alone stops at the outermost net.Error (usually *url.Error), which does not
// always see through the transport's own wrappers.
func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	if t, ok := err.(interface{ Timeout() bool }); ok && t.Timeout() {
		return true
	}
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return isTimeout(u.Unwrap())
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			if isTimeout(inner) {
				return true
			}
		}
	}
	return false
}
