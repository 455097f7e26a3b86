//go:build !consul

package discover

import (
	"context"
	"errors"
)

// Enabled returns false when the consul build tag is not present.
func Enabled() bool { return false }

// Controller fails without the consul tag; callers fall back to the
// configured address.
func Controller(_ context.Context, _ string, _ string) (string, error) {
	return "", errors.New("consul discovery not built in")
}
