package infra

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	"freightbid/internal/errs"
)

func TestStorageErr(t *testing.T) {
	plain := errors.New("syntax error at or near")
	cases := []struct {
		name      string
		in        error
		retryable bool
	}{
		{"nil", nil, false},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), true},
		{"refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"reset", syscall.ECONNRESET, true},
		{"domain", fmt.Errorf("%w: booking x", errs.ErrConflict), false},
		{"other", plain, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := StorageErr(tc.in)
			assert.Equal(t, tc.retryable, errs.Retryable(got))
			if !tc.retryable {
				assert.Equal(t, tc.in, got)
			}
		})
	}
}

func TestStorageErrDoesNotDoubleWrap(t *testing.T) {
	once := StorageErr(syscall.ECONNREFUSED)
	assert.Equal(t, once, StorageErr(once))
}
