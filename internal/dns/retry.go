package dns

import (
	"context"
	"errors"
	"net/netip"
	"net/url"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"
)

// RetryingStore wraps a Store and retries failed calls with a bounded backoff.
//
// Lookups and deletes are retried on transport errors and on responses the
// appliance marks as retryable (429, 5xx). Creates are only retried on
// retryable responses: a transport error may hide a create that was applied.
type RetryingStore struct {
	next    Store
	backoff wait.Backoff
	log     logr.Logger
}

var _ Store = (*RetryingStore)(nil)

// NewRetryingStore wraps next. A backoff with Steps <= 1 disables retries and
// next is returned unchanged.
func NewRetryingStore(next Store, backoff wait.Backoff, log logr.Logger) Store {
	if next == nil || backoff.Steps <= 1 {
		return next
	}
	return &RetryingStore{next: next, backoff: backoff, log: log}
}

// IsRetryable reports whether err is a transient failure worth another attempt.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrAmbiguousMatch) || errors.Is(err, ErrInvalidReference) {
		return false
	}
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	var ue *url.Error
	return errors.As(err, &ue)
}

func isRetryableResponse(err error) bool {
	var r interface{ Retryable() bool }
	return errors.As(err, &r) && r.Retryable()
}

func (s *RetryingStore) do(ctx context.Context, op string, retryable func(error) bool, fn func() error) error {
	attempt := 0
	return retry.OnError(s.backoff, func(err error) bool {
		if ctx.Err() != nil || !retryable(err) {
			return false
		}
		s.log.V(1).Info("retrying store call", "op", op, "attempt", attempt, "error", err.Error())
		return true
	}, func() error {
		attempt++
		return fn()
	})
}

func (s *RetryingStore) FindHostByName(ctx context.Context, name string) (*HostRecord, error) {
	var out *HostRecord
	err := s.do(ctx, "FindHostByName", IsRetryable, func() (err error) {
		out, err = s.next.FindHostByName(ctx, name)
		return err
	})
	return out, err
}

func (s *RetryingStore) FindHostByAddress(ctx context.Context, addr netip.Addr) (*HostRecord, error) {
	var out *HostRecord
	err := s.do(ctx, "FindHostByAddress", IsRetryable, func() (err error) {
		out, err = s.next.FindHostByAddress(ctx, addr)
		return err
	})
	return out, err
}

func (s *RetryingStore) FindPtrByName(ctx context.Context, name string) (*AddressRecord, error) {
	var out *AddressRecord
	err := s.do(ctx, "FindPtrByName", IsRetryable, func() (err error) {
		out, err = s.next.FindPtrByName(ctx, name)
		return err
	})
	return out, err
}

func (s *RetryingStore) FindPtrByAddress(ctx context.Context, addr netip.Addr) (*AddressRecord, error) {
	var out *AddressRecord
	err := s.do(ctx, "FindPtrByAddress", IsRetryable, func() (err error) {
		out, err = s.next.FindPtrByAddress(ctx, addr)
		return err
	})
	return out, err
}

func (s *RetryingStore) CreateHost(ctx context.Context, name string, addr netip.Addr, comment string) (Reference, error) {
	var ref Reference
	err := s.do(ctx, "CreateHost", isRetryableResponse, func() (err error) {
		ref, err = s.next.CreateHost(ctx, name, addr, comment)
		return err
	})
	return ref, err
}

func (s *RetryingStore) CreatePtr(ctx context.Context, name string, addr netip.Addr, comment string) (Reference, error) {
	var ref Reference
	err := s.do(ctx, "CreatePtr", isRetryableResponse, func() (err error) {
		ref, err = s.next.CreatePtr(ctx, name, addr, comment)
		return err
	})
	return ref, err
}

func (s *RetryingStore) DeleteByReference(ctx context.Context, ref Reference) error {
	return s.do(ctx, "DeleteByReference", IsRetryable, func() error {
		return s.next.DeleteByReference(ctx, ref)
	})
}
