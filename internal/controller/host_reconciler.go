package controller

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"github.com/go-logr/logr"
	"go4.org/netipx"
	"golang.org/x/sync/errgroup"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/yuriy-kovalchuk/ib-host-tool/internal/dns"
)

// ErrAddressNotManaged is returned when an address lies outside the managed networks.
var ErrAddressNotManaged = errors.New("address is outside the managed networks")

// Result describes the mutations a reconciliation performed.
type Result struct {
	Created []dns.Reference
	Deleted []dns.Reference
}

// Changed reports whether any record was created or deleted.
func (r Result) Changed() bool {
	return len(r.Created) > 0 || len(r.Deleted) > 0
}

// HostReconciler keeps a host's forward and reverse records consistent.
//
// Mutations are independent WAPI calls. A failed create after a successful
// delete is not rolled back and may leave neither the old nor the new record.
type HostReconciler struct {
	Store dns.Store
	Log   logr.Logger
	// Networks restricts the addresses the reconciler may touch. Nil means unrestricted.
	Networks *netipx.IPSet
}

// snapshot is the observed state gathered before any mutation.
type snapshot struct {
	hostByName *dns.HostRecord
	hostByAddr *dns.HostRecord
	ptrByName  *dns.AddressRecord
	ptrByAddr  *dns.AddressRecord
}

func (r *HostReconciler) checkInput(hostname string, addr netip.Addr) error {
	if dns.NormalizeName(hostname) == "" {
		return fmt.Errorf("hostname must not be empty")
	}
	if !addr.IsValid() {
		return fmt.Errorf("invalid address for %s", hostname)
	}
	if r.Networks != nil && !r.Networks.Contains(addr.Unmap()) {
		return fmt.Errorf("%s: %w", addr, ErrAddressNotManaged)
	}
	return nil
}

// observe runs the four lookups concurrently. Any lookup error aborts before mutation.
func (r *HostReconciler) observe(ctx context.Context, hostname string, addr netip.Addr) (snapshot, error) {
	var s snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		s.hostByName, err = r.Store.FindHostByName(gctx, hostname)
		return err
	})
	g.Go(func() (err error) {
		s.hostByAddr, err = r.Store.FindHostByAddress(gctx, addr)
		return err
	})
	g.Go(func() (err error) {
		s.ptrByName, err = r.Store.FindPtrByName(gctx, hostname)
		return err
	})
	g.Go(func() (err error) {
		s.ptrByAddr, err = r.Store.FindPtrByAddress(gctx, addr)
		return err
	})
	if err := g.Wait(); err != nil {
		return snapshot{}, fmt.Errorf("looking up records for %s/%s: %w", hostname, addr, err)
	}
	return s, nil
}

// plan decides which references to delete and whether a host and PTR must be created.
func plan(s snapshot, hostname string, addr netip.Addr) (deletes []dns.Reference, needHost, needPtr bool) {
	needHost = true
	switch {
	case s.hostByName != nil && s.hostByAddr == nil:
		// The name resolves elsewhere.
		deletes = append(deletes, s.hostByName.Ref)
	case s.hostByName != nil && s.hostByAddr != nil:
		if current := s.hostByName.FirstAddressLike(addr); current.IsValid() && current == s.hostByAddr.FirstAddressLike(addr) {
			needHost = false
			break
		}
		deletes = append(deletes, s.hostByName.Ref)
		// Deleting a host removes its own address entries with it.
		if !dns.SameName(s.hostByAddr.Name, s.hostByName.Name) {
			deletes = append(deletes, s.hostByAddr.Ref)
		}
	}

	needPtr = true
	// A PTR for the other address family belongs to the host's other stack.
	if s.ptrByName != nil && s.ptrByName.Address.Unmap().Is4() == addr.Unmap().Is4() {
		if s.ptrByName.Address.Unmap() != addr.Unmap() {
			deletes = append(deletes, s.ptrByName.Ref)
		} else {
			needPtr = false
		}
	}
	if s.ptrByAddr != nil {
		if !dns.SameName(s.ptrByAddr.PointsTo, hostname) {
			deletes = append(deletes, s.ptrByAddr.Ref)
		} else {
			needPtr = false
		}
	}
	return dedupe(deletes), needHost, needPtr
}

func dedupe(refs []dns.Reference) []dns.Reference {
	seen := make(map[string]bool, len(refs))
	out := refs[:0]
	for _, ref := range refs {
		if seen[ref.Raw] {
			continue
		}
		seen[ref.Raw] = true
		out = append(out, ref)
	}
	return out
}

// AddOrReplaceHost ensures exactly one host record maps hostname to addr and
// exactly one PTR maps addr back to hostname, deleting anything conflicting.
//
// Lookup failures abort with no mutation. Delete and create failures are
// collected and the remaining steps still run.
func (r *HostReconciler) AddOrReplaceHost(ctx context.Context, hostname string, addr netip.Addr, comment string) (Result, error) {
	log := r.Log.WithValues("hostname", hostname, "address", addr)
	if err := r.checkInput(hostname, addr); err != nil {
		return Result{}, err
	}

	s, err := r.observe(ctx, hostname, addr)
	if err != nil {
		return Result{}, err
	}
	if s.hostByName != nil {
		log.V(1).Info("host has address", "current", s.hostByName.FirstAddressLike(addr))
	}
	if s.hostByAddr != nil {
		log.V(1).Info("address has host", "current", s.hostByAddr.Name)
	}
	if s.ptrByName != nil {
		log.V(1).Info("ptr by name found", "ptrAddress", s.ptrByName.Address)
	}
	if s.ptrByAddr != nil {
		log.V(1).Info("ptr by address found", "ptrName", s.ptrByAddr.PointsTo)
	}

	deletes, needHost, needPtr := plan(s, hostname, addr)
	log.V(1).Info("reconciliation plan", "deletes", len(deletes), "needHost", needHost, "needPtr", needPtr)

	var result Result
	var errs []error
	for _, ref := range deletes {
		if err := r.Store.DeleteByReference(ctx, ref); err != nil {
			log.Error(err, "failed to delete conflicting record", "ref", ref.Raw)
			errs = append(errs, err)
			continue
		}
		log.Info("deleted conflicting record", "kind", ref.Kind.String(), "ref", ref.Raw)
		result.Deleted = append(result.Deleted, ref)
	}

	if needHost {
		ref, err := r.Store.CreateHost(ctx, hostname, addr, comment)
		if err != nil {
			log.Error(err, "failed to create host record")
			errs = append(errs, err)
		} else {
			log.Info("created host record", "ref", ref.Raw)
			result.Created = append(result.Created, ref)
		}
	}
	if needPtr {
		ref, err := r.Store.CreatePtr(ctx, hostname, addr, comment)
		if err != nil {
			log.Error(err, "failed to create ptr record")
			errs = append(errs, err)
		} else {
			log.Info("created ptr record", "ref", ref.Raw)
			result.Created = append(result.Created, ref)
		}
	}

	return result, utilerrors.NewAggregate(errs)
}

// RemoveHost deletes the host record for hostname and every PTR pointing at
// hostname or held by addr. Deletes are attempted even after an earlier one fails.
func (r *HostReconciler) RemoveHost(ctx context.Context, hostname string, addr netip.Addr) (Result, error) {
	log := r.Log.WithValues("hostname", hostname, "address", addr)
	if err := r.checkInput(hostname, addr); err != nil {
		return Result{}, err
	}

	var result Result
	var errs []error
	remove := func(what string, ref dns.Reference) {
		for _, done := range result.Deleted {
			if done.Raw == ref.Raw {
				return
			}
		}
		if err := r.Store.DeleteByReference(ctx, ref); err != nil {
			log.Error(err, "failed to delete record", "record", what, "ref", ref.Raw)
			errs = append(errs, err)
			return
		}
		log.Info("deleted record", "record", what, "ref", ref.Raw)
		result.Deleted = append(result.Deleted, ref)
	}

	host, err := r.Store.FindHostByName(ctx, hostname)
	if err != nil {
		errs = append(errs, fmt.Errorf("looking up host %s: %w", hostname, err))
	} else if host != nil {
		remove("host", host.Ref)
	}

	ptr, err := r.Store.FindPtrByName(ctx, hostname)
	if err != nil {
		errs = append(errs, fmt.Errorf("looking up ptr for %s: %w", hostname, err))
	} else if ptr != nil {
		remove("ptr by name", ptr.Ref)
	}

	ptr, err = r.Store.FindPtrByAddress(ctx, addr)
	if err != nil {
		errs = append(errs, fmt.Errorf("looking up ptr for %s: %w", addr, err))
	} else if ptr != nil {
		remove("ptr by address", ptr.Ref)
	}

	if !result.Changed() {
		log.V(1).Info("no records found to remove")
	}
	return result, utilerrors.NewAggregate(errs)
}
