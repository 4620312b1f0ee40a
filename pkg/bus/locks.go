package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Acquire claims resource for worker for ttl.
//
// It succeeds when no lock exists, when the existing lock has lapsed, when the
// entry cannot be decoded, or when worker already holds it (the expiry is then
// refreshed). It fails with
// *LockHeldError when a different worker holds a live lock. Racing claimants are
// serialised by the store's compare-and-swap: exactly one of them wins.
func (c *Client) Acquire(ctx context.Context, resource, worker string, ttl time.Duration) (*Lock, error) {
	if err := validateLockArgs(resource, worker); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		return nil, &ValidationError{Field: "ttl", Reason: fmt.Sprintf("must be positive, got %s", ttl)}
	}

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		now := c.Now()
		current, existing, err := c.readLock(ctx, resource)
		if err != nil && !IsCorrupt(err) {
			return nil, err
		}

		acquiredAt := now
		if existing != nil && existing.Live(now) {
			if existing.WorkerID != worker {
				return nil, &LockHeldError{
					Resource:  resource,
					Holder:    existing.WorkerID,
					ExpiresAt: existing.ExpiresAt.Time,
				}
			}
			acquiredAt = existing.AcquiredAt.Time
		}

		lock := Lock{
			WorkerID:   worker,
			AcquiredAt: At(acquiredAt),
			ExpiresAt:  At(now.Add(ttl)),
		}
		swapped, err := c.swapLock(ctx, resource, current, &lock)
		if err != nil {
			return nil, err
		}
		if swapped {
			return &lock, nil
		}
	}
	return nil, fmt.Errorf("failed to acquire lock on %q: %w", resource, ErrContention)
}

// Release drops worker's lock on resource. It fails with *NotHolderError when no
// lock exists or another worker is recorded as the holder.
func (c *Client) Release(ctx context.Context, resource, worker string) error {
	if err := validateLockArgs(resource, worker); err != nil {
		return err
	}

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		current, existing, err := c.readLock(ctx, resource)
		if err != nil {
			return err
		}
		if err := checkHolder(resource, worker, existing); err != nil {
			return err
		}

		swapped, err := c.swapLock(ctx, resource, current, nil)
		if err != nil {
			return err
		}
		if swapped {
			return nil
		}
	}
	return fmt.Errorf("failed to release lock on %q: %w", resource, ErrContention)
}

// Renew pushes the expiry of worker's lock on resource to now+ttl. A holder may
// renew a lapsed lock as long as nobody else has claimed it since.
func (c *Client) Renew(ctx context.Context, resource, worker string, ttl time.Duration) (*Lock, error) {
	if err := validateLockArgs(resource, worker); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		return nil, &ValidationError{Field: "ttl", Reason: fmt.Sprintf("must be positive, got %s", ttl)}
	}

	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		now := c.Now()
		current, existing, err := c.readLock(ctx, resource)
		if err != nil {
			return nil, err
		}
		if err := checkHolder(resource, worker, existing); err != nil {
			return nil, err
		}

		lock := *existing
		lock.ExpiresAt = At(now.Add(ttl))
		swapped, err := c.swapLock(ctx, resource, current, &lock)
		if err != nil {
			return nil, err
		}
		if swapped {
			return &lock, nil
		}
	}
	return nil, fmt.Errorf("failed to renew lock on %q: %w", resource, ErrContention)
}

// GetLock returns the lock entry for resource whether or not it is live.
// Returns ErrKeyNotFound when the resource has never been locked or was released.
func (c *Client) GetLock(ctx context.Context, resource string) (*Lock, error) {
	_, lock, err := c.readLock(ctx, resource)
	if err != nil {
		return nil, err
	}
	if lock == nil {
		return nil, ErrKeyNotFound
	}
	return lock, nil
}

// Locks returns every lock entry, live or not, plus entries that failed to decode.
func (c *Client) Locks(ctx context.Context) (map[string]Lock, []*CorruptEntryError, error) {
	return decodeTable[Lock](ctx, c.store, TableLocks, nil)
}

// PurgeExpired physically removes lapsed locks and returns what it removed.
// Each removal is conditional on the entry being unchanged, so a lock renewed
// or re-acquired concurrently is left alone.
func (c *Client) PurgeExpired(ctx context.Context) ([]LockEntry, error) {
	raw, err := c.store.Entries(ctx, TableLocks)
	if err != nil {
		return nil, fmt.Errorf("failed to read locks: %w", err)
	}

	now := c.Now()
	var purged []LockEntry
	for resource, data := range raw {
		var lock Lock
		if err := json.Unmarshal(data, &lock); err != nil {
			continue
		}
		if !lock.Expired(now) {
			continue
		}
		swapped, err := c.store.CompareAndSwap(ctx, TableLocks, resource, data, nil)
		if err != nil {
			return purged, fmt.Errorf("failed to purge lock on %q: %w", resource, err)
		}
		if swapped {
			purged = append(purged, LockEntry{Resource: resource, Lock: lock})
		}
	}

	sort.Slice(purged, func(i, j int) bool { return purged[i].Resource < purged[j].Resource })
	return purged, nil
}

// readLock returns the raw and decoded entry for resource; both are nil when absent.
// An undecodable entry is returned raw alongside a *CorruptEntryError.
func (c *Client) readLock(ctx context.Context, resource string) ([]byte, *Lock, error) {
	data, err := c.store.Get(ctx, TableLocks, resource)
	if errors.Is(err, ErrKeyNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read lock on %q: %w", resource, err)
	}

	var lock Lock
	if err := json.Unmarshal(data, &lock); err != nil {
		return data, nil, &CorruptEntryError{Source: string(TableLocks), Key: resource, Err: err}
	}
	return data, &lock, nil
}

// swapLock replaces prev with lock (nil deletes).
func (c *Client) swapLock(ctx context.Context, resource string, prev []byte, lock *Lock) (bool, error) {
	var next []byte
	if lock != nil {
		data, err := json.Marshal(lock)
		if err != nil {
			return false, fmt.Errorf("failed to serialize lock: %w", err)
		}
		next = data
	}

	swapped, err := c.store.CompareAndSwap(ctx, TableLocks, resource, prev, next)
	if err != nil {
		return false, fmt.Errorf("failed to write lock on %q: %w", resource, err)
	}
	return swapped, nil
}

func checkHolder(resource, worker string, existing *Lock) error {
	if existing == nil {
		return &NotHolderError{Resource: resource, Worker: worker}
	}
	if existing.WorkerID != worker {
		return &NotHolderError{Resource: resource, Worker: worker, Holder: existing.WorkerID}
	}
	return nil
}

func validateLockArgs(resource, worker string) error {
	if resource == "" {
		return &ValidationError{Field: "resource", Reason: "cannot be empty"}
	}
	if worker == "" {
		return &ValidationError{Field: "worker", Reason: "cannot be empty"}
	}
	return nil
}
