package permissions

import (
	"sort"
	"sync"
)

// ProvisionalView tracks a caller's tentative grant state on top of the last confirmed
// ledger state. Each tentative change is confirmed or rolled back per permission.
type ProvisionalView struct {
	mu        sync.Mutex
	confirmed map[string]bool
	pending   map[string]bool
}

// NewProvisionalView seeds the view with the permission ids known to be granted.
func NewProvisionalView(granted []string) *ProvisionalView {
	v := &ProvisionalView{
		confirmed: make(map[string]bool, len(granted)),
		pending:   make(map[string]bool),
	}
	for _, id := range granted {
		v.confirmed[id] = true
	}
	return v
}

// MarkGranted records tentative grants.
func (v *ProvisionalView) MarkGranted(ids ...string) {
	v.mark(true, ids)
}

// MarkRevoked records tentative revocations.
func (v *ProvisionalView) MarkRevoked(ids ...string) {
	v.mark(false, ids)
}

func (v *ProvisionalView) mark(granted bool, ids []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, id := range ids {
		v.pending[id] = granted
	}
}

// Confirm promotes the tentative state of id to confirmed state.
func (v *ProvisionalView) Confirm(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.confirmLocked(id)
}

// Rollback discards the tentative state of id, restoring its confirmed state.
func (v *ProvisionalView) Rollback(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.pending, id)
}

// Reconcile applies a batch outcome: succeeded ids are confirmed and failed ids rolled
// back. Pending changes outside the batch are left as they are.
func (v *ProvisionalView) Reconcile(succeeded, failed []string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, id := range succeeded {
		v.confirmLocked(id)
	}
	for _, id := range failed {
		delete(v.pending, id)
	}
}

func (v *ProvisionalView) confirmLocked(id string) {
	granted, ok := v.pending[id]
	if !ok {
		return
	}
	delete(v.pending, id)
	if granted {
		v.confirmed[id] = true
	} else {
		delete(v.confirmed, id)
	}
}

// IsGranted reports the state the caller should display for id.
func (v *ProvisionalView) IsGranted(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if granted, ok := v.pending[id]; ok {
		return granted
	}
	return v.confirmed[id]
}

// IsPending reports whether id still carries an unconfirmed change.
func (v *ProvisionalView) IsPending(id string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.pending[id]
	return ok
}

// Granted returns the displayed grant set in sorted order.
func (v *ProvisionalView) Granted() []string {
	v.mu.Lock()
	defer v.mu.Unlock()

	var ids []string
	for id := range v.confirmed {
		if granted, ok := v.pending[id]; ok && !granted {
			continue
		}
		ids = append(ids, id)
	}
	for id, granted := range v.pending {
		if granted && !v.confirmed[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
