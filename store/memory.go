package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/lending-engine/engine"
	"github.com/warp/lending-engine/instrument"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu               sync.RWMutex
	vehicles         map[string]instrument.Vehicle
	outsideInterests map[string]instrument.OutsideInterest
	loans            map[string]instrument.Loan
	payments         []engine.PaymentEntry
	paymentIDs       map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		vehicles:         make(map[string]instrument.Vehicle),
		outsideInterests: make(map[string]instrument.OutsideInterest),
		loans:            make(map[string]instrument.Loan),
		paymentIDs:       make(map[string]bool),
	}
}

func (m *Memory) SaveVehicle(_ context.Context, v *instrument.Vehicle) error {
	if err := v.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[v.RecordID] = *v
	return nil
}

func (m *Memory) SaveOutsideInterest(_ context.Context, o *instrument.OutsideInterest) error {
	if err := o.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outsideInterests[o.RecordID] = *o
	return nil
}

func (m *Memory) SaveLoan(_ context.Context, l *instrument.Loan) error {
	if err := l.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loans[l.RecordID] = *l
	return nil
}

func (m *Memory) Get(_ context.Context, source engine.SourceType, id string) (engine.Instrument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(source, id)
}

func (m *Memory) getLocked(source engine.SourceType, id string) (engine.Instrument, error) {
	switch source {
	case engine.SourceVehicle:
		if v, ok := m.vehicles[id]; ok {
			return &v, nil
		}
	case engine.SourceOutsideInterest:
		if o, ok := m.outsideInterests[id]; ok {
			return &o, nil
		}
	case engine.SourceLoan:
		if l, ok := m.loans[id]; ok {
			return &l, nil
		}
	}
	return nil, ErrNotFound
}

func matches(f Filter, closed, deleted bool) bool {
	if deleted && !f.IncludeDeleted {
		return false
	}
	if f.Closed != nil && *f.Closed != closed {
		return false
	}
	return true
}

func (m *Memory) ListVehicles(_ context.Context, f Filter) ([]*instrument.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*instrument.Vehicle
	for _, v := range m.vehicles {
		if matches(f, v.IsClosed, v.DeletedAt != nil) {
			v := v
			out = append(out, &v)
		}
	}
	sortByCreated(out, func(v *instrument.Vehicle) int64 { return v.CreatedAt.UnixNano() })
	return out, nil
}

func (m *Memory) ListOutsideInterests(_ context.Context, f Filter) ([]*instrument.OutsideInterest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*instrument.OutsideInterest
	for _, o := range m.outsideInterests {
		if matches(f, o.IsClosed, o.DeletedAt != nil) {
			o := o
			out = append(out, &o)
		}
	}
	sortByCreated(out, func(o *instrument.OutsideInterest) int64 { return o.CreatedAt.UnixNano() })
	return out, nil
}

func (m *Memory) ListLoans(_ context.Context, f Filter) ([]*instrument.Loan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*instrument.Loan
	for _, l := range m.loans {
		if matches(f, l.IsClosed, false) {
			l := l
			out = append(out, &l)
		}
	}
	sortByCreated(out, func(l *instrument.Loan) int64 { return l.CreatedAt.UnixNano() })
	return out, nil
}

func sortByCreated[T any](items []T, created func(T) int64) {
	sort.SliceStable(items, func(i, j int) bool {
		return created(items[i]) < created(items[j])
	})
}

func (m *Memory) CloseInstrument(_ context.Context, source engine.SourceType, id string, asOf engine.Date) (engine.Date, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch source {
	case engine.SourceVehicle:
		if v, ok := m.vehicles[id]; ok {
			date, _ := v.Close(asOf)
			m.vehicles[id] = v
			return date, nil
		}
	case engine.SourceOutsideInterest:
		if o, ok := m.outsideInterests[id]; ok {
			date, _ := o.Close(asOf)
			m.outsideInterests[id] = o
			return date, nil
		}
	case engine.SourceLoan:
		if l, ok := m.loans[id]; ok {
			date, _ := l.Close(asOf)
			m.loans[id] = l
			return date, nil
		}
	}
	return engine.Date{}, ErrNotFound
}

func (m *Memory) SoftDelete(_ context.Context, source engine.SourceType, id string, at engine.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch source {
	case engine.SourceVehicle:
		if v, ok := m.vehicles[id]; ok {
			v.SoftDelete(at)
			m.vehicles[id] = v
			return nil
		}
		return ErrNotFound
	case engine.SourceOutsideInterest:
		if o, ok := m.outsideInterests[id]; ok {
			o.SoftDelete(at)
			m.outsideInterests[id] = o
			return nil
		}
		return ErrNotFound
	default:
		return ErrNoSoftDelete
	}
}

func (m *Memory) AppendPayment(_ context.Context, p engine.PaymentEntry) error {
	if err := p.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.paymentIDs[p.ID] {
		return ErrDuplicateID
	}
	if p.SourceType != engine.SourceOther {
		if _, err := m.getLocked(p.SourceType, p.SourceID); err != nil {
			return err
		}
	}

	m.payments = append(m.payments, p)
	m.paymentIDs[p.ID] = true
	return nil
}

func (m *Memory) ListPayments(_ context.Context, source engine.SourceType, sourceID string) ([]engine.PaymentEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out engine.Ledger
	for _, p := range m.payments {
		if p.SourceType == source && p.SourceID == sourceID {
			out = append(out, p)
		}
	}
	return out.Sorted(), nil
}

func (m *Memory) AllPayments(_ context.Context) ([]engine.PaymentEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(engine.Ledger, len(m.payments))
	copy(out, m.payments)
	return out.Sorted(), nil
}

var _ Store = (*Memory)(nil)
