package shared

// AggregateRoot is implemented by every consistency boundary of the
// marketplace: orders, payment addresses, escrows, listings, users.
type AggregateRoot interface {
	Entity
	GetVersion() int
	IncrementVersion()
	AddDomainEvent(event DomainEvent)
	GetDomainEvents() []DomainEvent
	ClearDomainEvents()
}

// BaseAggregateRoot carries the version used for optimistic locking and the
// events raised since the aggregate was loaded.
//
// Version is bumped by every mutation. persisted remembers the version the
// row had when it was read or last written, so a repository can refuse to
// overwrite a row another writer changed in between. It is zero for an
// aggregate that was never stored.
type BaseAggregateRoot struct {
	BaseEntity
	Version   int
	persisted int
	events    []DomainEvent
}

// NewBaseAggregateRoot starts a fresh, unsaved aggregate at version 1
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity(), Version: 1}
}

// RestoreAggregateRoot rebuilds the base of an aggregate read from storage
func RestoreAggregateRoot(entity BaseEntity, version int) BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: entity, Version: version, persisted: version}
}

func (a *BaseAggregateRoot) GetVersion() int {
	return a.Version
}

func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

// PersistedVersion is the version of the stored row this aggregate was
// built from, or zero when it has not been stored yet
func (a *BaseAggregateRoot) PersistedVersion() int {
	return a.persisted
}

// MarkPersisted records that the current version has been written
func (a *BaseAggregateRoot) MarkPersisted() {
	a.persisted = a.Version
}

func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.events = append(a.events, event)
}

// GetDomainEvents returns the events raised since the last clear
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.events
}

// ClearDomainEvents drops the pending events once they are published
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.events = nil
}
