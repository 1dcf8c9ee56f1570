package cache

import "strings"

// Kind is the root of a key hierarchy, one per entity table plus derived views.
type Kind string

const (
	KindPatients     Kind = "patients"
	KindDoctors      Kind = "doctors"
	KindAppointments Kind = "appointments"
	KindDashboard    Kind = "dashboard"
)

// Scope is the second level of a key.
type Scope string

const (
	ScopeAll    Scope = ""
	ScopeList   Scope = "list"
	ScopeDetail Scope = "detail"
	ScopeStats  Scope = "stats"
	ScopeSlots  Scope = "slots"

	// dashboard views
	ScopeTrends      Scope = "trends"
	ScopePerformance Scope = "performance"
	ScopeAlerts      Scope = "alerts"
)

// Filter names the dimension a leaf key narrows on.
type Filter string

const (
	FilterNone           Filter = ""
	FilterID             Filter = "id"
	FilterDate           Filter = "date"
	FilterDoctor         Filter = "doctor"
	FilterPatient        Filter = "patient"
	FilterStatus         Filter = "status"
	FilterSearch         Filter = "search"
	FilterSpecialization Filter = "specialization"
	FilterDay            Filter = "day"
	FilterToday          Filter = "today"
	FilterUpcoming       Filter = "upcoming"
	FilterDoctorDate     Filter = "doctor-date"
	FilterRecent         Filter = "recent"
)

// Key identifies a cached view. The zero Scope and Filter mean "everything below",
// so Key{Kind: KindAppointments} is the parent of every appointment key.
type Key struct {
	Kind   Kind
	Scope  Scope
	Filter Filter
	Value  string
}

func Root(kind Kind) Key { return Key{Kind: kind} }

// List is the unfiltered list of kind; it is also the parent of every filtered list.
func List(kind Kind) Key { return Key{Kind: kind, Scope: ScopeList} }

func ListBy(kind Kind, f Filter, value string) Key {
	return Key{Kind: kind, Scope: ScopeList, Filter: f, Value: value}
}

func Detail(kind Kind, id string) Key {
	return Key{Kind: kind, Scope: ScopeDetail, Filter: FilterID, Value: id}
}

func Stats(kind Kind) Key { return Key{Kind: kind, Scope: ScopeStats} }

// Slots is the availability view of one doctor on one date (YYYY-MM-DD).
func Slots(doctorID, date string) Key {
	return Key{Kind: KindAppointments, Scope: ScopeSlots, Filter: FilterDoctorDate, Value: doctorID + "@" + date}
}

// Contains reports whether o is k itself or one of its descendants.
func (k Key) Contains(o Key) bool {
	if k.Kind != o.Kind {
		return false
	}
	if k.Scope == ScopeAll {
		return true
	}
	if k.Scope != o.Scope {
		return false
	}
	if k.Filter == FilterNone {
		return true
	}
	return k.Filter == o.Filter && k.Value == o.Value
}

func (k Key) String() string {
	var b strings.Builder
	b.WriteString(string(k.Kind))
	if k.Scope != ScopeAll {
		b.WriteByte('/')
		b.WriteString(string(k.Scope))
	}
	if k.Filter != FilterNone {
		b.WriteByte('/')
		b.WriteString(string(k.Filter))
		b.WriteByte('=')
		b.WriteString(k.Value)
	}
	return b.String()
}
