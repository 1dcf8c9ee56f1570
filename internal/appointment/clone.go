package appointment

import "slices"

// Copy helpers for values handed out of the cache.

func cloneDoctor(d Doctor) Doctor {
	d.Availability = slices.Clone(d.Availability)
	return d
}

func cloneDoctors(ds []Doctor) []Doctor {
	out := make([]Doctor, len(ds))
	for i, d := range ds {
		out[i] = cloneDoctor(d)
	}
	return out
}

func clonePatients(ps []Patient) []Patient {
	return slices.Clone(ps)
}

func cloneDetail(a AppointmentDetail) AppointmentDetail {
	if a.Patient != nil {
		p := *a.Patient
		a.Patient = &p
	}
	if a.Doctor != nil {
		d := *a.Doctor
		a.Doctor = &d
	}
	return a
}

func cloneDetails(as []AppointmentDetail) []AppointmentDetail {
	out := make([]AppointmentDetail, len(as))
	for i, a := range as {
		out[i] = cloneDetail(a)
	}
	return out
}

func cloneSlots(s []TimeSlot) []TimeSlot {
	return slices.Clone(s)
}

func cloneTrends(d []DayCounts) []DayCounts {
	return slices.Clone(d)
}

func cloneAlerts(a []Alert) []Alert {
	return slices.Clone(a)
}

func cloneStats(s Stats) Stats {
	s.ByType = copyMap(s.ByType)
	s.ByPriority = copyMap(s.ByPriority)
	return s
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func appointmentsOf(details []AppointmentDetail) []Appointment {
	out := make([]Appointment, len(details))
	for i := range details {
		out[i] = details[i].Appointment
	}
	return out
}
