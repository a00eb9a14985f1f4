package model

import "time"

// ScheduleEntry is one planned stop or pass-through on a train's timetable.
// Departure is never before Arrival.
type ScheduleEntry struct {
	StationCode  string        `json:"stationCode"`
	Platform     int           `json:"platform"`
	Arrival      time.Time     `json:"arrival"`
	Departure    time.Time     `json:"departure"`
	IsHalt       bool          `json:"isHalt"`
	HaltDuration time.Duration `json:"haltDuration"`
}

// Schedule is a train's ordered timetable. The optimizer owns it; the
// reconciler is the only other writer, serialized per train by the Store.
type Schedule struct {
	TrainID     string          `json:"trainId"`
	Entries     []ScheduleEntry `json:"entries"`
	TotalDelay  time.Duration   `json:"totalDelay"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

// Clone returns a deep copy safe for speculative mutation.
func (s *Schedule) Clone() *Schedule {
	cp := *s
	cp.Entries = make([]ScheduleEntry, len(s.Entries))
	copy(cp.Entries, s.Entries)
	return &cp
}

// EntryAt returns the index of the entry for a station code, or -1.
func (s *Schedule) EntryAt(stationCode string) int {
	for i := range s.Entries {
		if s.Entries[i].StationCode == stationCode {
			return i
		}
	}
	return -1
}

// ShiftFrom right-shifts every entry at or after index idx by d.
func (s *Schedule) ShiftFrom(idx int, d time.Duration) {
	for i := idx; i < len(s.Entries); i++ {
		s.Entries[i].Arrival = s.Entries[i].Arrival.Add(d)
		s.Entries[i].Departure = s.Entries[i].Departure.Add(d)
	}
}

// FinalArrival returns the planned arrival at the last stop; zero time for
// an empty schedule.
func (s *Schedule) FinalArrival() time.Time {
	if len(s.Entries) == 0 {
		return time.Time{}
	}
	return s.Entries[len(s.Entries)-1].Arrival
}

// Overlaps reports whether two station windows [a1,d1) and [a2,d2) intersect.
func Overlaps(a1, d1, a2, d2 time.Time) bool {
	return a1.Before(d2) && a2.Before(d1)
}
