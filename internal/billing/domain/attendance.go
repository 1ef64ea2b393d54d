package billing

// AttendanceRecord is one student's presence mark for one session.
type AttendanceRecord struct {
	StudentID   string
	SessionID   string
	SessionDate Date
	IsPresent   bool
}
