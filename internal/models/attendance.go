package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the fixed calendar-day format used in record keys.
const DateLayout = "2006-01-02"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusNotMarked AttendanceStatus = "NOT_MARKED"
	AttendanceStatusPresent   AttendanceStatus = "PRESENT"
	AttendanceStatusAbsent    AttendanceStatus = "ABSENT"
	AttendanceStatusHoliday   AttendanceStatus = "HOLIDAY"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusNotMarked, AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusHoliday:
		return true
	default:
		return false
	}
}

// ParseAttendanceStatus decodes a stored status. Unknown values read as NOT_MARKED.
func ParseAttendanceStatus(raw string) AttendanceStatus {
	status := AttendanceStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !status.Valid() {
		return AttendanceStatusNotMarked
	}
	return status
}

// Scan implements sql.Scanner, normalising unknown stored values.
func (s *AttendanceStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = AttendanceStatusNotMarked
	case string:
		*s = ParseAttendanceStatus(v)
	case []byte:
		*s = ParseAttendanceStatus(string(v))
	default:
		return fmt.Errorf("unsupported attendance status type %T", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (s AttendanceStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// AttendanceRecord is one student's status on one calendar day.
type AttendanceRecord struct {
	ID          string           `db:"id" json:"id"`
	StudentID   string           `db:"student_id" json:"student_id"`
	StudentName string           `db:"student_name" json:"student_name"`
	Date        string           `db:"date" json:"date"`
	Status      AttendanceStatus `db:"status" json:"status"`
	SMSSent     bool             `db:"sms_sent" json:"sms_sent"`
	Timestamp   time.Time        `db:"timestamp" json:"timestamp"`
}

// RecordKey returns the composite identity of a student's record for a date.
func RecordKey(studentID, date string) string {
	return studentID + "_" + date
}

// FormatDate renders t as a calendar day in its own location.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// ValidDate reports whether raw is a YYYY-MM-DD calendar date.
func ValidDate(raw string) bool {
	if len(raw) != len(DateLayout) {
		return false
	}
	_, err := time.Parse(DateLayout, raw)
	return err == nil
}

// NewDayRecord builds the NOT_MARKED record that opens a day for a student.
func NewDayRecord(student Student, date string, now time.Time) AttendanceRecord {
	return AttendanceRecord{
		ID:          RecordKey(student.ID, date),
		StudentID:   student.ID,
		StudentName: student.Name,
		Date:        date,
		Status:      AttendanceStatusNotMarked,
		SMSSent:     false,
		Timestamp:   now,
	}
}

// DailyAttendance is every record sharing one date.
type DailyAttendance struct {
	Date    string             `json:"date"`
	Records []AttendanceRecord `json:"records"`
	Summary DailySummary       `json:"summary"`
}

// DailySummary counts a day's records per status.
type DailySummary struct {
	Present   int `json:"present"`
	Absent    int `json:"absent"`
	Holiday   int `json:"holiday"`
	NotMarked int `json:"not_marked"`
}

// SummarizeDay counts statuses across records.
func SummarizeDay(records []AttendanceRecord) DailySummary {
	var summary DailySummary
	for _, r := range records {
		switch r.Status {
		case AttendanceStatusPresent:
			summary.Present++
		case AttendanceStatusAbsent:
			summary.Absent++
		case AttendanceStatusHoliday:
			summary.Holiday++
		default:
			summary.NotMarked++
		}
	}
	return summary
}

// AttendanceStats summarises a student's history.
type AttendanceStats struct {
	Total      int     `json:"total"`
	Present    int     `json:"present"`
	Absent     int     `json:"absent"`
	Holiday    int     `json:"holiday"`
	NotMarked  int     `json:"not_marked"`
	Percentage float64 `json:"percentage"`
}

// ComputeStats derives counts and the attendance percentage. Holidays and
// unmarked days are left out of the denominator.
func ComputeStats(records []AttendanceRecord) AttendanceStats {
	day := SummarizeDay(records)
	stats := AttendanceStats{
		Total:     len(records),
		Present:   day.Present,
		Absent:    day.Absent,
		Holiday:   day.Holiday,
		NotMarked: day.NotMarked,
	}
	if attendable := stats.Present + stats.Absent; attendable > 0 {
		stats.Percentage = float64(stats.Present) / float64(attendable) * 100
	}
	return stats
}
