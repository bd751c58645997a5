package dto

import "github.com/rollcall/attendance-api/internal/models"

// StudentHistory is a student's full attendance ledger with statistics.
type StudentHistory struct {
	Student models.Student            `json:"student"`
	Records []models.AttendanceRecord `json:"records"`
	Stats   models.AttendanceStats    `json:"stats"`
}
