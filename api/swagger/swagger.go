package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Rollcall Attendance API",
        "description": "Single-class attendance board with two-tap confirmation and absence notifications",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Attendance", "description": "Today's board and the two-tap protocol"},
        {"name": "History", "description": "Past days, exports and per-student statistics"},
        {"name": "Students", "description": "Class roster"}
    ],
    "parameters": {
        "SessionID": {"name": "X-Session-ID", "in": "header", "type": "string", "description": "Tap session, defaults to \"default\""},
        "Date": {"name": "date", "in": "path", "required": true, "type": "string", "format": "date"},
        "StudentID": {"name": "id", "in": "path", "required": true, "type": "string"}
    },
    "paths": {
        "/attendance/today": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Today's board for the calling session",
                "parameters": [{"$ref": "#/parameters/SessionID"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/BoardEnvelope"}}
                }
            }
        },
        "/attendance/today/stream": {
            "get": {
                "tags": ["Attendance"],
                "summary": "Live board as server-sent events",
                "produces": ["text/event-stream"],
                "parameters": [{"$ref": "#/parameters/SessionID"}],
                "responses": {"200": {"description": "Event stream of board snapshots"}}
            }
        },
        "/attendance/taps": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Tap a status button for a student",
                "description": "The first tap selects, a tap with another status re-arms, a second tap with the same status confirms.",
                "parameters": [
                    {"$ref": "#/parameters/SessionID"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TapRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/TapEnvelope"}},
                    "400": {"description": "Invalid status or missing student", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Messaging permission denied", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Confirmation already in progress", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "Store failure", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Notification gateway failure", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/days/{date}/initialize": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Create NOT_MARKED records for every active student lacking one",
                "parameters": [{"$ref": "#/parameters/Date"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/selection": {
            "delete": {
                "tags": ["Attendance"],
                "summary": "Clear the selected student",
                "parameters": [{"$ref": "#/parameters/SessionID"}],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/attendance/errors": {
            "delete": {
                "tags": ["Attendance"],
                "summary": "Dismiss the store error banner",
                "parameters": [{"$ref": "#/parameters/SessionID"}],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/attendance/notification-error": {
            "delete": {
                "tags": ["Attendance"],
                "summary": "Dismiss the notification error banner",
                "parameters": [{"$ref": "#/parameters/SessionID"}],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/attendance/message": {
            "delete": {
                "tags": ["Attendance"],
                "summary": "Dismiss the success message",
                "parameters": [{"$ref": "#/parameters/SessionID"}],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/attendance/session": {
            "delete": {
                "tags": ["Attendance"],
                "summary": "Drop the calling tap session",
                "parameters": [{"$ref": "#/parameters/SessionID"}],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/attendance/dates": {
            "get": {
                "tags": ["History"],
                "summary": "Dates with attendance, newest first",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/attendance/dates/stream": {
            "get": {
                "tags": ["History"],
                "summary": "Live list of dates with attendance",
                "produces": ["text/event-stream"],
                "responses": {"200": {"description": "Event stream"}}
            }
        },
        "/attendance/dates/{date}": {
            "get": {
                "tags": ["History"],
                "summary": "Attendance of one date",
                "parameters": [{"$ref": "#/parameters/Date"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/DailyAttendance"}},
                    "400": {"description": "Malformed date", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/attendance/dates/{date}/stream": {
            "get": {
                "tags": ["History"],
                "summary": "Live attendance of one date",
                "produces": ["text/event-stream"],
                "parameters": [{"$ref": "#/parameters/Date"}],
                "responses": {"200": {"description": "Event stream"}}
            }
        },
        "/attendance/dates/{date}/export": {
            "get": {
                "tags": ["History"],
                "summary": "Download one date's attendance",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"$ref": "#/parameters/Date"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {"200": {"description": "File", "schema": {"type": "file"}}}
            }
        },
        "/students": {
            "get": {
                "tags": ["Students"],
                "summary": "Active students ordered by name",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Students"],
                "summary": "Add a student",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateStudentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/stream": {
            "get": {
                "tags": ["Students"],
                "summary": "Live active roster",
                "produces": ["text/event-stream"],
                "responses": {"200": {"description": "Event stream"}}
            }
        },
        "/students/{id}": {
            "get": {
                "tags": ["Students"],
                "summary": "Get student",
                "parameters": [{"$ref": "#/parameters/StudentID"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Students"],
                "summary": "Update name and parent phone",
                "parameters": [
                    {"$ref": "#/parameters/StudentID"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateStudentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Students"],
                "summary": "Deactivate a student, keeping their history",
                "parameters": [{"$ref": "#/parameters/StudentID"}],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/students/{id}/history": {
            "get": {
                "tags": ["History"],
                "summary": "A student's attendance history and statistics",
                "parameters": [{"$ref": "#/parameters/StudentID"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/students/{id}/history/stream": {
            "get": {
                "tags": ["History"],
                "summary": "Live attendance history of one student",
                "produces": ["text/event-stream"],
                "parameters": [{"$ref": "#/parameters/StudentID"}],
                "responses": {"200": {"description": "Event stream"}}
            }
        }
    },
    "definitions": {
        "TapRequest": {
            "type": "object",
            "required": ["student_id", "status"],
            "properties": {
                "student_id": {"type": "string"},
                "status": {"type": "string", "enum": ["PRESENT", "ABSENT", "HOLIDAY", "NOT_MARKED"]}
            }
        },
        "TapResult": {
            "type": "object",
            "properties": {
                "outcome": {"type": "string", "enum": ["selected", "rearmed", "confirmed"]},
                "student_id": {"type": "string"},
                "pending_status": {"type": "string"},
                "record": {"$ref": "#/definitions/AttendanceRecord"},
                "notified": {"type": "boolean"}
            }
        },
        "CreateStudentRequest": {
            "type": "object",
            "required": ["name", "parent_phone"],
            "properties": {
                "name": {"type": "string"},
                "parent_phone": {"type": "string", "description": "At least 10 digits after stripping other characters"}
            }
        },
        "UpdateStudentRequest": {
            "type": "object",
            "required": ["name", "parent_phone"],
            "properties": {
                "name": {"type": "string", "minLength": 2},
                "parent_phone": {"type": "string", "pattern": "^[+]?[0-9]{10,15}$"}
            }
        },
        "AttendanceRecord": {
            "type": "object",
            "properties": {
                "id": {"type": "string", "description": "studentId_date"},
                "student_id": {"type": "string"},
                "student_name": {"type": "string"},
                "date": {"type": "string", "format": "date"},
                "status": {"type": "string"},
                "sms_sent": {"type": "boolean"},
                "timestamp": {"type": "string", "format": "date-time"}
            }
        },
        "DailySummary": {
            "type": "object",
            "properties": {
                "present": {"type": "integer"},
                "absent": {"type": "integer"},
                "holiday": {"type": "integer"},
                "not_marked": {"type": "integer"}
            }
        },
        "DailyAttendance": {
            "type": "object",
            "properties": {
                "date": {"type": "string", "format": "date"},
                "records": {"type": "array", "items": {"$ref": "#/definitions/AttendanceRecord"}},
                "summary": {"$ref": "#/definitions/DailySummary"}
            }
        },
        "NotificationError": {
            "type": "object",
            "properties": {
                "student_name": {"type": "string"},
                "phone": {"type": "string"},
                "reason": {"type": "string", "enum": ["permissionDenied", "gatewayFailure"]},
                "detail": {"type": "string"}
            }
        },
        "BoardItem": {
            "type": "object",
            "properties": {
                "student_id": {"type": "string"},
                "name": {"type": "string"},
                "parent_phone": {"type": "string"},
                "status": {"type": "string"},
                "sms_sent": {"type": "boolean"},
                "marked_at": {"type": "string", "format": "date-time"},
                "selected": {"type": "boolean"},
                "pending_status": {"type": "string"}
            }
        },
        "Board": {
            "type": "object",
            "properties": {
                "date": {"type": "string", "format": "date"},
                "students": {"type": "array", "items": {"$ref": "#/definitions/BoardItem"}},
                "summary": {"$ref": "#/definitions/DailySummary"},
                "error": {"type": "string"},
                "notification_error": {"$ref": "#/definitions/NotificationError"},
                "message": {"type": "string"}
            }
        },
        "BoardEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/Board"}
            }
        },
        "TapEnvelope": {
            "type": "object",
            "properties": {
                "data": {"$ref": "#/definitions/TapResult"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
