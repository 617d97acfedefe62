package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "ShiftWise API",
        "description": "Interactive shift-schedule editing service",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Editor", "description": "Interactive schedule-editing sessions"},
        {"name": "Exports", "description": "Finalized schedule exports"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/schedules/{id}/sessions": {
            "post": {
                "tags": ["Editor"],
                "summary": "Open an edit session for a schedule",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Schedule not found"}
                }
            }
        },
        "/sessions/{id}": {
            "delete": {
                "tags": ["Editor"],
                "summary": "Discard an edit session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/sessions/{id}/board": {
            "get": {
                "tags": ["Editor"],
                "summary": "Resolve the full schedule board through the draft overlay",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/slots/{key}": {
            "get": {
                "tags": ["Editor"],
                "summary": "Resolve one slot's effective occupants through the draft overlay",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "key", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Malformed slot key"},
                    "404": {"description": "Slot not part of the schedule"}
                }
            }
        },
        "/sessions/{id}/selection": {
            "post": {
                "tags": ["Editor"],
                "summary": "Select a slot and build its ranked candidate list",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SelectSlotRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Slot not part of the schedule"},
                    "410": {"description": "Session expired"}
                }
            }
        },
        "/sessions/{id}/candidates": {
            "get": {
                "tags": ["Editor"],
                "summary": "Return the current candidate list for the selected slot",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/commands": {
            "post": {
                "tags": ["Editor"],
                "summary": "Apply one edit command to the session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CommandRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Command precondition failed"}
                }
            }
        },
        "/sessions/{id}/changes": {
            "get": {
                "tags": ["Editor"],
                "summary": "List the session's pending changes in replay order",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/sessions/{id}/changes/{key}": {
            "delete": {
                "tags": ["Editor"],
                "summary": "Cancel one pending change",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "key", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Pending change not found"}
                }
            }
        },
        "/sessions/{id}/commit": {
            "post": {
                "tags": ["Editor"],
                "summary": "Commit every pending change of the session",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Committed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict, session resynchronized"}
                }
            }
        },
        "/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Queue an export of a schedule's committed assignments",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/{id}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Get export job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/download/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a completed export via signed token",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "403": {"description": "Invalid or expired token"}
                }
            }
        }
    },
    "definitions": {
        "SelectSlotRequest": {
            "type": "object",
            "required": ["date", "shift_id", "position_id"],
            "properties": {
                "date": {"type": "string", "example": "2026-03-02"},
                "shift_id": {"type": "string"},
                "position_id": {"type": "string"}
            }
        },
        "CommandRequest": {
            "type": "object",
            "required": ["type", "employee_id"],
            "properties": {
                "type": {"type": "string", "enum": ["ASSIGN", "REMOVE", "REPLACE", "MOVE", "RESIZE"]},
                "target_slot": {"$ref": "#/definitions/SelectSlotRequest"},
                "source_slot": {"$ref": "#/definitions/SelectSlotRequest"},
                "employee_id": {"type": "string"},
                "outgoing_employee_id": {"type": "string"},
                "custom_start": {"type": "string", "example": "09:30"},
                "custom_end": {"type": "string", "example": "15:00"},
                "confirm_override": {"type": "boolean"}
            }
        },
        "ExportRequest": {
            "type": "object",
            "required": ["schedule_id", "format"],
            "properties": {
                "schedule_id": {"type": "string"},
                "format": {"type": "string", "enum": ["csv", "pdf"]}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
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
