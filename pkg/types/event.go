// Package types holds the wire types shared between the scouting client layers
// and the sync server.
package types

import (
	"encoding/json"
	"time"
)

// ScoutEvent is one synced scouting session as stored server-side.
type ScoutEvent struct {
	ID        int64             `json:"id" firestore:"id"`
	User      string            `json:"user" firestore:"user"`
	Name      string            `json:"name" firestore:"name"`
	Date      string            `json:"date" firestore:"date"`
	Location  string            `json:"location" firestore:"location"`
	Scout     string            `json:"scout" firestore:"scout"`
	Count     int               `json:"count" firestore:"count"`
	Rows      []json.RawMessage `json:"rows" firestore:"rows"`
	DSP       bool              `json:"dsp" firestore:"dsp"`
	Blast     []json.RawMessage `json:"blast" firestore:"blast"`
	Trackman  []json.RawMessage `json:"trackman" firestore:"trackman"`
	CreatedAt time.Time         `json:"createdAt" firestore:"createdAt"`
}

// EventSubmission is the body of POST /api/events. Everything except Date and
// Rows is optional and defaulted server-side.
type EventSubmission struct {
	Name     string            `json:"name"`
	Date     string            `json:"date"`
	Location string            `json:"location"`
	Scout    string            `json:"scout"`
	Rows     []json.RawMessage `json:"rows"`
	DSP      bool              `json:"dsp"`
	Blast    []json.RawMessage `json:"blast"`
	Trackman []json.RawMessage `json:"trackman"`
}

// SubmitResponse acknowledges an accepted event.
type SubmitResponse struct {
	OK bool  `json:"ok"`
	ID int64 `json:"id"`
}

// ListResponse is the body of GET /api/events.
type ListResponse struct {
	User   string       `json:"user"`
	Events []ScoutEvent `json:"events"`
}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the signed token plus display fields.
type LoginResponse struct {
	Token    string `json:"token"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

// ErrorResponse is the uniform error body for the API surface.
type ErrorResponse struct {
	Message string `json:"message"`
}
