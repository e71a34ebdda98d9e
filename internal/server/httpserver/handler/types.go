package handler

import (
	"time"

	"github.com/yndnr/trajsnap/internal/storage"
)

// Response is the envelope of every JSON response.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

// NewResponse wraps data in a success envelope.
func NewResponse(requestID string, data any) Response {
	return Response{
		Code:      "OK",
		Message:   "success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse builds an error envelope.
func NewErrorResponse(requestID, code, message string) Response {
	return Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
	}
}

// HealthStatus is returned by /health and /ready.
type HealthStatus struct {
	Status    string `json:"status"`
	Engine    string `json:"engine,omitempty"`
	Snapshots int    `json:"snapshots,omitempty"`
}

// TypeInfo describes a registered snapshot type.
type TypeInfo struct {
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
	Attributes   []string `json:"attributes"`
	Fingerprint  string   `json:"fingerprint"`
}

// AttributeInfo describes one attribute of a type.
type AttributeInfo struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Owner   string `json:"owner"`
	Derived bool   `json:"derived"`
}

// TypeDetail is returned by GET /v1/types/{name}.
type TypeDetail struct {
	TypeInfo
	AttributeDetails []AttributeInfo `json:"attribute_details"`
}

// SnapshotList is returned by GET /v1/snapshots.
type SnapshotList struct {
	Items []storage.Info `json:"items"`
	Total int            `json:"total"`
}

// EqualResult is returned by GET /v1/snapshots/{id}/equal/{other}.
type EqualResult struct {
	First  string `json:"first"`
	Second string `json:"second"`
	storage.Comparison
}

// StatsResult is returned by GET /v1/admin/stats.
type StatsResult struct {
	*storage.KVStats
	Snapshots int `json:"snapshots"`
	Cached    int `json:"cached"`
}

// GCResult is returned by POST /v1/admin/gc.
type GCResult struct {
	Reclaimed uint64 `json:"bytes_reclaimed"`
}
