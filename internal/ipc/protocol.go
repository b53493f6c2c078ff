package ipc

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/1broseidon/winrestore/internal/daemon"
	"github.com/1broseidon/winrestore/internal/layout"
	"github.com/1broseidon/winrestore/internal/spaces"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandReload     CommandType = "RELOAD"
	CommandGetStatus  CommandType = "GET_STATUS"
	CommandGetCache   CommandType = "GET_CACHE"
	CommandGetSpaces  CommandType = "GET_SPACES"
	CommandRestoreNow CommandType = "RESTORE_NOW"
	CommandCapture    CommandType = "CAPTURE"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	daemon.Status
	DaemonRunning bool `json:"daemon_running"`
}

// WindowData is one cached slot.
type WindowData struct {
	ID          uint32 `json:"id"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// ProcessData is the cached window sequence of one process.
type ProcessData struct {
	PID     int32        `json:"pid"`
	Windows []WindowData `json:"windows"`
}

// ArrangementData is the snapshot cached for one signature.
type ArrangementData struct {
	Signature string        `json:"signature"`
	Current   bool          `json:"current"`
	Processes []ProcessData `json:"processes"`
}

// CacheData represents the data returned by GET_CACHE
type CacheData struct {
	Current      string            `json:"current"`
	Arrangements []ArrangementData `json:"arrangements"`
}

// SpaceData describes one known virtual desktop.
type SpaceData struct {
	ID        uint32    `json:"id"`
	State     string    `json:"state"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// SpacesData represents the data returned by GET_SPACES
type SpacesData struct {
	Spaces []SpaceData `json:"spaces"`
}

// NewCacheData flattens cache entries into a stable, sorted form.
func NewCacheData(current layout.Signature, entries map[layout.Signature]layout.Snapshot) CacheData {
	data := CacheData{Current: string(current), Arrangements: make([]ArrangementData, 0, len(entries))}
	for sig, snap := range entries {
		arr := ArrangementData{Signature: string(sig), Current: sig == current}
		for _, pid := range snap.Processes() {
			pd := ProcessData{PID: int32(pid)}
			for _, wp := range snap[pid] {
				pd.Windows = append(pd.Windows, WindowData{
					ID:          uint32(wp.ID),
					X:           wp.Bounds.X,
					Y:           wp.Bounds.Y,
					Width:       wp.Bounds.Width,
					Height:      wp.Bounds.Height,
					Placeholder: wp.Bounds.IsPlaceholder(),
				})
			}
			arr.Processes = append(arr.Processes, pd)
		}
		data.Arrangements = append(data.Arrangements, arr)
	}
	sort.Slice(data.Arrangements, func(i, j int) bool {
		return data.Arrangements[i].Signature < data.Arrangements[j].Signature
	})
	return data
}

// NewSpacesData converts tracker entries for the wire.
func NewSpacesData(list []spaces.Space) SpacesData {
	data := SpacesData{Spaces: make([]SpaceData, 0, len(list))}
	for _, sp := range list {
		data.Spaces = append(data.Spaces, SpaceData{
			ID:        uint32(sp.ID),
			State:     sp.State.String(),
			FirstSeen: sp.FirstSeen,
			LastSeen:  sp.LastSeen,
		})
	}
	return data
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}
