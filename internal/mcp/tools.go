package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) handleLayoutStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, LayoutStatusOutput, error) {
	st, err := s.client.GetStatus()
	if err != nil {
		return nil, LayoutStatusOutput{}, fmt.Errorf("failed to query daemon: %w", err)
	}
	out := LayoutStatusOutput{
		Signature:          string(st.Signature),
		SignatureMode:      string(st.SignatureMode),
		Matcher:            st.Matcher,
		DryRun:             st.DryRun,
		CachedArrangements: st.CachedArrangements,
		CachedWindows:      st.CachedWindows,
		KnownSpaces:        st.KnownSpaces,
		PendingSpaces:      st.PendingSpaces,
		UptimeSeconds:      st.UptimeSeconds,
	}
	if st.LastRestore != nil {
		out.LastRestoreStatus = string(st.LastRestore.Status)
	}
	return nil, out, nil
}

func (s *Server) handleListCachedLayouts(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, ListCachedLayoutsOutput, error) {
	cache, err := s.client.GetCache()
	if err != nil {
		return nil, ListCachedLayoutsOutput{}, fmt.Errorf("failed to query daemon: %w", err)
	}
	out := ListCachedLayoutsOutput{Current: cache.Current, Layouts: make([]CachedLayout, 0, len(cache.Arrangements))}
	for _, arr := range cache.Arrangements {
		cl := CachedLayout{Signature: arr.Signature, Current: arr.Current, Processes: len(arr.Processes)}
		for _, p := range arr.Processes {
			cl.Windows += len(p.Windows)
			for _, w := range p.Windows {
				if w.Placeholder {
					cl.Placeholders++
				}
			}
		}
		out.Layouts = append(out.Layouts, cl)
	}
	return nil, out, nil
}

func (s *Server) handleRestoreNow(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, RestoreNowOutput, error) {
	rep, err := s.client.RestoreNow()
	if err != nil {
		return nil, RestoreNowOutput{}, fmt.Errorf("restore failed: %w", err)
	}
	s.logger.Info("restore requested over MCP", "status", rep.Status, "written", rep.Written())

	out := RestoreNowOutput{
		Status:    string(rep.Status),
		Space:     uint32(rep.Space),
		Signature: string(rep.Signature),
		DryRun:    rep.DryRun,
		Written:   rep.Written(),
		Failed:    rep.Failed(),
	}
	for _, p := range rep.Processes {
		out.Processes = append(out.Processes, ProcessResult{
			PID:          int32(p.PID),
			Status:       string(p.Status),
			Written:      p.Written,
			Placeholders: p.Placeholders,
			Failed:       p.Failed,
		})
	}
	return nil, out, nil
}
