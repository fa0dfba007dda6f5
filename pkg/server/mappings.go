package server

import (
	"github.com/getmockd/protomock/pkg/config"
	"github.com/getmockd/protomock/pkg/stub"
)

// resetMappings loads the file-backed stubs for a full store reset.
func (s *Server) resetMappings() ([]*stub.Stub, error) {
	stubs, err := config.LoadMappings(s.opts.RootDir)
	if err != nil {
		return nil, err
	}

	s.mappingsMu.Lock()
	defer s.mappingsMu.Unlock()
	s.fileIDs = make(map[string]struct{}, len(stubs))
	for _, st := range stubs {
		s.fileIDs[st.ID] = struct{}{}
	}
	return stubs, nil
}

// applyMappings swaps the file-backed stubs for stubs, leaving stubs
// registered at runtime in place.
func (s *Server) applyMappings(stubs []*stub.Stub) {
	s.mappingsMu.Lock()
	defer s.mappingsMu.Unlock()

	next := make(map[string]struct{}, len(stubs))
	for _, st := range stubs {
		next[st.ID] = struct{}{}
	}
	for id := range s.fileIDs {
		if _, ok := next[id]; !ok {
			s.store.Delete(id)
		}
	}
	for _, st := range stubs {
		if _, err := s.store.Add(st); err != nil {
			s.log.Warn("skipping invalid stub", "id", st.ID, "error", err)
		}
	}
	s.fileIDs = next
}
