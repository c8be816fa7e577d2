package workflow

// MetaEntry is the diagnostic payload recorded by one stage execution.
// Attempt counts executions of the same stage within a run, starting at 1.
type MetaEntry struct {
	Stage   StageName      `json:"stage"`
	Attempt int            `json:"attempt"`
	Payload map[string]any `json:"payload"`
}

// MetaLog is the append-only record of stage executions.
type MetaLog []MetaEntry

// Append records a new entry for stage. Earlier entries are never modified.
func (m *MetaLog) Append(stage StageName, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	*m = append(*m, MetaEntry{
		Stage:   stage,
		Attempt: len(m.Entries(stage)) + 1,
		Payload: payload,
	})
}

// Entries returns the entries recorded for stage in execution order.
func (m MetaLog) Entries(stage StageName) []MetaEntry {
	var entries []MetaEntry
	for _, e := range m {
		if e.Stage == stage {
			entries = append(entries, e)
		}
	}
	return entries
}

// Latest returns the most recent entry recorded for stage.
func (m MetaLog) Latest(stage StageName) (MetaEntry, bool) {
	for i := len(m) - 1; i >= 0; i-- {
		if m[i].Stage == stage {
			return m[i], true
		}
	}
	return MetaEntry{}, false
}
