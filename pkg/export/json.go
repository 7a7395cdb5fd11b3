// Package export writes reconstructed case states to downstream-friendly
// formats (JSON, XLSX report).
package export

import (
	"encoding/json"
	"io"
	"os"
	"sort"
	"time"

	"github.com/caseflow/caseflow/pkg/state"
)

// jsonTime serializes a nullable timestamp: zero values become null so
// consumers can tell "unknown" apart from any real instant.
type jsonTime struct {
	time.Time
}

func (t jsonTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

type controlFlowDoc struct {
	Flows      []string `json:"flows"`
	Activities []string `json:"activities"`
}

type ongoingDoc struct {
	ID        *string  `json:"id"`
	StartTime jsonTime `json:"start_time"`
	Resource  string   `json:"resource"`
	Enabled   jsonTime `json:"enabled_time"`
}

type enabledDoc struct {
	ID      string   `json:"id"`
	Enabled jsonTime `json:"enabled_time"`
}

type caseStateDoc struct {
	ControlFlow       controlFlowDoc `json:"control_flow_state"`
	Ongoing           []ongoingDoc   `json:"ongoing_activities"`
	EnabledActivities []enabledDoc   `json:"enabled_activities"`
	EnabledGateways   []enabledDoc   `json:"enabled_gateways"`
}

type resultDoc struct {
	RunID        string                  `json:"run_id"`
	CasesSeen    int                     `json:"cases_seen"`
	CasesDropped int                     `json:"cases_dropped"`
	CaseStates   map[string]caseStateDoc `json:"case_states"`
}

// WriteJSON serializes a reconstruction result. Case ids are emitted as a
// map; slices inside each case keep the computer's deterministic order.
func WriteJSON(w io.Writer, res *state.Result) error {
	doc := resultDoc{
		RunID:        res.RunID,
		CasesSeen:    res.CasesSeen,
		CasesDropped: res.CasesDropped,
		CaseStates:   make(map[string]caseStateDoc, len(res.States)),
	}
	for caseID, cs := range res.States {
		doc.CaseStates[caseID] = toDoc(cs)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteJSONFile writes the result to a file.
func WriteJSONFile(path string, res *state.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteJSON(f, res)
}

func toDoc(cs *state.CaseState) caseStateDoc {
	doc := caseStateDoc{
		ControlFlow: controlFlowDoc{
			Flows:      emptyNotNil(cs.ControlFlow.Flows),
			Activities: emptyNotNil(cs.ControlFlow.Activities),
		},
		Ongoing:           make([]ongoingDoc, 0, len(cs.Ongoing)),
		EnabledActivities: make([]enabledDoc, 0, len(cs.EnabledActivities)),
		EnabledGateways:   make([]enabledDoc, 0, len(cs.EnabledGateways)),
	}
	for _, oa := range cs.Ongoing {
		var id *string
		if oa.TaskID != "" {
			taskID := oa.TaskID
			id = &taskID
		}
		doc.Ongoing = append(doc.Ongoing, ongoingDoc{
			ID:        id,
			StartTime: jsonTime{oa.Start},
			Resource:  oa.Resource,
			Enabled:   jsonTime{oa.Enabled},
		})
	}
	for _, ea := range cs.EnabledActivities {
		doc.EnabledActivities = append(doc.EnabledActivities, enabledDoc{ID: ea.ID, Enabled: jsonTime{ea.Enabled}})
	}
	for _, gw := range cs.EnabledGateways {
		doc.EnabledGateways = append(doc.EnabledGateways, enabledDoc{ID: gw.ID, Enabled: jsonTime{gw.Enabled}})
	}
	return doc
}

func emptyNotNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// SortedCaseIDs returns the case ids of a result in ascending order.
func SortedCaseIDs(res *state.Result) []string {
	ids := make([]string, 0, len(res.States))
	for id := range res.States {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
