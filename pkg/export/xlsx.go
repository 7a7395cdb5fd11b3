package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/caseflow/caseflow/pkg/state"
)

// WriteXLSX writes a two-sheet workbook: one row per ongoing activity and
// one row per enabled element, for analysts who resume cases by hand.
func WriteXLSX(path string, res *state.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	const ongoingSheet = "Ongoing Activities"
	const enabledSheet = "Enabled Elements"

	f.SetSheetName(f.GetSheetName(0), ongoingSheet)
	if _, err := f.NewSheet(enabledSheet); err != nil {
		return err
	}

	ongoingHeader := []interface{}{"case_id", "task_id", "start_time", "resource", "enabled_time"}
	if err := f.SetSheetRow(ongoingSheet, "A1", &ongoingHeader); err != nil {
		return err
	}
	enabledHeader := []interface{}{"case_id", "element_id", "kind", "enabled_time"}
	if err := f.SetSheetRow(enabledSheet, "A1", &enabledHeader); err != nil {
		return err
	}

	ongoingRow, enabledRow := 2, 2
	for _, caseID := range SortedCaseIDs(res) {
		cs := res.States[caseID]
		for _, oa := range cs.Ongoing {
			row := []interface{}{caseID, oa.TaskID, cell(oa.Start), oa.Resource, cell(oa.Enabled)}
			if err := f.SetSheetRow(ongoingSheet, fmt.Sprintf("A%d", ongoingRow), &row); err != nil {
				return err
			}
			ongoingRow++
		}
		for _, ea := range cs.EnabledActivities {
			row := []interface{}{caseID, ea.ID, "activity", cell(ea.Enabled)}
			if err := f.SetSheetRow(enabledSheet, fmt.Sprintf("A%d", enabledRow), &row); err != nil {
				return err
			}
			enabledRow++
		}
		for _, gw := range cs.EnabledGateways {
			row := []interface{}{caseID, gw.ID, "gateway", cell(gw.Enabled)}
			if err := f.SetSheetRow(enabledSheet, fmt.Sprintf("A%d", enabledRow), &row); err != nil {
				return err
			}
			enabledRow++
		}
	}

	return f.SaveAs(path)
}

func cell(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
