// Package bpmn provides the process-model adapter: it loads activities,
// sequence flows and end events from a BPMN document and answers the
// structural queries state reconstruction needs (reverse name lookup,
// end-event membership, upstream-task traversal).
package bpmn

import "fmt"

// Model is the loaded, immutable view of a BPMN process.
type Model struct {
	// activities maps task id to display name.
	activities map[string]string

	// taskNameToID is the reverse of activities.
	taskNameToID map[string]string

	// flowTargets maps sequence-flow id to its targetRef.
	flowTargets map[string]string

	// flowSources maps sequence-flow id to its sourceRef.
	flowSources map[string]string

	// incomingFlows maps an element id to the ids of flows targeting it,
	// built once so upstream traversal does not rescan every flow.
	incomingFlows map[string][]string

	// endEvents is the set of terminal element ids.
	endEvents map[string]struct{}
}

func newModel() *Model {
	return &Model{
		activities:    make(map[string]string),
		taskNameToID:  make(map[string]string),
		flowTargets:   make(map[string]string),
		flowSources:   make(map[string]string),
		incomingFlows: make(map[string][]string),
		endEvents:     make(map[string]struct{}),
	}
}

func (m *Model) addActivity(id, name string) error {
	if name == "" {
		name = fmt.Sprintf("Unnamed Task %s", id)
	}
	if prev, ok := m.taskNameToID[name]; ok && prev != id {
		return fmt.Errorf("%w: %q used by %s and %s", ErrDuplicateActivityName, name, prev, id)
	}
	m.activities[id] = name
	m.taskNameToID[name] = id
	return nil
}

func (m *Model) addFlow(id, sourceRef, targetRef string) {
	m.flowTargets[id] = targetRef
	m.flowSources[id] = sourceRef
	m.incomingFlows[targetRef] = append(m.incomingFlows[targetRef], id)
}

// IsEndEvent reports whether the element id is a terminal end event.
func (m *Model) IsEndEvent(elementID string) bool {
	_, ok := m.endEvents[elementID]
	return ok
}

// IsActivity reports whether the element id is a task.
func (m *Model) IsActivity(elementID string) bool {
	_, ok := m.activities[elementID]
	return ok
}

// ActivityName returns the display name of a task.
func (m *Model) ActivityName(taskID string) (string, bool) {
	name, ok := m.activities[taskID]
	return name, ok
}

// TaskIDByName resolves a log activity label to a task id. A miss means
// the label is not a model activity; callers skip it rather than fail.
func (m *Model) TaskIDByName(name string) (string, bool) {
	id, ok := m.taskNameToID[name]
	return id, ok
}

// FlowTarget returns the target element of a sequence flow.
func (m *Model) FlowTarget(flowID string) (string, bool) {
	tgt, ok := m.flowTargets[flowID]
	return tgt, ok
}

// FlowSource returns the source element of a sequence flow.
func (m *Model) FlowSource(flowID string) (string, bool) {
	src, ok := m.flowSources[flowID]
	return src, ok
}

// ActivityCount returns the number of tasks in the model.
func (m *Model) ActivityCount() int { return len(m.activities) }

// FlowCount returns the number of sequence flows in the model.
func (m *Model) FlowCount() int { return len(m.flowTargets) }

// UpstreamTasks walks sequence flows backwards from startID and collects
// the first activities reached on each path. Activities are traversal
// boundaries: the search never looks further upstream of a task, and an
// activity start id yields itself. An empty result means no upstream task
// constrains the element (e.g. the start event feeds it directly).
func (m *Model) UpstreamTasks(startID string) map[string]struct{} {
	tasks := make(map[string]struct{})
	visited := make(map[string]struct{})
	stack := []string{startID}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, ok := m.activities[current]; ok {
			tasks[current] = struct{}{}
			continue
		}
		for _, flowID := range m.incomingFlows[current] {
			src := m.flowSources[flowID]
			if _, seen := visited[src]; seen {
				continue
			}
			visited[src] = struct{}{}
			stack = append(stack, src)
		}
	}
	return tasks
}
