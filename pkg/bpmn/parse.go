package bpmn

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
)

// Parse reads a BPMN document and builds the model. Element matching is by
// local name, so tasks, end events and sequence flows are recognized both
// with and without the BPMN namespace prefix; an element discovered twice
// collapses into the same entry.
//
// Required attributes: id on every task, end event and sequence flow;
// sourceRef and targetRef on every sequence flow. A missing attribute or
// malformed XML fails the whole load. There is no partial-model mode.
func Parse(r io.Reader) (*Model, error) {
	m := newModel()
	dec := xml.NewDecoder(r)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelParse, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "task":
			id, name := attr(start, "id"), attr(start, "name")
			if id == "" {
				return nil, fmt.Errorf("%w: task without id", ErrModelParse)
			}
			if err := m.addActivity(id, name); err != nil {
				return nil, err
			}

		case "endEvent":
			id := attr(start, "id")
			if id == "" {
				return nil, fmt.Errorf("%w: endEvent without id", ErrModelParse)
			}
			m.endEvents[id] = struct{}{}

		case "sequenceFlow":
			id := attr(start, "id")
			src := attr(start, "sourceRef")
			tgt := attr(start, "targetRef")
			if id == "" || src == "" || tgt == "" {
				return nil, fmt.Errorf("%w: sequenceFlow %q missing id/sourceRef/targetRef", ErrModelParse, id)
			}
			m.addFlow(id, src, tgt)
		}
	}
	return m, nil
}

// ParseFile loads a BPMN model from disk.
func ParseFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelParse, err)
	}
	defer f.Close()
	return Parse(f)
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
