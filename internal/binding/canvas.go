package binding

import (
	"fmt"

	"github.com/kubilitics/kubilitics-fleet/internal/models"
)

// Canvas is the drag-and-drop surface holding the workload and cluster labels a policy
// binds. Items keep drop order; the first item of each side drives policy preparation.
// Canvas is not safe for concurrent use.
type Canvas struct {
	parser    *LabelParser
	workloads []string
	clusters  []string
	labels    map[string]map[string]string
}

// NewCanvas creates an empty canvas that decodes ids with parser.
func NewCanvas(parser *LabelParser) *Canvas {
	if parser == nil {
		parser = NewLabelParser(false)
	}
	return &Canvas{parser: parser, labels: make(map[string]map[string]string)}
}

// Add drops a label id onto one side of the canvas. It returns an informational notice
// for workload labels that name a namespace or a cluster-scoped resource.
func (c *Canvas) Add(itemType models.CanvasItemType, id string) (string, error) {
	label, err := c.parser.Parse(id)
	if err != nil {
		return "", err
	}
	list, err := c.side(itemType)
	if err != nil {
		return "", err
	}
	for _, existing := range *list {
		if existing == id {
			return "", fmt.Errorf("%w: %s %s", ErrDuplicateItem, itemType, id)
		}
	}
	*list = append(*list, id)
	c.labels[id] = map[string]string{label.Key: label.Value}

	if itemType != models.CanvasWorkload {
		return "", nil
	}
	switch {
	case IsNamespaceLabel(label):
		return fmt.Sprintf("Added namespace with label: %s=%s", label.Key, label.Value), nil
	case IsClusterScoped(label):
		return fmt.Sprintf("Added cluster-scoped resource with label: %s=%s", label.Key, label.Value), nil
	}
	return "", nil
}

// Remove takes a label id off one side of the canvas and reports whether it was present.
func (c *Canvas) Remove(itemType models.CanvasItemType, id string) bool {
	list, err := c.side(itemType)
	if err != nil {
		return false
	}
	for i, existing := range *list {
		if existing != id {
			continue
		}
		*list = append((*list)[:i], (*list)[i+1:]...)
		if !c.contains(id) {
			delete(c.labels, id)
		}
		return true
	}
	return false
}

// Clear empties both sides and the label store.
func (c *Canvas) Clear() {
	c.workloads = nil
	c.clusters = nil
	c.labels = make(map[string]map[string]string)
}

// State returns a copy of the canvas contents.
func (c *Canvas) State() models.CanvasState {
	state := models.CanvasState{
		Workloads: append([]string{}, c.workloads...),
		Clusters:  append([]string{}, c.clusters...),
		Labels:    make(map[string]map[string]string, len(c.labels)),
	}
	for id, labels := range c.labels {
		cp := make(map[string]string, len(labels))
		for k, v := range labels {
			cp[k] = v
		}
		state.Labels[id] = cp
	}
	return state
}

func (c *Canvas) side(itemType models.CanvasItemType) (*[]string, error) {
	switch itemType {
	case models.CanvasWorkload:
		return &c.workloads, nil
	case models.CanvasCluster:
		return &c.clusters, nil
	}
	return nil, fmt.Errorf("unknown canvas item type %q", itemType)
}

func (c *Canvas) contains(id string) bool {
	for _, list := range [][]string{c.workloads, c.clusters} {
		for _, existing := range list {
			if existing == id {
				return true
			}
		}
	}
	return false
}
