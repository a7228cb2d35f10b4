package topology

// decorationCandidate is a resource whose kind rule implies a decorative child.
type decorationCandidate struct {
	parentID string
	name     string
	status   string
	uid      string
	deco     decoration
}

// decorate is the decorative expansion step. It draws an implied sub-resource under each
// candidate unless the namespace already holds a real resource of that kind and name.
// Decorative nodes are flagged synthetic and reuse the parent's UID as edge suffix.
func (p *pass) decorate(cluster, namespace string, candidates []decorationCandidate, realNames map[string]map[string]bool) {
	for _, c := range candidates {
		if realNames[c.deco.kind][c.name] {
			continue
		}
		p.add(nodeSpec{
			id:        c.parentID + ":" + c.deco.suffix,
			label:     c.deco.kind + "-" + c.name,
			kind:      c.deco.kind,
			status:    c.status,
			cluster:   cluster,
			namespace: namespace,
			uid:       c.uid,
			synthetic: true,
		}, c.parentID)
	}
}
