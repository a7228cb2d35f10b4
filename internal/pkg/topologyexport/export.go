// Package topologyexport renders positioned topology graphs as JSON, SVG, draw.io XML and Mermaid.
package topologyexport

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kubilitics/kubilitics-fleet/internal/models"
)

// Format is an export format name as accepted by the export endpoint.
type Format string

const (
	FormatJSON    Format = "json"
	FormatSVG     Format = "svg"
	FormatDrawio  Format = "drawio"
	FormatMermaid Format = "mermaid"
)

// ParseFormat returns the format for name; empty means JSON.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatSVG, FormatDrawio, FormatMermaid:
		return f, nil
	}
	return "", fmt.Errorf("unsupported export format %q", name)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatSVG:
		return "image/svg+xml"
	case FormatDrawio:
		return "application/xml"
	case FormatMermaid:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}

// Box is the rendered node size; positions are top-left corners.
type Box struct {
	Width  float64
	Height float64
}

// DefaultBox matches the layout engine's node geometry.
var DefaultBox = Box{Width: 146, Height: 30}

// Export renders g in format f.
func Export(g *models.TopologyGraph, f Format, box Box) ([]byte, error) {
	switch f {
	case FormatJSON:
		return GraphToJSON(g)
	case FormatSVG:
		return GraphToSVG(g, box)
	case FormatDrawio:
		return GraphToDrawioXML(g, box)
	case FormatMermaid:
		return []byte(GraphToMermaid(g)), nil
	}
	return nil, fmt.Errorf("unsupported export format %q", f)
}

// GraphToJSON returns the topology graph as JSON bytes.
func GraphToJSON(g *models.TopologyGraph) ([]byte, error) {
	if g == nil {
		return []byte("null"), nil
	}
	return json.MarshalIndent(g, "", "  ")
}

type bounds struct{ minX, minY, maxX, maxY float64 }

func graphBounds(g *models.TopologyGraph, box Box) bounds {
	b := bounds{minX: 1e9, minY: 1e9, maxX: -1e9, maxY: -1e9}
	for _, n := range g.Nodes {
		x, y := n.Position.X, n.Position.Y
		if x < b.minX {
			b.minX = x
		}
		if y < b.minY {
			b.minY = y
		}
		if x+box.Width > b.maxX {
			b.maxX = x + box.Width
		}
		if y+box.Height > b.maxY {
			b.maxY = y + box.Height
		}
	}
	return b
}

// GraphToSVG returns an SVG document with nodes at their layout positions and step edges
// from the right side of the parent to the left side of the child.
func GraphToSVG(g *models.TopologyGraph, box Box) ([]byte, error) {
	if g == nil || len(g.Nodes) == 0 {
		return []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="400" height="100"><text x="20" y="50" font-size="14">No resources</text></svg>`), nil
	}
	b := graphBounds(g, box)
	width := int(b.maxX + 40)
	height := int(b.maxY + 40)
	if width < 400 {
		width = 400
	}
	if height < 200 {
		height = 200
	}

	posByID := make(map[string]models.Position, len(g.Nodes))
	for _, n := range g.Nodes {
		posByID[n.ID] = n.Position
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, width, height, width, height)
	buf.WriteString(`<defs><style>.edge { stroke-width: 1; fill: none; } .label { font: 11px sans-serif; }</style></defs>`)
	for _, e := range g.Edges {
		src, ok1 := posByID[e.Source]
		dst, ok2 := posByID[e.Target]
		if !ok1 || !ok2 {
			continue
		}
		sx, sy := src.X+box.Width, src.Y+box.Height/2
		dx, dy := dst.X, dst.Y+box.Height/2
		midX := (sx + dx) / 2
		stroke := e.Style.Stroke
		if stroke == "" {
			stroke = "#a3a3a3"
		}
		dash := ""
		if e.Style.StrokeDasharray != "" {
			dash = fmt.Sprintf(` stroke-dasharray="%s"`, escapeXML(e.Style.StrokeDasharray))
		}
		fmt.Fprintf(&buf, `<path class="edge" stroke="%s"%s d="M %.1f %.1f H %.1f V %.1f H %.1f"/>`,
			escapeXML(stroke), dash, sx, sy, midX, dy, dx)
	}
	for _, n := range g.Nodes {
		x, y := n.Position.X, n.Position.Y
		fill, color := n.Style.BackgroundColor, n.Style.Color
		if fill == "" {
			fill = "#fff"
		}
		if color == "" {
			color = "#000"
		}
		stroke := "#64748b"
		if n.Synthetic {
			stroke = "#f59e0b"
		}
		fmt.Fprintf(&buf, `<rect x="%.1f" y="%.1f" width="%.0f" height="%.0f" rx="4" fill="%s" stroke="%s"/>`,
			x, y, box.Width, box.Height, escapeXML(fill), stroke)
		fmt.Fprintf(&buf, `<text class="label" x="%.1f" y="%.1f" fill="%s">%s</text>`,
			x+8, y+box.Height/2+4, escapeXML(color), escapeXML(truncate(n.Label, 20)))
	}
	buf.WriteString("</svg>")
	return buf.Bytes(), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func escapeXML(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\"", "&quot;").Replace(s)
}

// draw.io mxfile structure (minimal valid export)
type mxfile struct {
	XMLName xml.Name  `xml:"mxfile"`
	Host    string    `xml:"host,attr"`
	Agent   string    `xml:"agent,attr"`
	Version string    `xml:"version,attr"`
	Diagram mxDiagram `xml:"diagram"`
}

type mxDiagram struct {
	ID           string       `xml:"id,attr"`
	Name         string       `xml:"name,attr"`
	MxGraphModel mxGraphModel `xml:"mxGraphModel"`
}

type mxGraphModel struct {
	DX       int    `xml:"dx,attr"`
	DY       int    `xml:"dy,attr"`
	Grid     int    `xml:"grid,attr"`
	GridSize int    `xml:"gridSize,attr"`
	Root     mxRoot `xml:"root"`
}

type mxRoot struct {
	Cells []mxCell `xml:"mxCell"`
}

type mxCell struct {
	ID       string      `xml:"id,attr"`
	Parent   string      `xml:"parent,attr,omitempty"`
	Value    string      `xml:"value,attr,omitempty"`
	Style    string      `xml:"style,attr,omitempty"`
	Vertex   string      `xml:"vertex,attr,omitempty"`
	Edge     string      `xml:"edge,attr,omitempty"`
	Source   string      `xml:"source,attr,omitempty"`
	Target   string      `xml:"target,attr,omitempty"`
	Geometry *mxGeometry `xml:"mxGeometry,omitempty"`
}

type mxGeometry struct {
	X        string `xml:"x,attr,omitempty"`
	Y        string `xml:"y,attr,omitempty"`
	Width    string `xml:"width,attr,omitempty"`
	Height   string `xml:"height,attr,omitempty"`
	Relative string `xml:"relative,attr,omitempty"`
	As       string `xml:"as,attr,omitempty"`
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// GraphToDrawioXML returns draw.io (diagrams.net) XML bytes.
func GraphToDrawioXML(g *models.TopologyGraph, box Box) ([]byte, error) {
	if g == nil || len(g.Nodes) == 0 {
		return []byte(`<mxfile host="app.diagrams.net"><diagram id="0" name="empty"><mxGraphModel dx="0" dy="0" grid="1" gridSize="10"><root><mxCell id="0"/><mxCell id="1" parent="0"/></root></mxGraphModel></diagram></mxfile>`), nil
	}
	cellID := 2
	cells := []mxCell{{ID: "0"}, {ID: "1", Parent: "0"}}
	nodeIDToCell := make(map[string]string, len(g.Nodes))
	for _, n := range g.Nodes {
		cid := strconv.Itoa(cellID)
		cellID++
		nodeIDToCell[n.ID] = cid
		style := fmt.Sprintf("rounded=1;whiteSpace=wrap;html=1;fillColor=%s;fontColor=%s;strokeColor=#64748b;",
			orDefault(n.Style.BackgroundColor, "#fff"), orDefault(n.Style.Color, "#000"))
		if n.Synthetic {
			style += "dashed=1;"
		}
		cells = append(cells, mxCell{
			ID:     cid,
			Parent: "1",
			Value:  truncate(n.Kind+": "+n.Label, 40),
			Style:  style,
			Vertex: "1",
			Geometry: &mxGeometry{
				X: formatFloat(n.Position.X), Y: formatFloat(n.Position.Y),
				Width: formatFloat(box.Width), Height: formatFloat(box.Height), As: "geometry",
			},
		})
	}
	for _, e := range g.Edges {
		srcID, ok1 := nodeIDToCell[e.Source]
		dstID, ok2 := nodeIDToCell[e.Target]
		if !ok1 || !ok2 {
			continue
		}
		style := fmt.Sprintf("edgeStyle=orthogonalEdgeStyle;endArrow=classic;html=1;strokeColor=%s;", orDefault(e.Style.Stroke, "#a3a3a3"))
		if e.Style.StrokeDasharray != "" {
			style += "dashed=1;"
		}
		cells = append(cells, mxCell{
			ID:       strconv.Itoa(cellID),
			Parent:   "1",
			Edge:     "1",
			Source:   srcID,
			Target:   dstID,
			Style:    style,
			Geometry: &mxGeometry{Relative: "1", As: "geometry"},
		})
		cellID++
	}
	mx := mxfile{
		Host: "app.diagrams.net", Agent: "kubilitics-fleet", Version: "21.0.0",
		Diagram: mxDiagram{
			ID: "topology", Name: "Topology",
			MxGraphModel: mxGraphModel{DX: 1200, DY: 800, Grid: 1, GridSize: 10, Root: mxRoot{Cells: cells}},
		},
	}
	return xml.MarshalIndent(mx, "", "  ")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

var (
	mermaidIDRe    = regexp.MustCompile(`[^a-zA-Z0-9_]`)
	mermaidUnderRe = regexp.MustCompile(`_+`)
)

// sanitizeID makes a string safe for Mermaid node IDs.
func sanitizeID(s string) string {
	s = mermaidUnderRe.ReplaceAllString(mermaidIDRe.ReplaceAllString(s, "_"), "_")
	if s == "" {
		s = "node"
	}
	return s
}

// GraphToMermaid converts a graph to a left-to-right Mermaid flowchart.
func GraphToMermaid(g *models.TopologyGraph) string {
	if g == nil || len(g.Nodes) == 0 {
		return "flowchart LR\n  empty[No resources]"
	}
	lines := []string{"flowchart LR"}
	ids := make(map[string]string, len(g.Nodes))
	used := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		id := sanitizeID(n.ID)
		for base, i := id, 2; used[id]; i++ {
			id = base + "_" + strconv.Itoa(i)
		}
		used[id] = true
		ids[n.ID] = id
		label := strings.ReplaceAll(truncate(n.Label, 25), `"`, "'")
		lines = append(lines, `  `+id+`["`+n.Kind+`: `+label+`"]`)
	}
	for _, e := range g.Edges {
		src, ok1 := ids[e.Source]
		dst, ok2 := ids[e.Target]
		if !ok1 || !ok2 {
			continue
		}
		arrow := "-->"
		if e.Animated {
			arrow = "-.->"
		}
		lines = append(lines, "  "+src+" "+arrow+" "+dst)
	}
	return strings.Join(lines, "\n")
}
