package topology

import "github.com/kubilitics/kubilitics-fleet/internal/models"

const (
	edgeTypeStep      = "step"
	edgeDasharray     = "2,2"
	markerArrowClosed = "arrowclosed"
)

// nodeStyle returns the node style for the theme.
func nodeStyle(theme models.Theme) models.NodeStyle {
	if theme == models.ThemeDark {
		return models.NodeStyle{BackgroundColor: "#333", Color: "#fff"}
	}
	return models.NodeStyle{BackgroundColor: "#fff", Color: "#000"}
}

// edgeStyle returns the edge style for the theme.
func edgeStyle(theme models.Theme) models.EdgeStyle {
	stroke := "#a3a3a3"
	if theme == models.ThemeDark {
		stroke = "#ccc"
	}
	return models.EdgeStyle{
		Stroke:          stroke,
		StrokeDasharray: edgeDasharray,
		MarkerType:      markerArrowClosed,
		MarkerColor:     stroke,
	}
}
