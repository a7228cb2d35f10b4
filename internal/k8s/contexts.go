package k8s

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"k8s.io/client-go/tools/clientcmd"
)

// DefaultContextSuffix marks kubeconfig contexts that point at a control plane.
const DefaultContextSuffix = "-kubeflex"

// ContextInfo is one kubeconfig context and the cluster it targets.
type ContextInfo struct {
	Name    string `json:"name"`
	Cluster string `json:"cluster"`
}

// KubeconfigInfo is the filtered view of a kubeconfig file.
type KubeconfigInfo struct {
	Contexts       []ContextInfo `json:"contexts"`
	Clusters       []string      `json:"clusters"`
	CurrentContext string        `json:"currentContext"`
}

// DefaultKubeconfigPath returns ~/.kube/config, or "" when the home directory is unknown.
func DefaultKubeconfigPath() string {
	homeDir, _ := os.UserHomeDir()
	if homeDir == "" {
		return ""
	}
	return filepath.Join(homeDir, ".kube", "config")
}

// GetKubeconfigContexts loads kubeconfigPath and returns the contexts whose name ends in
// suffix, plus the clusters those contexts reference. An empty suffix keeps every context.
// Results are sorted by name.
func GetKubeconfigContexts(kubeconfigPath, suffix string) (*KubeconfigInfo, error) {
	if kubeconfigPath == "" {
		kubeconfigPath = DefaultKubeconfigPath()
	}
	if kubeconfigPath == "" {
		return &KubeconfigInfo{Contexts: []ContextInfo{}, Clusters: []string{}}, nil
	}
	raw, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		&clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfigPath},
		&clientcmd.ConfigOverrides{},
	).RawConfig()
	if err != nil {
		return nil, fmt.Errorf("load kubeconfig %s: %w", kubeconfigPath, err)
	}

	info := &KubeconfigInfo{
		Contexts:       []ContextInfo{},
		Clusters:       []string{},
		CurrentContext: raw.CurrentContext,
	}
	clusters := make(map[string]bool)
	for name, ctx := range raw.Contexts {
		if !strings.HasSuffix(name, suffix) {
			continue
		}
		info.Contexts = append(info.Contexts, ContextInfo{Name: name, Cluster: ctx.Cluster})
		if _, ok := raw.Clusters[ctx.Cluster]; ok && !clusters[ctx.Cluster] {
			clusters[ctx.Cluster] = true
			info.Clusters = append(info.Clusters, ctx.Cluster)
		}
	}
	sort.Slice(info.Contexts, func(i, j int) bool { return info.Contexts[i].Name < info.Contexts[j].Name })
	sort.Strings(info.Clusters)
	return info, nil
}
