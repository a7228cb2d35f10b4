package models

import (
	"encoding/json"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// ClusterSnapshot is one cluster of the live topology feed.
type ClusterSnapshot struct {
	Cluster    string              `json:"cluster"`
	Namespaces []NamespaceSnapshot `json:"namespaces"`
}

// NamespaceSnapshot groups the resources of one namespace by kind.
type NamespaceSnapshot struct {
	Namespace     string         `json:"namespace"`
	ResourceTypes []ResourceType `json:"resourceTypes"`
}

// ResourceType lists the resources of one kind/version inside a namespace.
type ResourceType struct {
	Kind      string          `json:"kind"`
	Version   string          `json:"version"`
	Resources []ResourceEntry `json:"resources"`
}

// ResourceEntry is a resource plus the descendants the feed already resolved for it.
type ResourceEntry struct {
	Raw         *RawResource      `json:"raw"`
	ReplicaSets []ReplicaSetEntry `json:"replicaSets,omitempty"`
	Pods        []PodEntry        `json:"pods,omitempty"`
}

// ReplicaSetEntry is a ReplicaSet owned by a Deployment (or the ReplicaSet itself for bare ReplicaSets).
type ReplicaSetEntry struct {
	Name string       `json:"name"`
	Raw  *RawResource `json:"raw"`
	Pods []PodEntry   `json:"pods,omitempty"`
}

// PodEntry is a pod owned by a workload.
type PodEntry struct {
	Name string       `json:"name"`
	Raw  *RawResource `json:"raw"`
}

// RawResource is the Kubernetes object as delivered by the feed.
type RawResource struct {
	metav1.TypeMeta `json:",inline"`
	Metadata        metav1.ObjectMeta `json:"metadata"`
	Spec            json.RawMessage   `json:"spec,omitempty"`
	Status          *ResourceStatus   `json:"status,omitempty"`
}

// ResourceStatus is the subset of status the topology reads.
type ResourceStatus struct {
	Phase string `json:"phase,omitempty"`
}

// Phase returns status.phase or "" when absent.
func (r *RawResource) Phase() string {
	if r == nil || r.Status == nil {
		return ""
	}
	return r.Status.Phase
}

// HasSpec reports whether the object carried a non-null spec.
func (r *RawResource) HasSpec() bool {
	return r != nil && len(r.Spec) > 0 && string(r.Spec) != "null"
}

// CreationTimestamp returns metadata.creationTimestamp in RFC3339, or "" when unset.
func (r *RawResource) CreationTimestamp() string {
	if r == nil || r.Metadata.CreationTimestamp.IsZero() {
		return ""
	}
	return r.Metadata.CreationTimestamp.UTC().Format("2006-01-02T15:04:05Z07:00")
}
