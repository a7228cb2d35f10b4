// Package validate provides input validation for API query parameters, request bodies and
// backend-generated policy YAML.
package validate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
	k8svalidation "k8s.io/apimachinery/pkg/util/validation"
)

// ClusterNameMaxLen is the maximum allowed length for a cluster name in paths and label ids.
const ClusterNameMaxLen = 128

// K8s name regex: DNS subdomain (RFC 1123).
var k8sNameRe = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?(\.[a-z0-9]([-a-z0-9]*[a-z0-9])?)*$`)

// ClusterName validates a cluster name: alphanumeric, hyphen, underscore, dot; 1–ClusterNameMaxLen.
func ClusterName(name string) bool {
	if name == "" || len(name) > ClusterNameMaxLen {
		return false
	}
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			continue
		}
		return false
	}
	return true
}

// Namespace validates namespace: empty (cluster-scoped) or valid DNS subdomain.
func Namespace(ns string) bool {
	if ns == "" {
		return true
	}
	if len(ns) > 253 {
		return false
	}
	return k8sNameRe.MatchString(strings.ToLower(ns))
}

// Name validates resource name: valid DNS subdomain.
func Name(name string) bool {
	if name == "" || len(name) > 253 {
		return false
	}
	return k8sNameRe.MatchString(strings.ToLower(name))
}

// LabelKey reports problems with a Kubernetes label key (optional DNS prefix + name).
func LabelKey(key string) []string {
	return k8svalidation.IsQualifiedName(key)
}

// LabelValue reports problems with a Kubernetes label value.
func LabelValue(value string) []string {
	return k8svalidation.IsValidLabelValue(value)
}

// Label returns an error describing every problem with key and value, or nil.
func Label(key, value string) error {
	var errs []string
	for _, msg := range LabelKey(key) {
		errs = append(errs, "key: "+msg)
	}
	for _, msg := range LabelValue(value) {
		errs = append(errs, "value: "+msg)
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("invalid label %s=%s: %s", key, value, strings.Join(errs, "; "))
}

var (
	structValidator     *validator.Validate
	structValidatorOnce sync.Once
)

func structs() *validator.Validate {
	structValidatorOnce.Do(func() {
		structValidator = validator.New(validator.WithRequiredStructEnabled())
	})
	return structValidator
}

// Struct validates s against its `validate` tags and flattens failures into one error.
func Struct(s any) error {
	err := structs().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// PolicyYAMLWarnings parses YAML (single or multi-doc) and returns warnings for documents
// that are not well-formed Kubernetes objects. Parse errors are returned as an error.
func PolicyYAMLWarnings(content string) ([]string, error) {
	var warnings []string
	dec := yaml.NewDecoder(bytes.NewReader([]byte(content)))
	for i := 0; ; i++ {
		var doc map[string]interface{}
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return warnings, fmt.Errorf("document %d: %w", i, err)
		}
		if doc == nil {
			continue
		}
		prefix := "document " + strconv.Itoa(i) + ": "
		for _, field := range []string{"apiVersion", "kind"} {
			if s, _ := doc[field].(string); s == "" {
				warnings = append(warnings, prefix+"missing "+field)
			}
		}
		meta, _ := doc["metadata"].(map[string]interface{})
		if name, _ := meta["name"].(string); name == "" {
			warnings = append(warnings, prefix+"missing metadata.name")
		}
	}
	return warnings, nil
}
