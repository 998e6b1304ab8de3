package cli

import (
	"github.com/cloo-solutions/ragbot/internal/domain"
)

// NamespaceValue is a pflag.Value accepting only indexed namespaces.
type NamespaceValue struct {
	ns domain.Namespace
}

// NewNamespaceValue creates a NamespaceValue with a default.
func NewNamespaceValue(def domain.Namespace) *NamespaceValue {
	return &NamespaceValue{ns: def}
}

func (v *NamespaceValue) String() string {
	return string(v.ns)
}

func (v *NamespaceValue) Set(s string) error {
	ns, err := domain.ParseNamespace(s)
	if err != nil {
		return err
	}
	v.ns = ns
	return nil
}

func (v *NamespaceValue) Type() string {
	return "namespace"
}

// Namespace returns the parsed value.
func (v *NamespaceValue) Namespace() domain.Namespace {
	return v.ns
}
