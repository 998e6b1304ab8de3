package domain

import "fmt"

// Namespace names a topical partition of the corpus. Each indexed namespace
// owns exactly one vector index.
type Namespace string

const (
	NamespaceNEC      Namespace = "nec"
	NamespaceWattmonk Namespace = "wattmonk"

	// NamespaceGeneral is a classification result only. It is never indexed.
	NamespaceGeneral Namespace = "general"
)

// IndexedNamespaces lists the namespaces that have a vector index, in
// classification order.
var IndexedNamespaces = []Namespace{NamespaceNEC, NamespaceWattmonk}

// IsIndexed returns true if the namespace has a vector index
func (n Namespace) IsIndexed() bool {
	for _, ns := range IndexedNamespaces {
		if n == ns {
			return true
		}
	}
	return false
}

// String returns the string representation of the namespace
func (n Namespace) String() string {
	return string(n)
}

// ParseNamespace validates an indexed namespace name.
func ParseNamespace(s string) (Namespace, error) {
	ns := Namespace(s)
	if !ns.IsIndexed() {
		return "", Wrap(ErrUnknownNamespace, fmt.Errorf("%q", s))
	}
	return ns, nil
}
