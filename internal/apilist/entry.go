// SPDX-License-Identifier: Apache-2.0

// Package apilist models the Blink API list: the catalog of script-visible
// interfaces and members that the external generator emits as
// high_entropy_list.csv. The list is regenerated wholesale on every run;
// nothing in here mutates a list incrementally.
package apilist

import (
	"fmt"
	"strings"
)

// EntityType classifies a row of the API list.
type EntityType string

const (
	EntityInterface EntityType = "interface"
	EntityOperation EntityType = "operation"
	EntityAttribute EntityType = "attribute"
	EntityConstant  EntityType = "constant"
)

// Valid reports whether t is one of the documented entity types.
func (t EntityType) Valid() bool {
	switch t {
	case EntityInterface, EntityOperation, EntityAttribute, EntityConstant:
		return true
	}
	return false
}

// Entry is one row of the API list.
type Entry struct {
	Interface     string     `json:"interface"`
	Name          string     `json:"name,omitempty"` // empty for interface-level rows
	EntityType    EntityType `json:"entity_type"`
	Arguments     string     `json:"arguments,omitempty"` // parenthesized argument types, if callable
	IDLType       string     `json:"idl_type,omitempty"`  // declared type, or return type if callable
	SyntacticForm string     `json:"syntactic_form,omitempty"`
	UseCounter    string     `json:"use_counter,omitempty"`
	SecureContext bool       `json:"secure_context"`
	HighEntropy   string     `json:"high_entropy,omitempty"` // blank when not classified
	SourceFile    string     `json:"source_file,omitempty"`
	SourceLine    string     `json:"source_line,omitempty"`
}

// Key identifies a member across regenerations of the list.
type Key struct {
	Interface  string
	Name       string
	EntityType EntityType
}

// Key returns the identity of the entry.
func (e Entry) Key() Key {
	return Key{Interface: e.Interface, Name: e.Name, EntityType: e.EntityType}
}

func (k Key) String() string {
	if k.Name == "" {
		return fmt.Sprintf("%s [%s]", k.Interface, k.EntityType)
	}
	return fmt.Sprintf("%s.%s [%s]", k.Interface, k.Name, k.EntityType)
}

// List is a decoded API list: the verbatim header row plus all entries.
type List struct {
	Header  []string
	Entries []Entry
}

// Len returns the number of entries.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Entries)
}

// HighEntropyCount returns the number of entries carrying an entropy-source
// classification.
func (l *List) HighEntropyCount() int {
	n := 0
	for _, e := range l.Entries {
		if strings.TrimSpace(e.HighEntropy) != "" {
			n++
		}
	}
	return n
}
