package eventbus

import (
	"fmt"
	"strings"
)

const (
	// SubjectPrefix is the prefix of every taskflow event subject.
	SubjectPrefix = "taskflow.v1.events"
)

// Domain groups event kinds by the part of the system that emits them.
type Domain string

const (
	DomainWorkflow   Domain = "workflow"
	DomainTransition Domain = "transition"
	DomainValidation Domain = "validation"
	DomainAction     Domain = "action"
)

// Valid reports whether d is a known domain.
func (d Domain) Valid() bool {
	switch d {
	case DomainWorkflow, DomainTransition, DomainValidation, DomainAction:
		return true
	}
	return false
}

// Subject returns the subject an event is published on:
// taskflow.v1.events.<domain>.<shard>.<type>.
func Subject(kind Kind, shardKey string) string {
	return fmt.Sprintf("%s.%s.%s.%s", SubjectPrefix, kind.Domain, sanitizeSegment(shardKey), sanitizeSegment(kind.Type))
}

// DomainWildcardSubject returns the wildcard subject covering a domain.
func DomainWildcardSubject(domain Domain) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, sanitizeSegment(string(domain)))
}

// AllSubjects is the wildcard matching every event.
func AllSubjects() string {
	return SubjectPrefix + ".>"
}

var segmentReplacer = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_")

// sanitizeSegment keeps a subject segment free of separators and wildcards.
func sanitizeSegment(value string) string {
	if value == "" {
		return "unknown"
	}
	return segmentReplacer.Replace(value)
}
