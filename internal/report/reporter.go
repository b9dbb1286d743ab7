// Package report forwards failed CMS operations to a diagnostics sink with
// enough context to reproduce them.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/sanixdarker/strapisource/internal/gqlclient"
	"github.com/sanixdarker/strapisource/internal/query"
)

// Sink receives one call per underlying error.
type Sink interface {
	Error(message string, cause error)
}

// LogSink writes reports to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

// Error implements Sink.
func (s LogSink) Error(message string, cause error) {
	s.Logger.Error(message, "error", cause)
}

// Operation describes the request that failed.
type Operation struct {
	OperationName  string
	Field          string
	CollectionType string
	Query          *ast.QueryDocument
	Variables      map[string]any
}

// Reporter classifies failures and reports each underlying error.
type Reporter struct {
	sink Sink
}

// NewReporter creates a Reporter writing to sink.
func NewReporter(sink Sink) *Reporter {
	return &Reporter{sink: sink}
}

// Report sends err to the sink. Transport failures carrying a GraphQL error
// list and plain GraphQL error lists are reported once per error; anything
// else is reported once. Report never fails.
func (r *Reporter) Report(op Operation, err error) {
	if err == nil || r.sink == nil {
		return
	}

	details := op.details()

	if list := graphQLErrors(err); len(list) > 0 {
		for _, e := range list {
			r.send(op, e.Message, details, e)
		}
		return
	}

	r.send(op, err.Error(), details, err)
}

// graphQLErrors finds the GraphQL error list carried by err, dropping nil
// entries. The chain is walked by hand: errors.As descends into the list and
// calls Unwrap on each entry, which panics on a nil *gqlerror.Error.
func graphQLErrors(err error) gqlerror.List {
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch v := e.(type) {
		case gqlerror.List:
			return compact(v)
		case *gqlclient.NetworkError:
			if v == nil {
				return nil
			}
			if list := compact(v.Errors); len(list) > 0 {
				return list
			}
		}
	}
	return nil
}

func compact(list gqlerror.List) gqlerror.List {
	out := make(gqlerror.List, 0, len(list))
	for _, e := range list {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

func (r *Reporter) send(op Operation, message, details string, cause error) {
	r.sink.Error(fmt.Sprintf("%s failed - %s\n%s\n===== ERROR =====\n%s", op.name(), message, details, message), cause)
}

func (op Operation) name() string {
	switch {
	case op.OperationName != "":
		return op.OperationName
	case op.CollectionType != "":
		return op.CollectionType
	case op.Field != "":
		return op.Field
	}
	return "operation"
}

// details renders the printed query and the indented variables.
func (op Operation) details() string {
	var b strings.Builder
	b.WriteString("===== QUERY =====\n")
	if op.Query != nil {
		b.WriteString(strings.TrimSpace(query.Print(op.Query)))
	}
	b.WriteString("\n===== VARIABLES =====\n")
	vars, err := json.MarshalIndent(op.Variables, "", "  ")
	if err != nil {
		vars = []byte(fmt.Sprintf("%v", op.Variables))
	}
	b.Write(vars)
	return b.String()
}
