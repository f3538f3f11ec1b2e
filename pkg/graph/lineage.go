package graph

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/unicef/hope-sub007/pkg/platform/tracing"
	"github.com/unicef/hope-sub007/pkg/report"
)

// Statement is one parameterised Cypher query.
type Statement struct {
	Cypher string
	Params map[string]any
}

// Writer executes statements atomically. *Client is the production Writer.
type Writer interface {
	Write(ctx context.Context, statements ...Statement) error
}

const (
	mergeRepresentations = `
		UNWIND $rows AS row
		MERGE (o:Original {id: row.original_id})
		  ON CREATE SET o.entity_type = row.entity_type, o.business_area_id = $business_area_id
		MERGE (p:Program {id: row.program_id})
		MERGE (o)-[r:REPRESENTED_IN {representation_id: row.id}]->(p)
		SET r.updated_at = datetime()`

	deleteRepresentations = `
		UNWIND $rows AS row
		MATCH (:Original {id: row.original_id})-[r:REPRESENTED_IN {representation_id: row.id}]->(:Program)
		DELETE r`

	mergeAssignments = `
		UNWIND $rows AS row
		MERGE (o:Original {id: row.id})
		  ON CREATE SET o.entity_type = row.entity_type, o.business_area_id = $business_area_id
		MERGE (p:Program {id: row.program_id})
		MERGE (o)-[r:ASSIGNED_TO]->(p)
		SET r.updated_at = datetime()`
)

// Projector keeps the (:Original)-[:REPRESENTED_IN]->(:Program) graph in
// step with the changes of each run.
type Projector struct {
	writer Writer
	logger ectologger.Logger
}

func NewProjector(writer Writer, logger ectologger.Logger) *Projector {
	return &Projector{writer: writer, logger: logger}
}

// Project writes a run's changes. Changes without a program are ignored.
func (p *Projector) Project(ctx context.Context, businessAreaID string, changes []report.Change) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Projector.Project")
	defer span.End()

	statements := Statements(businessAreaID, changes)
	if len(statements) == 0 {
		return nil
	}
	if err := p.writer.Write(ctx, statements...); err != nil {
		p.logger.WithContext(ctx).WithError(err).WithField("business_area_id", businessAreaID).
			Error("Failed to project lineage")
		return fmt.Errorf("failed to project lineage: %w", err)
	}
	p.logger.WithContext(ctx).WithFields(map[string]any{
		"business_area_id": businessAreaID,
		"changes":          len(changes),
	}).Debug("Projected lineage")
	return nil
}

// Statements groups changes into one UNWIND statement per kind of write.
func Statements(businessAreaID string, changes []report.Change) []Statement {
	var merged, deleted, assigned []map[string]any
	for _, c := range changes {
		if c.ProgramID == "" {
			continue
		}
		row := map[string]any{
			"id":          c.ID,
			"original_id": c.OriginalID,
			"entity_type": c.EntityType,
			"program_id":  c.ProgramID,
		}
		switch c.Action {
		case report.ActionCreated, report.ActionUpdated:
			if c.OriginalID != "" {
				merged = append(merged, row)
			}
		case report.ActionDeleted:
			if c.OriginalID != "" {
				deleted = append(deleted, row)
			}
		case report.ActionAssigned:
			assigned = append(assigned, row)
		}
	}

	var out []Statement
	add := func(cypher string, rows []map[string]any) {
		if len(rows) == 0 {
			return
		}
		out = append(out, Statement{Cypher: cypher, Params: map[string]any{
			"business_area_id": businessAreaID,
			"rows":             rows,
		}})
	}
	add(mergeRepresentations, merged)
	add(mergeAssignments, assigned)
	add(deleteRepresentations, deleted)
	return out
}

// Noop discards every projection.
type Noop struct{}

func (Noop) Write(context.Context, ...Statement) error { return nil }
