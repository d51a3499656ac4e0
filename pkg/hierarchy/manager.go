package hierarchy

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/plank/pkg/observability"
	"github.com/platinummonkey/plank/pkg/storage"
)

var tracer = otel.Tracer(observability.ScopeHierarchy)

// Store is the persistence the manager mutates
type Store interface {
	storage.WorkItemStore
	storage.BugItemStore
}

// Manager applies structural changes to work items
type Manager struct {
	store       Store
	instruments *observability.HierarchyInstruments
}

// Option configures a Manager
type Option func(*managerOptions)

type managerOptions struct {
	meterProvider otelmetric.MeterProvider
}

// WithMeterProvider records change metrics on mp instead of the global provider
func WithMeterProvider(mp otelmetric.MeterProvider) Option {
	return func(o *managerOptions) {
		o.meterProvider = mp
	}
}

// NewManager creates a manager over store
func NewManager(store Store, opts ...Option) *Manager {
	var o managerOptions
	for _, opt := range opts {
		opt(&o)
	}
	instruments, err := observability.NewHierarchyInstruments(o.meterProvider)
	if err != nil {
		instruments, _ = observability.NewHierarchyInstruments(noop.NewMeterProvider())
	}
	return &Manager{store: store, instruments: instruments}
}

// AttachChild makes parentID the parent of childID. Board equality and
// acyclicity are checked by the store in the same step as the write.
func (m *Manager) AttachChild(ctx context.Context, parentID, childID int64) error {
	ctx, span := tracer.Start(ctx, "hierarchy.AttachChild", trace.WithAttributes(
		attribute.Int64("parent_id", parentID),
		attribute.Int64("child_id", childID),
	))
	defer span.End()

	started := time.Now()
	err := m.store.SetParent(ctx, childID, &parentID)
	return m.finish(ctx, span, "attach", started, err)
}

// Reparent moves itemID under newParentID, or to the root when newParentID is nil
func (m *Manager) Reparent(ctx context.Context, itemID int64, newParentID *int64) error {
	ctx, span := tracer.Start(ctx, "hierarchy.Reparent", trace.WithAttributes(
		attribute.Int64("item_id", itemID),
	))
	defer span.End()

	if newParentID != nil {
		span.SetAttributes(attribute.Int64("new_parent_id", *newParentID))
	}
	started := time.Now()
	err := m.store.SetParent(ctx, itemID, newParentID)
	return m.finish(ctx, span, "reparent", started, err)
}

// Apply writes a combined field, parent and bug link change. Either every part
// lands or none does.
func (m *Manager) Apply(ctx context.Context, itemID int64, change storage.WorkItemChange) error {
	ctx, span := tracer.Start(ctx, "hierarchy.Apply", trace.WithAttributes(
		attribute.Int64("item_id", itemID),
		attribute.Bool("reparent", change.Reparent),
		attribute.Bool("relink", change.Relink),
	))
	defer span.End()

	started := time.Now()
	err := m.store.ApplyWorkItemChange(ctx, itemID, change)
	return m.finish(ctx, span, "apply", started, err)
}

// LinkBugItem links bugItemID to workItemID. Any earlier link on either side is
// cleared in the same store operation.
func (m *Manager) LinkBugItem(ctx context.Context, workItemID, bugItemID int64) error {
	ctx, span := tracer.Start(ctx, "hierarchy.LinkBugItem", trace.WithAttributes(
		attribute.Int64("work_item_id", workItemID),
		attribute.Int64("bug_item_id", bugItemID),
	))
	defer span.End()

	started := time.Now()
	err := m.store.LinkBugItem(ctx, workItemID, bugItemID)
	return m.finish(ctx, span, "link", started, err)
}

// UnlinkBugItem clears the bug item link of workItemID, if any
func (m *Manager) UnlinkBugItem(ctx context.Context, workItemID int64) error {
	ctx, span := tracer.Start(ctx, "hierarchy.UnlinkBugItem", trace.WithAttributes(
		attribute.Int64("work_item_id", workItemID),
	))
	defer span.End()

	started := time.Now()
	err := m.store.UnlinkWorkItem(ctx, workItemID)
	return m.finish(ctx, span, "unlink", started, err)
}

// DeleteWorkItem removes the item, its subtree and their comments. Linked bug
// items are detached, not deleted.
func (m *Manager) DeleteWorkItem(ctx context.Context, id int64) error {
	ctx, span := tracer.Start(ctx, "hierarchy.DeleteWorkItem", trace.WithAttributes(
		attribute.Int64("work_item_id", id),
	))
	defer span.End()

	started := time.Now()
	err := m.store.DeleteWorkItemTree(ctx, id)
	return m.finish(ctx, span, "delete", started, err)
}

// finish records the outcome of op on the span and the change instruments
func (m *Manager) finish(ctx context.Context, span trace.Span, op string, started time.Time, err error) error {
	m.instruments.Record(ctx, op, started, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, op+" rejected")
		return err
	}
	span.SetStatus(codes.Ok, op)
	return nil
}
