// Package handler implements the gRPC-facing DialogServiceServer,
// translating wire requests into session/store/table calls and mapping
// internal errors onto gRPC status codes, in the teacher's
// validate-then-call-then-map-errors handler idiom
// (internal/handler/storage_handler.go).
package handler

import (
	"context"

	"go.uber.org/zap"

	"github.com/dialogtable/dialogtable/internal/errors"
	"github.com/dialogtable/dialogtable/internal/model"
	"github.com/dialogtable/dialogtable/internal/rpcapi"
	"github.com/dialogtable/dialogtable/internal/schema"
	"github.com/dialogtable/dialogtable/internal/session"
	"github.com/dialogtable/dialogtable/internal/store"
	"github.com/dialogtable/dialogtable/internal/validation"
)

// DialogHandler implements rpcapi.DialogServiceServer over a table
// store and a session manager.
type DialogHandler struct {
	store     *store.Store
	sessions  *session.Manager
	validator *validation.Validator
	logger    *zap.Logger
}

// New creates a DialogHandler.
func New(st *store.Store, sessions *session.Manager, logger *zap.Logger) *DialogHandler {
	return &DialogHandler{store: st, sessions: sessions, validator: validation.NewValidator(), logger: logger}
}

func asStatus(err error) error {
	if de, ok := err.(*errors.DialogError); ok {
		return de.ToGRPCStatus().Err()
	}
	return err
}

func toColumnSpecs(wire []rpcapi.ColumnSpec) ([]schema.ColumnSpec, error) {
	specs := make([]schema.ColumnSpec, len(wire))
	for i, c := range wire {
		t, err := schema.ParseColumnType(c.Type)
		if err != nil {
			return nil, errors.Management("unknown column type %q for column %q", c.Type, c.Name)
		}
		specs[i] = schema.ColumnSpec{Name: c.Name, Type: t, StringWidth: int(c.StringWidth)}
	}
	return specs, nil
}

func fromColumns(cols []schema.Column) []rpcapi.ColumnSpec {
	wire := make([]rpcapi.ColumnSpec, len(cols))
	for i, c := range cols {
		wire[i] = rpcapi.ColumnSpec{Name: c.Name, Type: c.Type.String(), StringWidth: int32(c.Width)}
	}
	return wire
}

func toStorageMode(mode int32) model.StorageMode {
	return model.StorageMode(mode)
}

func toCursorDescriptor(d rpcapi.CursorDescriptor) session.CursorDescriptor {
	return session.CursorDescriptor{HandlerID: d.HandlerID, ID: d.ID, Kind: model.IteratorKind(d.Kind)}
}

func toIteratorHandle(p *session.Page) *rpcapi.IteratorHandle {
	return &rpcapi.IteratorHandle{
		Descriptor: rpcapi.CursorDescriptor{
			HandlerID: p.Descriptor.HandlerID,
			ID:        p.Descriptor.ID,
			Kind:      int32(p.Descriptor.Kind),
		},
		Data:       p.Data,
		NumEntries: int32(p.NumEntries),
		HasMore:    p.HasMore,
	}
}

func (h *DialogHandler) RegisterHandler(ctx context.Context, req *rpcapi.RegisterHandlerRequest) (*rpcapi.RegisterHandlerResponse, error) {
	id := h.sessions.RegisterHandler()
	h.logger.Info("handler registered", zap.Int64("handler_id", id))
	return &rpcapi.RegisterHandlerResponse{HandlerID: id}, nil
}

func (h *DialogHandler) DeregisterHandler(ctx context.Context, req *rpcapi.DeregisterHandlerRequest) (*rpcapi.DeregisterHandlerResponse, error) {
	if err := h.sessions.DeregisterHandler(req.HandlerID); err != nil {
		return nil, asStatus(err)
	}
	return &rpcapi.DeregisterHandlerResponse{}, nil
}

func (h *DialogHandler) CreateTable(ctx context.Context, req *rpcapi.CreateTableRequest) (*rpcapi.CreateTableResponse, error) {
	if err := h.validator.ValidateTableName(req.Name); err != nil {
		return nil, asStatus(err)
	}
	if err := h.validator.ValidateSchemaWidth(len(req.Schema)); err != nil {
		return nil, asStatus(err)
	}
	for _, c := range req.Schema {
		if err := h.validator.ValidateColumnName(c.Name); err != nil {
			return nil, asStatus(err)
		}
	}
	specs, err := toColumnSpecs(req.Schema)
	if err != nil {
		return nil, asStatus(err)
	}
	sch, err := schema.New(specs)
	if err != nil {
		return nil, asStatus(errors.Management("invalid schema for table %q: %v", req.Name, err))
	}
	if _, err := h.store.AddTable(req.Name, sch, toStorageMode(req.StorageMode)); err != nil {
		return nil, asStatus(err)
	}
	return &rpcapi.CreateTableResponse{}, nil
}

func (h *DialogHandler) SetCurrentTable(ctx context.Context, req *rpcapi.SetCurrentTableRequest) (*rpcapi.SetCurrentTableResponse, error) {
	sess, err := h.sessions.Get(req.HandlerID)
	if err != nil {
		return nil, asStatus(err)
	}
	sch, err := sess.SetCurrentTable(req.Name)
	if err != nil {
		return nil, asStatus(err)
	}
	return &rpcapi.SetCurrentTableResponse{Schema: fromColumns(sch.Columns)}, nil
}

func (h *DialogHandler) withCurrentTable(handlerID int64) (*session.Session, error) {
	return h.sessions.Get(handlerID)
}

func (h *DialogHandler) AddIndex(ctx context.Context, req *rpcapi.AddIndexRequest) (*rpcapi.AddIndexResponse, error) {
	if err := h.validator.ValidateColumnName(req.FieldName); err != nil {
		return nil, asStatus(err)
	}
	sess, err := h.withCurrentTable(req.HandlerID)
	if err != nil {
		return nil, asStatus(err)
	}
	tbl, err := sess.CurrentTable()
	if err != nil {
		return nil, asStatus(err)
	}
	if err := tbl.AddIndex(req.FieldName, req.BucketSize); err != nil {
		return nil, asStatus(err)
	}
	return &rpcapi.AddIndexResponse{}, nil
}

func (h *DialogHandler) RemoveIndex(ctx context.Context, req *rpcapi.RemoveIndexRequest) (*rpcapi.RemoveIndexResponse, error) {
	sess, err := h.withCurrentTable(req.HandlerID)
	if err != nil {
		return nil, asStatus(err)
	}
	tbl, err := sess.CurrentTable()
	if err != nil {
		return nil, asStatus(err)
	}
	if err := tbl.RemoveIndex(req.FieldName); err != nil {
		return nil, asStatus(err)
	}
	return &rpcapi.RemoveIndexResponse{}, nil
}

func (h *DialogHandler) AddFilter(ctx context.Context, req *rpcapi.AddFilterRequest) (*rpcapi.AddFilterResponse, error) {
	if err := h.validator.ValidateFilterName(req.Name); err != nil {
		return nil, asStatus(err)
	}
	if err := h.validator.ValidateExpr(req.Expr); err != nil {
		return nil, asStatus(err)
	}
	sess, err := h.withCurrentTable(req.HandlerID)
	if err != nil {
		return nil, asStatus(err)
	}
	tbl, err := sess.CurrentTable()
	if err != nil {
		return nil, asStatus(err)
	}
	if err := tbl.AddFilter(req.Name, req.Expr); err != nil {
		return nil, asStatus(err)
	}
	return &rpcapi.AddFilterResponse{}, nil
}

func (h *DialogHandler) RemoveFilter(ctx context.Context, req *rpcapi.RemoveFilterRequest) (*rpcapi.RemoveFilterResponse, error) {
	sess, err := h.withCurrentTable(req.HandlerID)
	if err != nil {
		return nil, asStatus(err)
	}
	tbl, err := sess.CurrentTable()
	if err != nil {
		return nil, asStatus(err)
	}
	if err := tbl.RemoveFilter(req.Name); err != nil {
		return nil, asStatus(err)
	}
	return &rpcapi.RemoveFilterResponse{}, nil
}

func (h *DialogHandler) AddTrigger(ctx context.Context, req *rpcapi.AddTriggerRequest) (*rpcapi.AddTriggerResponse, error) {
	if err := h.validator.ValidateTriggerName(req.Name); err != nil {
		return nil, asStatus(err)
	}
	if err := h.validator.ValidateFilterName(req.FilterName); err != nil {
		return nil, asStatus(err)
	}
	if err := h.validator.ValidateExpr(req.Expr); err != nil {
		return nil, asStatus(err)
	}
	sess, err := h.withCurrentTable(req.HandlerID)
	if err != nil {
		return nil, asStatus(err)
	}
	tbl, err := sess.CurrentTable()
	if err != nil {
		return nil, asStatus(err)
	}
	if err := tbl.AddTrigger(req.Name, req.FilterName, req.Expr); err != nil {
		return nil, asStatus(err)
	}
	return &rpcapi.AddTriggerResponse{}, nil
}

func (h *DialogHandler) RemoveTrigger(ctx context.Context, req *rpcapi.RemoveTriggerRequest) (*rpcapi.RemoveTriggerResponse, error) {
	sess, err := h.withCurrentTable(req.HandlerID)
	if err != nil {
		return nil, asStatus(err)
	}
	tbl, err := sess.CurrentTable()
	if err != nil {
		return nil, asStatus(err)
	}
	if err := tbl.RemoveTrigger(req.Name); err != nil {
		return nil, asStatus(err)
	}
	return &rpcapi.RemoveTriggerResponse{}, nil
}

func (h *DialogHandler) Append(ctx context.Context, req *rpcapi.AppendRequest) (*rpcapi.AppendResponse, error) {
	sess, err := h.withCurrentTable(req.HandlerID)
	if err != nil {
		return nil, asStatus(err)
	}
	tbl, err := sess.CurrentTable()
	if err != nil {
		return nil, asStatus(err)
	}
	offset, err := tbl.Append(req.Data)
	if err != nil {
		return nil, asStatus(err)
	}
	return &rpcapi.AppendResponse{Offset: offset}, nil
}

func (h *DialogHandler) AppendBatch(ctx context.Context, req *rpcapi.AppendBatchRequest) (*rpcapi.AppendBatchResponse, error) {
	sess, err := h.withCurrentTable(req.HandlerID)
	if err != nil {
		return nil, asStatus(err)
	}
	tbl, err := sess.CurrentTable()
	if err != nil {
		return nil, asStatus(err)
	}
	first, err := tbl.AppendBatch(req.Batch)
	if err != nil {
		return nil, asStatus(err)
	}
	return &rpcapi.AppendBatchResponse{FirstOffset: first}, nil
}

func (h *DialogHandler) Read(ctx context.Context, req *rpcapi.ReadRequest) (*rpcapi.ReadResponse, error) {
	sess, err := h.withCurrentTable(req.HandlerID)
	if err != nil {
		return nil, asStatus(err)
	}
	tbl, err := sess.CurrentTable()
	if err != nil {
		return nil, asStatus(err)
	}
	data, err := tbl.Read(req.Offset, int(req.NRecords))
	if err != nil {
		return nil, asStatus(err)
	}
	return &rpcapi.ReadResponse{Data: data}, nil
}

func (h *DialogHandler) AdhocFilter(ctx context.Context, req *rpcapi.AdhocFilterRequest) (*rpcapi.IteratorHandle, error) {
	if err := h.validator.ValidateExpr(req.Expr); err != nil {
		return nil, asStatus(err)
	}
	sess, err := h.withCurrentTable(req.HandlerID)
	if err != nil {
		return nil, asStatus(err)
	}
	page, err := sess.OpenAdhoc(req.Expr)
	if err != nil {
		return nil, asStatus(err)
	}
	return toIteratorHandle(page), nil
}

func (h *DialogHandler) PredefFilter(ctx context.Context, req *rpcapi.PredefFilterRequest) (*rpcapi.IteratorHandle, error) {
	sess, err := h.withCurrentTable(req.HandlerID)
	if err != nil {
		return nil, asStatus(err)
	}
	page, err := sess.OpenPredef(req.Name, req.BeginMs, req.EndMs)
	if err != nil {
		return nil, asStatus(err)
	}
	return toIteratorHandle(page), nil
}

func (h *DialogHandler) CombinedFilter(ctx context.Context, req *rpcapi.CombinedFilterRequest) (*rpcapi.IteratorHandle, error) {
	if err := h.validator.ValidateExpr(req.Expr); err != nil {
		return nil, asStatus(err)
	}
	sess, err := h.withCurrentTable(req.HandlerID)
	if err != nil {
		return nil, asStatus(err)
	}
	page, err := sess.OpenCombined(req.Name, req.Expr, req.BeginMs, req.EndMs)
	if err != nil {
		return nil, asStatus(err)
	}
	return toIteratorHandle(page), nil
}

func (h *DialogHandler) AlertsByTime(ctx context.Context, req *rpcapi.AlertsByTimeRequest) (*rpcapi.IteratorHandle, error) {
	sess, err := h.withCurrentTable(req.HandlerID)
	if err != nil {
		return nil, asStatus(err)
	}
	page, err := sess.OpenAlerts(req.BeginMs, req.EndMs)
	if err != nil {
		return nil, asStatus(err)
	}
	return toIteratorHandle(page), nil
}

func (h *DialogHandler) GetMore(ctx context.Context, req *rpcapi.GetMoreRequest) (*rpcapi.IteratorHandle, error) {
	sess, err := h.withCurrentTable(req.HandlerID)
	if err != nil {
		return nil, asStatus(err)
	}
	page, err := sess.GetMore(toCursorDescriptor(req.Descriptor))
	if err != nil {
		return nil, asStatus(err)
	}
	return toIteratorHandle(page), nil
}

func (h *DialogHandler) NumRecords(ctx context.Context, req *rpcapi.NumRecordsRequest) (*rpcapi.NumRecordsResponse, error) {
	sess, err := h.withCurrentTable(req.HandlerID)
	if err != nil {
		return nil, asStatus(err)
	}
	tbl, err := sess.CurrentTable()
	if err != nil {
		return nil, asStatus(err)
	}
	return &rpcapi.NumRecordsResponse{Count: tbl.NumRecords()}, nil
}
