package monitorHandler

import (
	"CraneGuard/internal/api/monitor"
	contextPkg "CraneGuard/pkg/context"
	"CraneGuard/pkg/handlerUtil"
	"CraneGuard/pkg/log"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const mimeProtobuf = "application/x-protobuf"

func (h *MonitorHandler) ListZones(ctx *fiber.Ctx) error {
	errHandler := handlerUtil.New(h.log)
	return errHandler.HandleSuccess(ctx, fiber.StatusOK, h.monitorService.Zones())
}

func (h *MonitorHandler) SelectZone(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	z, err := h.monitorService.SelectZone(contextPkg.FromFiberCtx(ctx), ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "select_zone")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, z)
}

func (h *MonitorHandler) UpdateCamera(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	var req monitor.UpdateCameraRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, fmt.Errorf("%w: %v", monitor.ErrInvalidBody, err), ctx.Path(), "parse_request_body")
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	z, err := h.monitorService.UpdateCamera(contextPkg.FromFiberCtx(ctx), ctx.Params("id"), strings.TrimSpace(req.CameraSourceURL))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "update_camera")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, z)
}

// GetSafety answers with JSON, or a protobuf Struct when the client asks for
// application/x-protobuf.
func (h *MonitorHandler) GetSafety(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	resp := h.monitorService.Safety()
	if ctx.Accepts(fiber.MIMEApplicationJSON, mimeProtobuf) != mimeProtobuf {
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, resp)
	}

	payload, err := encodeSnapshot(resp)
	if err != nil {
		return errHandler.Handle(ctx, requestID, fmt.Errorf("%w: %v", monitor.ErrEncodeSnapshot, err), ctx.Path(), "encode_protobuf")
	}

	ctx.Set(fiber.HeaderContentType, mimeProtobuf)
	return ctx.Status(fiber.StatusOK).Send(payload)
}

func (h *MonitorHandler) SetCurrentWeight(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	var req monitor.CurrentWeightRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, fmt.Errorf("%w: %v", monitor.ErrInvalidBody, err), ctx.Path(), "parse_request_body")
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	resp, err := h.monitorService.SetCurrentWeight(contextPkg.FromFiberCtx(ctx), *req.CurrentWeight)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "set_current_weight")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, resp)
}

func (h *MonitorHandler) SetMaxWeight(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	var req monitor.MaxWeightRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, fmt.Errorf("%w: %v", monitor.ErrInvalidBody, err), ctx.Path(), "parse_request_body")
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	resp, err := h.monitorService.SetMaxWeight(contextPkg.FromFiberCtx(ctx), *req.MaxWeight)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "set_max_weight")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, resp)
}

func (h *MonitorHandler) GetStatus(ctx *fiber.Ctx) error {
	errHandler := handlerUtil.New(h.log)
	return errHandler.HandleSuccess(ctx, fiber.StatusOK, h.monitorService.Status())
}

func (h *MonitorHandler) Scan(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	resp, err := h.monitorService.Scan(contextPkg.FromFiberCtx(ctx))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "manual_scan")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"zone":       resp.ZoneID,
	}).Info("Manual scan accepted")
	return errHandler.HandleSuccess(ctx, fiber.StatusAccepted, resp)
}

func encodeSnapshot(resp monitor.SafetyResponse) ([]byte, error) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	st, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}

	return proto.Marshal(st)
}
