// Package handlers provides the HTTP handlers of the aigw gateway.
//
// Every completion endpoint follows the same pattern:
//  1. Decode and validate the body (validation.Decoder)
//  2. Run the task through processing.Processor
//  3. Write the typed result, or collapse the failure into a GatewayError
//
// Failures are logged in full (stage, outcome, raw completion text) with the
// request id; clients only see a short human-readable message.
package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/rentfleet/aigw/errors"
	"github.com/rentfleet/aigw/server/middleware"
	"github.com/rentfleet/aigw/server/notify"
	"github.com/rentfleet/aigw/server/processing"
	"github.com/rentfleet/aigw/server/validation"
	"go.uber.org/zap"
)

// Messages shown to callers when a pipeline fails.
const (
	documentsFailedMessage = "Не удалось распознать документы. Попробуйте загрузить более чёткие фотографии."
	dealFailedMessage      = "Не удалось распознать описание. Пожалуйста, попробуйте сформулировать иначе."
	plansFailedMessage     = "Не удалось сгенерировать план выкупа. Попробуйте описать его по-другому."
)

// StatusMessage is the body of GET /.
const StatusMessage = "Gemini API Gateway is running"

// Notifier delivers a message to a messaging platform user.
type Notifier interface {
	Notify(ctx context.Context, recipientID int64, text string) error
}

// Gateway serves the completion and notification endpoints.
type Gateway struct {
	processor *processing.Processor
	notifier  Notifier
	decoder   *validation.Decoder
	logger    *zap.Logger
}

// NewGateway creates the gateway handlers.
func NewGateway(processor *processing.Processor, notifier Notifier, decoder *validation.Decoder, logger *zap.Logger) *Gateway {
	return &Gateway{
		processor: processor,
		notifier:  notifier,
		decoder:   decoder,
		logger:    logger,
	}
}

// RecognizeDocuments handles POST /recognize-documents.
func (g *Gateway) RecognizeDocuments(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req validation.DocumentsRequest
	if !g.decode(w, r, &req) {
		return
	}
	country, err := processing.ParseCountry(req.Country)
	if err != nil {
		errors.WriteError(w, errors.NewValidationError(requestID, err.Error(), map[string]interface{}{"field": "country"}))
		return
	}

	images, err := decodeImages(r.Context(), req.Images)
	if err != nil {
		g.logger.Info("Rejected document images", zap.String("request_id", requestID), zap.Error(err))
		var imgErr *ImageError
		if stderrors.As(err, &imgErr) {
			errors.WriteError(w, errors.NewValidationError(requestID, imgErr.Error(), map[string]interface{}{"field": imgErr.Field()}))
			return
		}
		errors.WriteError(w, errors.NewInternalError(requestID, err))
		return
	}

	fields, err := g.processor.RecognizeDocuments(r.Context(), country, images)
	if err != nil {
		g.pipelineFailed(w, requestID, documentsFailedMessage, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, fields)
}

// ParseDeal handles POST /parse-deal.
func (g *Gateway) ParseDeal(w http.ResponseWriter, r *http.Request) {
	var req validation.DealRequest
	if !g.decode(w, r, &req) {
		return
	}

	deal, err := g.processor.ParseDeal(r.Context(), req.Description)
	if err != nil {
		g.pipelineFailed(w, middleware.GetRequestID(r.Context()), dealFailedMessage, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, deal)
}

// GenerateBuyoutPlans handles POST /generate-buyout-plans and its alias
// /get-buyout-plans. Plans keep the model's key order.
func (g *Gateway) GenerateBuyoutPlans(w http.ResponseWriter, r *http.Request) {
	var req validation.BuyoutPlansRequest
	if !g.decode(w, r, &req) {
		return
	}

	plans, err := g.processor.GenerateBuyoutPlans(r.Context(), req.DealDescription, req.PlanDescription)
	if err != nil {
		g.pipelineFailed(w, middleware.GetRequestID(r.Context()), plansFailedMessage, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

// Notify handles POST /notify. The caller's secret is checked by
// middleware.SharedSecret before this handler runs.
func (g *Gateway) Notify(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req validation.NotifyRequest
	if !g.decode(w, r, &req) {
		return
	}

	if err := g.notifier.Notify(r.Context(), req.RecipientID, req.Text); err != nil {
		description := err.Error()
		var upstream *notify.UpstreamError
		if stderrors.As(err, &upstream) {
			description = upstream.Description
		}
		g.logger.Warn("Notification failed",
			zap.String("request_id", requestID),
			zap.Int64("recipient_id", req.RecipientID),
			zap.Error(err),
		)
		errors.WriteError(w, errors.NewUpstreamError(requestID, description, err))
		return
	}

	g.logger.Info("Notification sent",
		zap.String("request_id", requestID),
		zap.Int64("recipient_id", req.RecipientID),
	)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Status handles GET /.
func (g *Gateway) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": StatusMessage})
}

// decode reads the body into dst and writes the error response itself when
// that fails.
func (g *Gateway) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	err := g.decoder.Decode(r, dst)
	if err == nil {
		return true
	}

	requestID := middleware.GetRequestID(r.Context())
	var reqErr *validation.RequestError
	if !stderrors.As(err, &reqErr) {
		errors.LogError(g.logger, err, requestID)
		errors.WriteError(w, errors.NewInternalError(requestID, err))
		return false
	}

	gwErr := errors.NewValidationError(requestID, reqErr.Message, reqErr.Details())
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		gwErr.Code = http.StatusRequestEntityTooLarge
	}
	g.logger.Debug("Rejected request body", zap.String("request_id", requestID), zap.Error(err))
	errors.WriteError(w, gwErr)
	return false
}

func (g *Gateway) pipelineFailed(w http.ResponseWriter, requestID, message string, code int, err error) {
	fields := []zap.Field{
		zap.String("request_id", requestID),
		zap.String("outcome", processing.Outcome(err)),
		zap.Error(err),
	}
	var stageErr *processing.StageError
	if stderrors.As(err, &stageErr) {
		fields = append(fields,
			zap.String("task", string(stageErr.Task)),
			zap.String("stage", string(stageErr.Stage)),
			zap.String("raw", stageErr.Raw),
		)
	}
	g.logger.Error("Pipeline failed", fields...)

	errors.WriteError(w, errors.NewProcessingError(requestID, message, code, err))
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
