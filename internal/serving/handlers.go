package serving

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"automl/domain/dataset"
	"automl/internal/errors"
)

const maxRequestBytes = 1 << 20

// PredictionResponse is the body of a successful /predict call.
type PredictionResponse struct {
	Prediction  interface{} `json:"prediction"`
	Probability *float64    `json:"probability,omitempty"`
}

func (s *Server) handlePredict(c *gin.Context) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		attrs := metric.WithAttributes(attribute.String("outcome", outcome))
		s.predictions.Add(context.Background(), 1, attrs)
		s.latency.Record(context.Background(), time.Since(start).Seconds(), attrs)
	}()

	model, _ := s.current()
	if model == nil {
		outcome = "unavailable"
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Model is currently unavailable"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBytes))
	if err != nil {
		outcome = "bad_request"
		c.JSON(http.StatusBadRequest, gin.H{"detail": "failed to read request body"})
		return
	}
	record, err := parseRecord(body)
	if err != nil {
		outcome = "bad_request"
		c.JSON(errors.HTTPStatus(err), gin.H{"detail": err.Error()})
		return
	}

	frame := dataset.FromRecord(record)
	labels, err := model.PredictLabels(frame)
	if err != nil {
		outcome = "bad_request"
		s.logger.Error("[Serving] Prediction Error: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Prediction failed: " + err.Error()})
		return
	}

	resp := PredictionResponse{Prediction: labelValue(labels[0])}
	if proba, err := model.PredictProba(frame); err == nil && len(proba) == 1 {
		if idx, ok := classIndex(model.Classes, labels[0]); ok && idx < len(proba[0]) {
			p := proba[0][idx]
			resp.Probability = &p
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHealth(c *gin.Context) {
	model, rm := s.current()
	body := gin.H{
		"status":       "ok",
		"model_loaded": model != nil,
		"model_name":   s.loader.Name(),
	}
	if model != nil {
		body["version"] = rm.Version
		body["run_id"] = rm.RunID.String()
		body["architecture"] = model.Architecture
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleReload(c *gin.Context) {
	if err := s.Load(c.Request.Context()); err != nil {
		c.JSON(errors.HTTPStatus(err), gin.H{"detail": err.Error()})
		return
	}
	_, rm := s.current()
	c.JSON(http.StatusOK, gin.H{"status": "reloaded", "version": rm.Version, "run_id": rm.RunID.String()})
}

// parseRecord flattens one JSON object into raw cells. Numbers keep their
// literal text, booleans become 1/0, null is a missing value.
func parseRecord(body []byte) (map[string]string, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.InvalidInput("request body is not valid JSON")
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, errors.InvalidInput("request body must be a JSON object")
	}

	record := map[string]string{}
	var bad error
	doc.ForEach(func(key, value gjson.Result) bool {
		switch value.Type {
		case gjson.String:
			record[key.String()] = value.String()
		case gjson.Number:
			record[key.String()] = value.Raw
		case gjson.True:
			record[key.String()] = "1"
		case gjson.False:
			record[key.String()] = "0"
		case gjson.Null:
			record[key.String()] = ""
		default:
			bad = errors.InvalidInput("field " + key.String() + " must be a scalar")
			return false
		}
		return true
	})
	if bad != nil {
		return nil, bad
	}
	if len(record) == 0 {
		return nil, errors.InvalidInput("request body has no fields")
	}
	return record, nil
}

// labelValue renders integer class names as JSON numbers.
func labelValue(label string) interface{} {
	if n, err := strconv.ParseInt(label, 10, 64); err == nil {
		return n
	}
	return label
}

func classIndex(classes []string, label string) (int, bool) {
	for i, c := range classes {
		if c == label {
			return i, true
		}
	}
	return 0, false
}
