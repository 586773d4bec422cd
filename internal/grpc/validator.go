package server

import (
	"fmt"
	"time"

	"github.com/tejusbharadwaj/wattwatch/internal/database"
)

const maxTimeRange = 2 * 365 * 24 * time.Hour

type RequestValidator struct {
	validBuckets      map[string]string
	validAggregations map[string]string
	validMetrics      map[string]string
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{
		validBuckets:      database.Buckets,
		validAggregations: database.Aggregations,
		validMetrics:      database.Metrics,
	}
}

// Validate checks if the request parameters are valid
func (v *RequestValidator) Validate(req *QueryRequest) error {
	if req.DeviceID == "" {
		return fmt.Errorf("missing device id")
	}

	if req.Start.IsZero() || req.End.IsZero() {
		return fmt.Errorf("missing timestamp")
	}

	if !req.Start.Before(req.End) {
		return fmt.Errorf("start time must be before end time")
	}

	if req.End.Sub(req.Start) > maxTimeRange {
		return fmt.Errorf("time range exceeds maximum allowed")
	}

	if _, ok := v.validBuckets[req.Bucket]; !ok {
		return fmt.Errorf("invalid bucket: %s", req.Bucket)
	}

	if _, ok := v.validAggregations[req.Aggregation]; !ok {
		return fmt.Errorf("invalid aggregation: %s", req.Aggregation)
	}

	if req.Metric != "" {
		if _, ok := v.validMetrics[req.Metric]; !ok {
			return fmt.Errorf("invalid metric: %s", req.Metric)
		}
	}

	if req.Channel != nil && *req.Channel < 0 {
		return fmt.Errorf("invalid channel: %d", *req.Channel)
	}

	return nil
}
