// Package observability provides logging, metrics, and tracing support for
// the recruitment service.
//
// # Overview
//
// The observability package provides:
//
//   - Structured logging with zerolog
//   - Prometheus metrics for windows, enrollments, cohorts, and fulfillment
//   - Context helpers for propagating observability data
//
// # Logging
//
// Create a logger from configuration:
//
//	cfg := observability.LoggingConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    Output:    "stdout",
//	    AddSource: true,
//	}
//
//	logger := observability.NewLogger(cfg)
//	logger.Info().Str("study_id", studyID).Msg("recruitment window opened")
//
// Add study context to logger:
//
//	logger = observability.WithStudyContext(logger, requestID, studyID)
//
// # Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics("recruitment")
//
// Record metrics:
//
//	metrics.RecordWindowOpened()
//	metrics.RecordEnrollments("kafka", 12)
//	metrics.RecordCohortFormed(24)
//
// # Context Helpers
//
// Store and retrieve request context:
//
//	ctx = observability.WithRequestID(ctx, requestID)
//	ctx = observability.WithStudyID(ctx, studyID)
//
//	reqID := observability.RequestIDFromContext(ctx)
//	studyID := observability.StudyIDFromContext(ctx)
//
// # Standard Fields
//
// Common fields used across the service:
//
//   - request_id: HTTP request identifier
//   - study_id: Study identifier
//   - cohort_id: Cohort identifier
//   - participant_id: Participant identifier
//   - command: Engine command name
//   - trace_id: Distributed trace identifier
//
// # Thread Safety
//
// All components are safe for concurrent use from multiple goroutines.
package observability
