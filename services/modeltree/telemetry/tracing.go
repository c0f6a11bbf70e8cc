// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// errorType is the span attribute naming the Go type of a recorded error.
const errorType = attribute.Key("error.type")

// RecordError marks span failed with err. The exception event carries
// attrs and the error's Go type. A nil err is ignored.
func RecordError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if err == nil {
		return
	}
	attrs = append(attrs, errorType.String(fmt.Sprintf("%T", err)))
	span.RecordError(err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}

// EndSpan records err, if any, and ends span. Meant for a deferred call
// with a named error result.
func EndSpan(span trace.Span, err error) {
	RecordError(span, err)
	span.End()
}
