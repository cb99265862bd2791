package logging

import "context"

type contextKey string

const (
	traceIDKey     contextKey = "trace_id"
	deviceIDKey    contextKey = "device_id"
	serviceNameKey contextKey = "service_name"
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceIDKey, deviceID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, serviceNameKey, serviceName)
}

func GetTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

func GetDeviceID(ctx context.Context) string {
	if v, ok := ctx.Value(deviceIDKey).(string); ok {
		return v
	}
	return ""
}

func GetServiceName(ctx context.Context) string {
	if v, ok := ctx.Value(serviceNameKey).(string); ok {
		return v
	}
	return ""
}

// GetLogFields collects the context-scoped log fields as zap key/value pairs.
func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 6)
	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, "trace_id", traceID)
	}
	if deviceID := GetDeviceID(ctx); deviceID != "" {
		fields = append(fields, "device_id", deviceID)
	}
	if serviceName := GetServiceName(ctx); serviceName != "" {
		fields = append(fields, "service_name", serviceName)
	}
	return fields
}
