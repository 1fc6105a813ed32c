package logging

import (
	"context"
)

type contextKey string

const (
	TraceIDKey     contextKey = "trace_id"
	MessageIDKey   contextKey = "message_id"
	ServiceNameKey contextKey = "service_name"
	TopicKey       contextKey = "topic"
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, MessageIDKey, messageID)
}

func WithServiceName(ctx context.Context, serviceName string) context.Context {
	return context.WithValue(ctx, ServiceNameKey, serviceName)
}

func WithTopic(ctx context.Context, topic string) context.Context {
	return context.WithValue(ctx, TopicKey, topic)
}

func getString(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

func GetTraceID(ctx context.Context) string {
	return getString(ctx, TraceIDKey)
}

func GetMessageID(ctx context.Context) string {
	return getString(ctx, MessageIDKey)
}

func GetServiceName(ctx context.Context) string {
	return getString(ctx, ServiceNameKey)
}

func GetTopic(ctx context.Context) string {
	return getString(ctx, TopicKey)
}

func GetLogFields(ctx context.Context) []interface{} {
	fields := make([]interface{}, 0, 8)

	if traceID := GetTraceID(ctx); traceID != "" {
		fields = append(fields, string(TraceIDKey), traceID)
	}

	if messageID := GetMessageID(ctx); messageID != "" {
		fields = append(fields, string(MessageIDKey), messageID)
	}

	if topic := GetTopic(ctx); topic != "" {
		fields = append(fields, string(TopicKey), topic)
	}

	if serviceName := GetServiceName(ctx); serviceName != "" {
		fields = append(fields, string(ServiceNameKey), serviceName)
	}

	return fields
}
