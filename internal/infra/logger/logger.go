package logger

import (
	"context"
	"net"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a JSON production logger for "production" and a colored console logger otherwise.
func New(env string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	log, err := cfg.Build(zap.Fields(zap.String("env", env)))
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(log)
	return log, nil
}

// WithContext returns base enriched with the request and trace identifiers carried by ctx.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = zap.L()
	}
	if ctx == nil {
		return base
	}

	fields := make([]zap.Field, 0, 2)
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		fields = append(fields, zap.String("trace_id", sc.TraceID().String()))
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// RequestIDKey is used to store a request identifier on the context.
type RequestIDKey struct{}

// RequestIDFromContext returns the correlation id stored by the request id middleware.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if val, ok := ctx.Value(RequestIDKey{}).(string); ok {
		return val
	}
	return ""
}

// MaskEmail keeps up to three characters of the local part and the domain.
// jane.doe@acme.io -> jan***@acme.io
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}

	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}

	local, domain := email[:at], email[at:]
	if len(local) > 3 {
		local = local[:3]
	}
	return local + "***" + domain
}

// MaskPhone keeps the leading "+" and country digits plus the last four digits.
// +4915112345678 -> +49***5678
func MaskPhone(phone string) string {
	if phone == "" {
		return ""
	}

	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) <= 4 {
		return "***"
	}

	prefix := ""
	if strings.HasPrefix(strings.TrimSpace(phone), "+") && len(d) > 8 {
		prefix = "+" + d[:2]
	}
	return prefix + "***" + d[len(d)-4:]
}

// MaskIP keeps the network part of an address: two octets for IPv4, four groups for IPv6.
func MaskIP(ip string) string {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		if ip == "" {
			return ""
		}
		return "***"
	}

	if v4 := parsed.To4(); v4 != nil {
		return net.IP(v4).Mask(net.CIDRMask(16, 32)).String() + "/16"
	}
	return parsed.Mask(net.CIDRMask(64, 128)).String() + "/64"
}

// MaskString keeps the first and last two characters of s.
func MaskString(s string) string {
	if len(s) <= 4 {
		if s == "" {
			return ""
		}
		return "***"
	}
	return s[:2] + "***" + s[len(s)-2:]
}
