package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// backendForPath names the marketplace service a request path routes to.
// Paths handled by the gateway itself (health probes, the routes overview)
// fall through to "gateway".
func backendForPath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/listings"):
		return "listing"
	case strings.HasPrefix(path, "/api/auth"), strings.HasPrefix(path, "/api/users"):
		return "identity"
	default:
		return "gateway"
	}
}

// TracingMiddleware opens a server span per request and propagates the trace
// context to the proxied marketplace service, so a browse or delete shows up
// as one trace across gateway, listing and identity.
func TracingMiddleware() fiber.Handler {
	tracer := otel.Tracer("marketplace-gateway")

	return func(c *fiber.Ctx) error {
		ctx, span := tracer.Start(
			c.UserContext(),
			c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.target", c.Path()),
				attribute.String("http.client_ip", c.IP()),
				attribute.String("gateway.backend", backendForPath(c.Path())),
				attribute.String("gateway.request_id", c.Get("X-Request-Id")),
			),
		)
		defer span.End()

		c.SetUserContext(ctx)

		// The proxied service continues this trace from the request headers.
		carrier := propagation.HeaderCarrier{}
		otel.GetTextMapPropagator().Inject(ctx, carrier)
		for key, values := range carrier {
			for _, value := range values {
				c.Request().Header.Set(key, value)
			}
		}

		if span.SpanContext().HasTraceID() {
			c.Set("X-Trace-Id", span.SpanContext().TraceID().String())
		}

		err := c.Next()

		statusCode := c.Response().StatusCode()
		span.SetAttributes(
			attribute.Int("http.status_code", statusCode),
			attribute.Int("http.response.size", len(c.Response().Body())),
		)

		if statusCode >= 400 {
			span.SetStatus(codes.Error, http.StatusText(statusCode))
		} else {
			span.SetStatus(codes.Ok, "")
		}

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}

		return err
	}
}
