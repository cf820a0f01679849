package trace

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func spanNames(rec *tracetest.SpanRecorder) []string {
	var names []string
	for _, s := range rec.Ended() {
		names = append(names, s.Name())
	}
	return names
}

func TestConf_SetDefaults(t *testing.T) {
	c := Conf{}
	c.SetDefaults()
	assert.Equal(t, "modelgate", c.ServiceName)
	assert.Equal(t, "http", c.Protocol)
	assert.Equal(t, "localhost:4318", c.Endpoint)

	g := Conf{Protocol: "grpc"}
	g.SetDefaults()
	assert.Equal(t, "localhost:4317", g.Endpoint)
}

func TestInit_DisabledInstallsLocalProvider(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	shutdown, err := Init(context.Background(), Conf{})
	require.NoError(t, err)
	_, span := Tracer("test").Start(context.Background(), "op")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
	require.NoError(t, shutdown(context.Background()))
}

func TestInit_UnknownProtocol(t *testing.T) {
	_, err := Init(context.Background(), Conf{Enabled: true, Protocol: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestGormPlugin_SpansPerStatement(t *testing.T) {
	rec := recordSpans(t)
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "t.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, RegisterGormPlugin(db, "sqlite", true))

	type item struct {
		ID   int
		Name string
	}
	ctx := context.Background()
	require.NoError(t, db.WithContext(ctx).Exec("CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT)").Error)
	require.NoError(t, db.WithContext(ctx).Table("items").Create(&item{ID: 1, Name: "a"}).Error)
	var got item
	err = db.WithContext(ctx).Table("items").Where("id = ?", 2).Take(&got).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	assert.Equal(t, []string{"gorm.raw", "gorm.create", "gorm.query"}, spanNames(rec))
	for _, s := range rec.Ended() {
		assert.NotEqual(t, "Error", s.Status().Code.String(), s.Name())
	}
}

func TestFiberMiddleware_RecordsStatus(t *testing.T) {
	rec := recordSpans(t)
	app := fiber.New()
	app.Use(FiberMiddleware())
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/boom", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusServiceUnavailable) })

	for _, path := range []string{"/ok", "/boom"} {
		resp, err := app.Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	ended := rec.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "GET /ok", ended[0].Name())
	assert.Equal(t, "Unset", ended[0].Status().Code.String())
	assert.Equal(t, "Error", ended[1].Status().Code.String())
}
