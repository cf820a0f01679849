package pprof

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMount(t *testing.T) {
	tests := []struct {
		name string
		conf Conf
		path string
		want int
	}{
		{name: "disabled", conf: Conf{}, path: "/debug/pprof/", want: http.StatusNotFound},
		{name: "enabled", conf: Conf{Enable: true}, path: "/debug/pprof/", want: http.StatusOK},
		{name: "prefixed", conf: Conf{Enable: true, Prefix: "/ops/"}, path: "/ops/debug/pprof/", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			assert.Equal(t, tt.conf.Enable, Mount(app, tt.conf))
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}
