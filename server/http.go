package server

import (
	"fmt"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xhhuango/json"

	"hstin/isobar/artifact"
	. "hstin/isobar/helper"
	"hstin/isobar/service"
)

type ShareResponse struct {
	Success  bool   `json:"success"`
	ShareURL string `json:"share_url"`
}

type HTTPOptions struct {
	StaticDir   string
	CORSOrigins string
}

// NewHTTPServer builds the fiber app serving the rendering API.
func NewHTTPServer(svc *service.Service, opts HTTPOptions) *fiber.App {
	app := fiber.New(fiber.Config{
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		DisableStartupMessage: true,
		ServerHeader:          "isobar",
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          5 * time.Minute,
	})

	if opts.CORSOrigins == "" {
		opts.CORSOrigins = "*"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: opts.CORSOrigins,
		AllowMethods: "GET,HEAD,OPTIONS",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "isobar backend is running!"})
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	app.Get("/time-info", func(c *fiber.Ctx) error {
		return c.JSON(svc.TimeInfo())
	})

	app.Get("/parameters", func(c *fiber.Ctx) error {
		return c.JSON(svc.Parameters())
	})

	app.Get("/static-image", func(c *fiber.Ctx) error {
		req, err := frameRequest(c)
		if err != nil {
			return fail(c, err)
		}

		data, err := svc.StaticImage(req)
		if err != nil {
			return fail(c, err)
		}
		return download(c, svc, fmt.Sprintf("%s_%d.png", req.Parameter, req.TimeIndex), data)
	})

	app.Get("/parameter-animation", func(c *fiber.Ctx) error {
		parameter := c.Query("parameter")
		if parameter == "" {
			return fail(c, fmt.Errorf("%w: parameter is required", errBadRequest))
		}
		includeWind, err := queryBool(c, "include_wind")
		if err != nil {
			return fail(c, err)
		}

		data, err := svc.Animation(c.UserContext(), parameter, includeWind)
		if err != nil {
			return fail(c, err)
		}
		return download(c, svc, parameter+"_animation.gif", data)
	})

	app.Get("/create-shareable-map", func(c *fiber.Ctx) error {
		req, err := frameRequest(c)
		if err != nil {
			return fail(c, err)
		}

		url, err := svc.ShareableMap(req)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(ShareResponse{Success: true, ShareURL: url})
	})

	if opts.StaticDir != "" {
		app.Static(artifact.URLPrefix, opts.StaticDir)
	}

	return app
}

// download stages data as a transient file, sends it as an attachment and
// releases the file once fiber holds it.
func download(c *fiber.Ctx, svc *service.Service, name string, data []byte) error {
	h, err := svc.Stage(name, data)
	if err != nil {
		return fail(c, err)
	}
	defer func() {
		if err := h.Release(); err != nil {
			Log.Warn().Err(err).Str("path", h.Path).Msg("failed to release transient file")
		}
	}()

	return c.Download(h.Path, h.Name)
}

func fail(c *fiber.Ctx, err error) error {
	status := httpStatus(err)
	if status >= fiber.StatusInternalServerError {
		Log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	} else {
		Log.Debug().Err(err).Str("path", c.Path()).Int("status", status).Msg("request rejected")
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// ServeHTTP runs app on lis until the listener is closed or app shuts down.
func ServeHTTP(app *fiber.App, lis net.Listener) error {
	Log.Info().Str("addr", lis.Addr().String()).Msg("HTTP server started")
	return app.Listener(lis)
}
