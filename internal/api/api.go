// Package api is the HTTP surface over the job server.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo-contrib/pprof"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/xharvest/internal/app"
	"github.com/ibeckermayer/xharvest/internal/config"
	"github.com/ibeckermayer/xharvest/internal/jobs"
	"github.com/ibeckermayer/xharvest/internal/scheduler"
)

// Service is what the routes need from the application
type Service interface {
	SubmitScrape(form app.ScrapeForm) (string, error)
	SubmitScreenshot(links []string) (string, error)
	SubmitReport(scrapeJobID string) (string, error)
	SubmitRetweeters(url string) (string, error)
	SubmitBlock(scanJobID string, handles []string) (string, error)
	Stop(id string) error
	Status(id string) (app.Status, error)
	Download(id string) (app.Download, error)
	Tasks() []scheduler.JobInfo
	RunTask(ctx context.Context, name string) error
}

type JobResponse struct {
	ID string `json:"job_id"`
}

type JobError struct {
	Error string `json:"error"`
}

// New builds the echo instance with every route registered
func New(svc Service) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := logrus.WithFields(logrus.Fields{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("Request failed")
			} else {
				entry.Debug("Request")
			}
			return nil
		},
	}))

	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	/*
		- POST /jobs/scrape: queue a feed scrape
		- POST /jobs/screenshot: queue a document for a list of links
		- POST /jobs/retweeters: queue a scan of the accounts that reposted a post
		- POST /jobs/:id/report: queue a document for the links of a finished scrape
		- POST /jobs/:id/block: queue blocking the accounts of a finished scan
		- POST /jobs/:id/stop: request a cooperative stop
		- GET /jobs/:id: poll status and progress
		- GET /jobs/:id/download: fetch the workbook or document
		- GET /tasks: list maintenance tasks
		- POST /tasks/:name/run: run a maintenance task now
	*/
	g := e.Group("/jobs")
	g.POST("/scrape", scrape(svc))
	g.POST("/screenshot", screenshot(svc))
	g.POST("/retweeters", retweeters(svc))
	g.POST("/:id/report", reportFor(svc))
	g.POST("/:id/block", block(svc))
	g.POST("/:id/stop", stop(svc))
	g.GET("/:id", status(svc))
	g.GET("/:id/download", download(svc))

	t := e.Group("/tasks")
	t.GET("", func(c echo.Context) error {
		return c.JSON(http.StatusOK, svc.Tasks())
	})
	t.POST("/:name/run", runTask(svc))

	return e
}

// Start serves the API on listenAddress until ctx is done
func Start(ctx context.Context, listenAddress string, svc Service, profiling bool) error {
	e := New(svc)
	if profiling {
		logrus.Info("Enabling pprof handlers")
		pprof.Register(e)
	}

	go func() {
		<-ctx.Done()
		if err := e.Close(); err != nil {
			logrus.Errorf("Failed to close HTTP server: %v", err)
		}
	}()

	logrus.Infof("Starting server on %s", listenAddress)
	if err := e.Start(listenAddress); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// statusFor maps application errors onto HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, config.ErrMissingCredentials), errors.Is(err, app.ErrInvalidRequest),
		errors.Is(err, jobs.ErrInvalidJobType):
		return http.StatusBadRequest
	case errors.Is(err, jobs.ErrJobNotFound), errors.Is(err, scheduler.ErrUnknownTask):
		return http.StatusNotFound
	case errors.Is(err, app.ErrNotReady), errors.Is(err, jobs.ErrJobFinished):
		return http.StatusConflict
	case errors.Is(err, jobs.ErrQueueFull):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func fail(c echo.Context, err error) error {
	return c.JSON(statusFor(err), JobError{Error: err.Error()})
}

func queued(c echo.Context, id string, err error) error {
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusAccepted, JobResponse{ID: id})
}

func scrape(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var form app.ScrapeForm
		if err := c.Bind(&form); err != nil {
			return err
		}
		id, err := svc.SubmitScrape(form)
		return queued(c, id, err)
	}
}

type linksRequest struct {
	Links []string `json:"links"`
}

func screenshot(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req linksRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		id, err := svc.SubmitScreenshot(req.Links)
		return queued(c, id, err)
	}
}

type retweetersRequest struct {
	URL string `json:"url"`
}

func retweeters(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req retweetersRequest
		if err := c.Bind(&req); err != nil {
			return err
		}
		id, err := svc.SubmitRetweeters(req.URL)
		return queued(c, id, err)
	}
}

func reportFor(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := svc.SubmitReport(c.Param("id"))
		return queued(c, id, err)
	}
}

type blockRequest struct {
	Handles []string `json:"handles"`
}

func block(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req blockRequest
		if c.Request().ContentLength != 0 {
			if err := c.Bind(&req); err != nil {
				return err
			}
		}
		id, err := svc.SubmitBlock(c.Param("id"), req.Handles)
		return queued(c, id, err)
	}
}

func stop(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := svc.Stop(c.Param("id")); err != nil {
			return fail(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func status(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		st, err := svc.Status(c.Param("id"))
		if errors.Is(err, jobs.ErrJobNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"status": "not_found"})
		}
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, st)
	}
}

func download(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		dl, err := svc.Download(c.Param("id"))
		if err != nil {
			return fail(c, err)
		}
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+dl.Name+`"`)
		return c.Blob(http.StatusOK, dl.ContentType, dl.Data)
	}
}

func runTask(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := svc.RunTask(c.Request().Context(), c.Param("name")); err != nil {
			return fail(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}
