package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"imgrev-go/pkg/bitops"
	"imgrev-go/pkg/chaingraph"
	"imgrev-go/pkg/codec"
	"imgrev-go/pkg/log"
	"imgrev-go/pkg/record"
	"imgrev-go/pkg/search"
	"imgrev-go/pkg/solver"
	"imgrev-go/pkg/store"
	"imgrev-go/pkg/transform"
)

type Server struct {
	Api     *echo.Echo
	Service *solver.Service
}

func NewServer(svc *solver.Service) *Server {
	e := echo.New()
	e.HideBanner = true
	s := &Server{Api: e, Service: svc}
	e.POST("/reconstruct", s.Reconstruct)
	e.GET("/runs", s.ListRuns)
	e.GET("/runs/:fingerprint", s.GetRun)
	e.GET("/runs/:fingerprint/graph", s.GetRunGraph)
	e.GET("/stats", s.GetStats)
	return s
}

func (s *Server) Run(addr string) error {
	log.Printf("api: listening on %s", addr)
	return s.Api.Start(addr)
}

// ReconstructRequest names input files on the server's filesystem. The API never writes
// files: the reconstructed image travels back in the response.
type ReconstructRequest struct {
	Final     string   `json:"final"`
	Key       string   `json:"key"`
	Watermark string   `json:"watermark"`
	Records   []string `json:"records"`
}

type ReconstructResponse struct {
	Run    store.Run    `json:"run"`
	Cached bool         `json:"cached"`
	Format codec.Format `json:"format,omitempty"`
	// Image is the encoded reconstruction, base64 in JSON.
	Image []byte `json:"image,omitempty"`
}

// responseFormat reads ?format=, png unless bmp is asked for.
func responseFormat(c echo.Context) (codec.Format, error) {
	switch f := codec.Format(c.QueryParam("format")); f {
	case "", codec.PNG:
		return codec.PNG, nil
	case codec.BMP:
		return codec.BMP, nil
	default:
		return "", echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unsupported image format %q", f))
	}
}

// Reconstruct solves the job in the request body. Unknown fields, output paths included, are rejected.
func (s *Server) Reconstruct(c echo.Context) error {
	format, err := responseFormat(c)
	if err != nil {
		return err
	}
	var req ReconstructRequest
	dec := json.NewDecoder(c.Request().Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	job := solver.Job{Final: req.Final, Key: req.Key, Watermark: req.Watermark, Records: req.Records}

	out, err := s.Service.Solve(c.Request().Context(), job)
	log.Info().Str("final", job.Final).AnErr("error", err).Msg("api: reconstruct")
	switch {
	case err == nil:
		resp := ReconstructResponse{Run: out.Run, Cached: out.Cached, Format: format}
		var buf bytes.Buffer
		if err := codec.EncodeWriter(&buf, out.Image, format); err != nil {
			return err
		}
		resp.Image = buf.Bytes()
		return c.JSON(http.StatusOK, resp)
	case errors.Is(err, search.ErrReconstructionNotFound):
		return c.JSON(http.StatusUnprocessableEntity, ReconstructResponse{Run: out.Run})
	case errors.Is(err, search.ErrInvalidInput), errors.Is(err, bitops.ErrSizeMismatch),
		errors.Is(err, codec.ErrDecode), errors.Is(err, record.ErrRecordRead):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return err
}

func (s *Server) runStore() (*store.Store, error) {
	st := s.Service.Store()
	if st == nil {
		return nil, echo.NewHTTPError(http.StatusServiceUnavailable, "result store disabled")
	}
	return st, nil
}

func (s *Server) ListRuns(c echo.Context) error {
	st, err := s.runStore()
	if err != nil {
		return err
	}
	runs, err := st.List()
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []store.Run{}
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) getRun(c echo.Context) (store.Run, error) {
	st, err := s.runStore()
	if err != nil {
		return store.Run{}, err
	}
	run, err := st.Get(c.Param("fingerprint"))
	if errors.Is(err, store.ErrNotFound) {
		return store.Run{}, echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return run, err
}

func (s *Server) GetRun(c echo.Context) error {
	run, err := s.getRun(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, run)
}

// GetRunGraph returns the inverse chain of a found run, as SVG or DOT with ?format=dot.
func (s *Server) GetRunGraph(c echo.Context) error {
	run, err := s.getRun(c)
	if err != nil {
		return err
	}
	if !run.Found() {
		return echo.NewHTTPError(http.StatusNotFound, "run has no sequence")
	}
	seq, err := transform.ParseSequence(run.Sequence)
	if err != nil {
		return err
	}
	if c.QueryParam("format") == "dot" {
		return c.String(http.StatusOK, chaingraph.DOT(seq))
	}
	svg, err := chaingraph.SVG(c.Request().Context(), seq)
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "image/svg+xml", svg)
}

func (s *Server) GetStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Service.Stats())
}
