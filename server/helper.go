package server

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/netutil"
	"google.golang.org/grpc/codes"

	"hstin/isobar/common"
	"hstin/isobar/render"
)

var errBadRequest = errors.New("bad request")

// Listen opens a TCP listener on port that accepts at most maxConns
// connections at a time.
func Listen(port string, maxConns int) (net.Listener, error) {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return nil, err
	}
	return netutil.LimitListener(lis, maxConns), nil
}

// frameRequest reads parameter, time_index and include_wind from the query
// string. Malformed values are rejected rather than defaulted.
func frameRequest(c *fiber.Ctx) (render.FrameRequest, error) {
	parameter := strings.TrimSpace(c.Query("parameter"))
	if parameter == "" {
		return render.FrameRequest{}, fmt.Errorf("%w: parameter is required", errBadRequest)
	}

	timeIndex, err := strconv.Atoi(c.Query("time_index", "0"))
	if err != nil {
		return render.FrameRequest{}, fmt.Errorf("%w: time_index must be an integer", errBadRequest)
	}

	includeWind, err := queryBool(c, "include_wind")
	if err != nil {
		return render.FrameRequest{}, err
	}

	return render.FrameRequest{Parameter: parameter, TimeIndex: timeIndex, IncludeWind: includeWind}, nil
}

func queryBool(c *fiber.Ctx, key string) (bool, error) {
	raw := c.Query(key, "false")
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be true or false", errBadRequest, key)
	}
	return v, nil
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, common.ErrOutOfRange):
		return fiber.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

func grpcCode(err error) codes.Code {
	switch {
	case errors.Is(err, errBadRequest):
		return codes.InvalidArgument
	case errors.Is(err, common.ErrOutOfRange):
		return codes.OutOfRange
	case errors.Is(err, common.ErrNotFound):
		return codes.NotFound
	default:
		return codes.Internal
	}
}
