package middleware

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/psiclinic/clinic/internal/platform/apperr"
)

const defaultBodyLimit = 1 << 20

var sizeUnits = []struct {
	suffix string
	shift  uint
}{
	{"GB", 30}, {"G", 30},
	{"MB", 20}, {"M", 20},
	{"KB", 10}, {"K", 10},
	{"B", 0},
}

// BodyLimit caps request bodies at limit ("512K", "1M", or plain bytes).
// A declared Content-Length over the cap fails before the handler runs;
// chunked or mislabelled bodies fail on the read that crosses it.
func BodyLimit(limit string) echo.MiddlewareFunc {
	max := ParseSize(limit)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}
			if req.ContentLength > max {
				return apperr.TooLarge(max)
			}
			req.Body = &cappedBody{rc: req.Body, left: max, max: max}
			return next(c)
		}
	}
}

// ParseSize converts a size string to bytes. Empty, malformed, or
// non-positive input yields 1 MiB.
func ParseSize(s string) int64 {
	s = strings.ToUpper(strings.TrimSpace(s))
	var shift uint
	for _, u := range sizeUnits {
		if strings.HasSuffix(s, u.suffix) {
			s, shift = strings.TrimSuffix(s, u.suffix), u.shift
			break
		}
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return defaultBodyLimit
	}
	return n << shift
}

type cappedBody struct {
	rc   io.ReadCloser
	left int64
	max  int64
}

func (b *cappedBody) Read(p []byte) (int, error) {
	if b.left < 0 {
		return 0, apperr.TooLarge(b.max)
	}
	// One byte past the cap is enough to detect overflow.
	if int64(len(p)) > b.left+1 {
		p = p[:b.left+1]
	}
	n, err := b.rc.Read(p)
	b.left -= int64(n)
	if b.left < 0 {
		return 0, apperr.TooLarge(b.max)
	}
	return n, err
}

func (b *cappedBody) Close() error { return b.rc.Close() }
