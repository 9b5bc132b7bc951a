package web

import (
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/eion/things/internal/things"
)

// Format is a representation of a resource
type Format string

const (
	FormatHTML Format = "html"
	FormatJSON Format = "json"
	FormatText Format = "txt"
)

const formatKey = "things.format"

var suffixFormats = map[string]Format{
	".html": FormatHTML,
	".json": FormatJSON,
	".txt":  FormatText,
}

// requestFormat resolves the representation for a request: URL suffix first, then Accept, then HTML
func requestFormat(c *gin.Context) Format {
	if v, ok := c.Get(formatKey); ok {
		return v.(Format)
	}

	f, ok := suffixFormats[path.Ext(c.Request.URL.Path)]
	if !ok {
		switch c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON, gin.MIMEPlain) {
		case gin.MIMEJSON:
			f = FormatJSON
		case gin.MIMEPlain:
			f = FormatText
		default:
			f = FormatHTML
		}
	}

	c.Set(formatKey, f)
	return f
}

// thingID parses the :id route parameter, tolerating a format suffix such as "12.json"
func thingID(c *gin.Context) (int64, error) {
	raw := c.Param("id")
	if _, ok := suffixFormats[path.Ext(raw)]; ok {
		raw = strings.TrimSuffix(raw, path.Ext(raw))
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &things.ThingError{
			Type:    things.ThingErrorTypeNotFound,
			Message: fmt.Sprintf("Couldn't find Thing with 'id'=%s", raw),
		}
	}
	return id, nil
}
